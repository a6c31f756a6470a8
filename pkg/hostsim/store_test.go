package hostsim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)

	acc := AccountSeed{
		Key:        testKey(1),
		Owner:      testKey(2),
		Lamports:   500,
		Data:       []byte("state"),
		Executable: true,
		RentEpoch:  3,
	}
	require.NoError(t, s.PutAccount(acc))

	got, err := s.GetAccount(acc.Key)
	require.NoError(t, err)
	assert.Equal(t, acc.Owner, got.Owner)
	assert.Equal(t, acc.Lamports, got.Lamports)
	assert.Equal(t, acc.Data, got.Data)
	assert.Equal(t, acc.Executable, got.Executable)
	assert.Equal(t, acc.RentEpoch, got.RentEpoch)
}

func TestStoreGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAccount(testKey(0xAA))
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	acc := AccountSeed{Key: testKey(1), Lamports: 1}
	require.NoError(t, s.PutAccount(acc))
	require.NoError(t, s.DeleteAccount(acc.Key))

	_, err := s.GetAccount(acc.Key)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

// TestStoreCommit covers the duplicate-position skip: the canonical record
// wins and the repeated position does not overwrite it.
func TestStoreCommit(t *testing.T) {
	s := openTestStore(t)

	seeds := []AccountSeed{
		{Key: testKey(1), Lamports: 10, Data: []byte("canonical")},
		{Key: testKey(2), Lamports: 20},
		{Key: testKey(1), Lamports: 999, Data: []byte("stale")},
	}
	require.NoError(t, s.Commit(seeds))

	got, err := s.GetAccount(testKey(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Lamports)
	assert.Equal(t, []byte("canonical"), got.Data)

	got, err = s.GetAccount(testKey(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.Lamports)
}

// TestStateHashDeterministic writes the same accounts in different orders
// into two stores and expects identical hashes.
func TestStateHashDeterministic(t *testing.T) {
	accounts := []AccountSeed{
		{Key: testKey(3), Lamports: 3, Data: []byte("c")},
		{Key: testKey(1), Lamports: 1, Data: []byte("a")},
		{Key: testKey(2), Lamports: 2, Data: []byte("b")},
	}

	a := openTestStore(t)
	for _, acc := range accounts {
		require.NoError(t, a.PutAccount(acc))
	}

	b := openTestStore(t)
	for i := len(accounts) - 1; i >= 0; i-- {
		require.NoError(t, b.PutAccount(accounts[i]))
	}

	ha, err := a.StateHash()
	require.NoError(t, err)
	hb, err := b.StateHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	// Any change to the state changes the hash.
	require.NoError(t, b.PutAccount(AccountSeed{Key: testKey(1), Lamports: 42}))
	hc, err := b.StateHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestDecodeStoredRejectsCorrupt(t *testing.T) {
	_, err := decodeStored(types.Pubkey{}, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidAccountData)

	acc := AccountSeed{Key: testKey(1), Data: []byte("abcd")}
	raw := encodeStored(acc)
	_, err = decodeStored(acc.Key, raw[:len(raw)-1])
	require.ErrorIs(t, err, ErrInvalidAccountData)
}
