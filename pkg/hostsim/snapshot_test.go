package hostsim

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	src := openTestStore(t)
	accounts := []AccountSeed{
		{Key: testKey(1), Owner: testKey(9), Lamports: 10, Data: []byte("one")},
		{Key: testKey(2), Lamports: 20, Data: []byte("two"), Executable: true},
		{Key: testKey(3), Lamports: 30},
	}
	for _, acc := range accounts {
		require.NoError(t, src.PutAccount(acc))
	}

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	dst := openTestStore(t)
	// Pre-existing state is replaced wholesale.
	require.NoError(t, dst.PutAccount(AccountSeed{Key: testKey(0xEE), Lamports: 1}))
	require.NoError(t, dst.Restore(&buf))

	srcHash, err := src.StateHash()
	require.NoError(t, err)
	dstHash, err := dst.StateHash()
	require.NoError(t, err)
	assert.Equal(t, srcHash, dstHash)

	_, err = dst.GetAccount(testKey(0xEE))
	require.ErrorIs(t, err, ErrAccountNotFound)

	got, err := dst.GetAccount(testKey(2))
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Data)
	assert.True(t, got.Executable)
}

func TestSnapshotEmptyStore(t *testing.T) {
	src := openTestStore(t)
	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	dst := openTestStore(t)
	require.NoError(t, dst.Restore(&buf))
}

func TestRestoreBadMagic(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte("NOTASNAPSHOT"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s := openTestStore(t)
	require.ErrorIs(t, s.Restore(&buf), ErrBadSnapshot)
}

func TestRestoreNotZstd(t *testing.T) {
	s := openTestStore(t)
	err := s.Restore(bytes.NewReader([]byte("garbage")))
	require.Error(t, err)
}
