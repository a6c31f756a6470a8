package entry_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/hostsim"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

func testKey(b byte) types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = b
	}
	return p
}

func buildInput(t *testing.T, accounts []hostsim.AccountSeed, data []byte, programID types.Pubkey) []byte {
	t.Helper()
	input, err := hostsim.BuildInput(accounts, data, programID)
	require.NoError(t, err)
	return input
}

// TestDecodeRoundTrip covers the canonical scenario: one full record, one
// duplicate of it, instruction data, and the program id.
func TestDecodeRoundTrip(t *testing.T) {
	programID := testKey(9)
	owner := testKey(7)
	acc := hostsim.AccountSeed{
		Key:        testKey(1),
		Owner:      owner,
		Lamports:   500,
		Data:       []byte("abcd"),
		RentEpoch:  3,
		IsSigner:   true,
		IsWritable: true,
	}
	input := buildInput(t, []hostsim.AccountSeed{acc, acc}, []byte("xyz"), programID)

	views := make([]entry.Account, 8)
	in, err := entry.Decode(input, views)
	require.NoError(t, err)

	require.Len(t, in.Accounts, 2)
	assert.Equal(t, []byte("xyz"), in.Data)
	assert.Equal(t, programID, *in.ProgramID)

	first, second := in.Accounts[0], in.Accounts[1]
	assert.Equal(t, acc.Key, *first.Key())
	assert.Equal(t, owner, *first.Owner())
	assert.Equal(t, uint64(500), first.Lamports())
	assert.Equal(t, []byte("abcd"), first.Data())
	assert.Equal(t, uint64(3), first.RentEpoch())
	assert.True(t, first.IsSigner())
	assert.True(t, first.IsWritable())
	assert.False(t, first.IsExecutable())

	// The duplicate reads identically and shares the backing record.
	assert.True(t, first.Is(second))
	assert.Equal(t, []byte("abcd"), second.Data())
}

// TestDecodeDuplicateAliasing verifies write-through-one, read-through-other
// for duplicate accounts.
func TestDecodeDuplicateAliasing(t *testing.T) {
	acc := hostsim.AccountSeed{
		Key:        testKey(1),
		Owner:      testKey(2),
		Lamports:   100,
		Data:       []byte{0, 0, 0, 0},
		IsWritable: true,
	}
	input := buildInput(t, []hostsim.AccountSeed{acc, acc}, nil, testKey(9))

	views := make([]entry.Account, 4)
	in, err := entry.Decode(input, views)
	require.NoError(t, err)
	require.Len(t, in.Accounts, 2)

	first, second := in.Accounts[0], in.Accounts[1]

	second.SetLamports(42)
	assert.Equal(t, uint64(42), first.Lamports())

	copy(first.Data(), []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, second.Data())
}

// TestDecodeDistinctAccounts confirms non-duplicates do not alias.
func TestDecodeDistinctAccounts(t *testing.T) {
	a := hostsim.AccountSeed{Key: testKey(1), Lamports: 10, IsWritable: true}
	b := hostsim.AccountSeed{Key: testKey(2), Lamports: 20, IsWritable: true}
	input := buildInput(t, []hostsim.AccountSeed{a, b}, nil, testKey(9))

	views := make([]entry.Account, 4)
	in, err := entry.Decode(input, views)
	require.NoError(t, err)

	assert.False(t, in.Accounts[0].Is(in.Accounts[1]))
	in.Accounts[0].SetLamports(99)
	assert.Equal(t, uint64(20), in.Accounts[1].Lamports())
}

// TestDecodeExceedsMax verifies accounts beyond the scratch capacity are
// skipped without corrupting the instruction-data and program-id offsets.
func TestDecodeExceedsMax(t *testing.T) {
	seeds := make([]hostsim.AccountSeed, 5)
	for i := range seeds {
		seeds[i] = hostsim.AccountSeed{
			Key:      testKey(byte(i + 1)),
			Lamports: uint64(i),
			Data:     []byte{byte(i), byte(i), byte(i)},
		}
	}
	programID := testKey(9)
	input := buildInput(t, seeds, []byte("instr"), programID)

	views := make([]entry.Account, 2)
	in, err := entry.Decode(input, views)
	require.NoError(t, err)

	require.Len(t, in.Accounts, 2)
	assert.Equal(t, seeds[0].Key, *in.Accounts[0].Key())
	assert.Equal(t, seeds[1].Key, *in.Accounts[1].Key())
	assert.Equal(t, []byte("instr"), in.Data)
	assert.Equal(t, programID, *in.ProgramID)
}

// TestDecodeSkippedDuplicates exercises the skip path with duplicate
// records beyond the retained maximum.
func TestDecodeSkippedDuplicates(t *testing.T) {
	a := hostsim.AccountSeed{Key: testKey(1), Data: []byte("aa")}
	seeds := []hostsim.AccountSeed{a, {Key: testKey(2)}, a, a}
	input := buildInput(t, seeds, []byte("d"), testKey(9))

	views := make([]entry.Account, 1)
	in, err := entry.Decode(input, views)
	require.NoError(t, err)

	require.Len(t, in.Accounts, 1)
	assert.Equal(t, []byte("d"), in.Data)
}

func TestDecodeNoAccounts(t *testing.T) {
	input := buildInput(t, nil, []byte("payload"), testKey(5))

	in, err := entry.Decode(input, nil)
	require.NoError(t, err)
	assert.Empty(t, in.Accounts)
	assert.Equal(t, []byte("payload"), in.Data)
}

func TestDecodeTruncated(t *testing.T) {
	acc := hostsim.AccountSeed{Key: testKey(1), Data: []byte("abcd")}
	full := buildInput(t, []hostsim.AccountSeed{acc}, []byte("xyz"), testKey(9))

	tests := []struct {
		name string
		cut  int // bytes to drop from the end
	}{
		{"missing program id", 1},
		{"missing instruction data", types.PubkeySize + 2},
		{"inside account record", len(full) - 50},
		{"only count", len(full) - 8},
		{"empty", len(full)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := make([]entry.Account, 4)
			_, err := entry.Decode(full[:len(full)-tt.cut], views)
			require.Error(t, err)
			assert.Equal(t, entry.CodeMalformedInput, entry.ErrorCode(err),
				"expected a decode/bounds error, got %v", err)
		})
	}
}

// TestDecodeCorruptLengths verifies declared lengths past the region end
// fail with a bounds error instead of reading out of bounds.
func TestDecodeCorruptLengths(t *testing.T) {
	acc := hostsim.AccountSeed{Key: testKey(1), Data: []byte("abcd")}

	t.Run("account count overflow", func(t *testing.T) {
		input := buildInput(t, []hostsim.AccountSeed{acc}, nil, testKey(9))
		binary.LittleEndian.PutUint64(input, ^uint64(0))

		_, err := entry.Decode(input, make([]entry.Account, 4))
		require.ErrorIs(t, err, entry.ErrOutOfBounds)
	})

	t.Run("data length overflow", func(t *testing.T) {
		input := buildInput(t, []hostsim.AccountSeed{acc}, nil, testKey(9))
		// Account record starts at 8; data_len lives 80 bytes in.
		binary.LittleEndian.PutUint64(input[8+80:], uint64(len(input)))

		_, err := entry.Decode(input, make([]entry.Account, 4))
		require.ErrorIs(t, err, entry.ErrOutOfBounds)
	})

	t.Run("instruction data length overflow", func(t *testing.T) {
		input := buildInput(t, nil, []byte("xy"), testKey(9))
		binary.LittleEndian.PutUint64(input[8:], 1<<40)

		_, err := entry.Decode(input, make([]entry.Account, 4))
		require.ErrorIs(t, err, entry.ErrOutOfBounds)
	})

	t.Run("forward duplicate marker", func(t *testing.T) {
		input := buildInput(t, []hostsim.AccountSeed{acc}, nil, testKey(9))
		input[8] = 0 // first account may not reference itself

		_, err := entry.Decode(input, make([]entry.Account, 4))
		require.ErrorIs(t, err, entry.ErrOutOfBounds)
	})
}

func TestRun(t *testing.T) {
	acc := hostsim.AccountSeed{Key: testKey(1), Lamports: 7, IsWritable: true}
	programID := testKey(9)
	input := buildInput(t, []hostsim.AccountSeed{acc}, []byte{1}, programID)

	t.Run("success", func(t *testing.T) {
		code := entry.Run(input, func(id *types.Pubkey, accounts []entry.Account, data []byte) error {
			assert.Equal(t, programID, *id)
			assert.Len(t, accounts, 1)
			assert.Equal(t, []byte{1}, data)
			return nil
		})
		assert.Equal(t, entry.Success, code)
	})

	t.Run("process error", func(t *testing.T) {
		code := entry.Run(input, func(*types.Pubkey, []entry.Account, []byte) error {
			return assert.AnError
		})
		assert.Equal(t, entry.CodeFailure, code)
	})

	t.Run("malformed input", func(t *testing.T) {
		code := entry.Run(input[:4], func(*types.Pubkey, []entry.Account, []byte) error {
			t.Fatal("process must not run on malformed input")
			return nil
		})
		assert.Equal(t, entry.CodeMalformedInput, code)
	})
}

// BenchmarkDecode guards the zero-allocation contract of the hot path.
func BenchmarkDecode(b *testing.B) {
	seeds := []hostsim.AccountSeed{
		{Key: testKey(1), Data: make([]byte, 128), IsSigner: true, IsWritable: true},
		{Key: testKey(2), Data: make([]byte, 64)},
		{Key: testKey(1)}, // duplicate
	}
	input, err := hostsim.BuildInput(seeds, []byte("bench"), testKey(9))
	if err != nil {
		b.Fatal(err)
	}
	views := make([]entry.Account, 8)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := entry.Decode(input, views); err != nil {
			b.Fatal(err)
		}
	}
}
