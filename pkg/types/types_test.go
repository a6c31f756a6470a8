package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	var p types.Pubkey
	for i := range p {
		p[i] = byte(i)
	}

	parsed, err := types.PubkeyFromBase58(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestPubkeyFromBase58Invalid(t *testing.T) {
	_, err := types.PubkeyFromBase58("not-base58-0OIl")
	require.Error(t, err)

	// Valid base58, wrong length.
	_, err = types.PubkeyFromBase58("abc")
	require.ErrorIs(t, err, types.ErrInvalidPubkey)
}

func TestPubkeyFromBytes(t *testing.T) {
	b := make([]byte, types.PubkeySize)
	b[0] = 0xAB
	p, err := types.PubkeyFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), p[0])

	_, err = types.PubkeyFromBytes(b[:31])
	require.ErrorIs(t, err, types.ErrInvalidPubkey)
}

func TestPubkeyZeroAndEquals(t *testing.T) {
	var zero types.Pubkey
	assert.True(t, zero.IsZero())
	assert.True(t, zero.Equals(types.SystemProgramID))

	nonzero := types.Pubkey{1}
	assert.False(t, nonzero.IsZero())
	assert.False(t, nonzero.Equals(zero))
}

func TestPubkeyTextMarshaling(t *testing.T) {
	p := types.Pubkey{9, 8, 7}
	text, err := p.MarshalText()
	require.NoError(t, err)

	var back types.Pubkey
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, p, back)

	require.Error(t, back.UnmarshalText([]byte("xx")))
}
