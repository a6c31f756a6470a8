// Package types defines the core account-addressing types for X1-Nitro.
//
// These types follow X1 network conventions: account addresses are 32-byte
// Ed25519 public keys, rendered as base58 strings.
package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of an account address in bytes.
const PubkeySize = 32

// ErrInvalidPubkey is returned when a pubkey has invalid length.
var ErrInvalidPubkey = errors.New("invalid pubkey: must be 32 bytes")

// Pubkey represents a 32-byte Ed25519 public key.
type Pubkey [PubkeySize]byte

// SystemProgramID is the address of the native system program (all zeros).
var SystemProgramID = Pubkey{}

// PubkeyFromBase58 parses a base58-encoded public key.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	data, err := base58.Decode(s)
	if err != nil {
		return p, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], data)
	return p, nil
}

// PubkeyFromBytes creates a Pubkey from a byte slice.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], b)
	return p, nil
}

// String returns the base58-encoded representation.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero returns true if the pubkey is all zeros.
func (p Pubkey) IsZero() bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equals returns true if two pubkeys are equal.
func (p Pubkey) Equals(other Pubkey) bool {
	return p == other
}

// Bytes returns the pubkey as a byte slice.
func (p Pubkey) Bytes() []byte {
	return p[:]
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
