// Package cpi provides cross-program invocation helpers.
//
// The invocation itself is a host capability: the program prepares an
// Instruction plus the correctly-aliased account views it already holds,
// and hands both to the host's invoker. This package only guarantees the
// shapes at that boundary — it does not execute anything.
package cpi

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Seed limits, shared with program-derived address signing.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

var (
	// ErrNoInvoker is returned when Invoke is called before the host has
	// installed an invoker.
	ErrNoInvoker = errors.New("no invoker installed")

	// ErrTooManySeeds is returned when a signer exceeds MaxSeeds seeds.
	ErrTooManySeeds = errors.New("too many signer seeds")

	// ErrSeedTooLong is returned when a signer seed exceeds MaxSeedLen bytes.
	ErrSeedTooLong = errors.New("signer seed too long")
)

// AccountMeta describes one account an instruction expects.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a program invocation request.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Invoker executes instructions on behalf of a program. The host installs
// one before running the program; accounts are the caller's views for the
// instruction's account metas, in the same order.
type Invoker interface {
	InvokeSigned(ix Instruction, accounts []entry.Account, signers [][][]byte) error
}

// invoker is the installed host invoker. Invocations are serialized by the
// host, so a package-level slot mirrors the syscall boundary it replaces.
var invoker Invoker

// SetInvoker installs the host's invoker. Passing nil uninstalls it.
func SetInvoker(inv Invoker) {
	invoker = inv
}

// Meta builds an AccountMeta from a view, carrying its decoded flags.
func Meta(a entry.Account) AccountMeta {
	return AccountMeta{
		Pubkey:     *a.Key(),
		IsSigner:   a.IsSigner(),
		IsWritable: a.IsWritable(),
	}
}

// SignerMeta builds an AccountMeta that asserts the signer flag regardless
// of the view's own flags. Intended for program-derived addresses that did
// not sign the transaction but sign the inner instruction via seeds.
func SignerMeta(a entry.Account) AccountMeta {
	m := Meta(a)
	m.IsSigner = true
	return m
}

// Invoke executes an instruction with no program signers.
func Invoke(ix Instruction, accounts []entry.Account) error {
	return InvokeSigned(ix, accounts, nil)
}

// InvokeSigned executes an instruction, signing with the given seed sets.
// Each element of signers is one program-derived signer's seed list.
func InvokeSigned(ix Instruction, accounts []entry.Account, signers [][][]byte) error {
	if invoker == nil {
		return ErrNoInvoker
	}
	for _, seeds := range signers {
		if len(seeds) > MaxSeeds {
			return fmt.Errorf("%w: %d", ErrTooManySeeds, len(seeds))
		}
		for _, seed := range seeds {
			if len(seed) > MaxSeedLen {
				return fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
			}
		}
	}
	return invoker.InvokeSigned(ix, accounts, signers)
}
