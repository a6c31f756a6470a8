// Package system builds and invokes native system-program instructions.
//
// The system program creates accounts, transfers lamports, assigns
// ownership, and allocates account space. Helpers here encode the
// canonical little-endian instruction layouts and route them through the
// cpi package; the host executes them.
package system

import (
	"encoding/binary"

	"github.com/fortiblox/x1-nitro/pkg/cpi"
	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Instruction discriminants (first 4 bytes of instruction data).
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// CreateAccountInstruction encodes a CreateAccount instruction for the
// given funder and new-account keys.
//
// Data layout: discriminant (4) + lamports (8) + space (8) + owner (32).
func CreateAccountInstruction(funder, account types.Pubkey, lamports, space uint64, owner types.Pubkey) cpi.Instruction {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:4], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	binary.LittleEndian.PutUint64(data[12:20], space)
	copy(data[20:52], owner[:])

	return cpi.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []cpi.AccountMeta{
			{Pubkey: funder, IsSigner: true, IsWritable: true},
			{Pubkey: account, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// TransferInstruction encodes a Transfer instruction.
//
// Data layout: discriminant (4) + lamports (8).
func TransferInstruction(from, to types.Pubkey, lamports uint64) cpi.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return cpi.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []cpi.AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: data,
	}
}

// AssignInstruction encodes an Assign instruction.
//
// Data layout: discriminant (4) + owner (32).
func AssignInstruction(account, owner types.Pubkey) cpi.Instruction {
	data := make([]byte, 36)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAssign)
	copy(data[4:36], owner[:])

	return cpi.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []cpi.AccountMeta{
			{Pubkey: account, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// AllocateInstruction encodes an Allocate instruction.
//
// Data layout: discriminant (4) + space (8).
func AllocateInstruction(account types.Pubkey, space uint64) cpi.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:12], space)

	return cpi.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []cpi.AccountMeta{
			{Pubkey: account, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// CreateAccount creates a new account funded by funder.
func CreateAccount(funder, account entry.Account, lamports, space uint64, owner types.Pubkey) error {
	ix := CreateAccountInstruction(*funder.Key(), *account.Key(), lamports, space, owner)
	return cpi.Invoke(ix, []entry.Account{funder, account})
}

// CreateAccountSigned creates a new program-derived account, signing for it
// with the given seeds.
func CreateAccountSigned(funder, account entry.Account, lamports, space uint64, owner types.Pubkey, seeds [][]byte) error {
	ix := CreateAccountInstruction(*funder.Key(), *account.Key(), lamports, space, owner)
	return cpi.InvokeSigned(ix, []entry.Account{funder, account}, [][][]byte{seeds})
}

// Transfer moves lamports between accounts.
func Transfer(from, to entry.Account, lamports uint64) error {
	ix := TransferInstruction(*from.Key(), *to.Key(), lamports)
	return cpi.Invoke(ix, []entry.Account{from, to})
}

// Assign changes the owner of an account.
func Assign(account entry.Account, owner types.Pubkey) error {
	ix := AssignInstruction(*account.Key(), owner)
	return cpi.Invoke(ix, []entry.Account{account})
}

// Allocate resizes an account's data to space bytes.
func Allocate(account entry.Account, space uint64) error {
	ix := AllocateInstruction(*account.Key(), space)
	return cpi.Invoke(ix, []entry.Account{account})
}
