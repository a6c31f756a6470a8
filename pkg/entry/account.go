package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Field offsets within a serialized account record, relative to the
// duplicate-marker byte that starts the record.
const (
	markerOffset      = 0
	isSignerOffset    = 1
	isWritableOffset  = 2
	executableOffset  = 3
	originalLenOffset = 4
	keyOffset         = 8
	ownerOffset       = 40
	lamportsOffset    = 72
	dataLenOffset     = 80
	dataOffset        = 88

	// accountHeaderSize is the fixed portion of a non-duplicate record.
	accountHeaderSize = 88
)

// Account is a zero-copy view over one serialized account record.
//
// It stores only the raw input region and the record's offset within it;
// every accessor reads or writes the region in place. Duplicate accounts
// share the same offset, so a mutation through one view is immediately
// observable through every other view of the same account.
//
// An Account is only valid for the invocation whose input region it was
// decoded from.
type Account struct {
	buf []byte
	off int
}

// Key returns the account's public key.
func (a Account) Key() *types.Pubkey {
	return (*types.Pubkey)(a.buf[a.off+keyOffset : a.off+keyOffset+types.PubkeySize])
}

// Owner returns the program that owns this account.
func (a Account) Owner() *types.Pubkey {
	return (*types.Pubkey)(a.buf[a.off+ownerOffset : a.off+ownerOffset+types.PubkeySize])
}

// Lamports returns the account balance.
func (a Account) Lamports() uint64 {
	return binary.LittleEndian.Uint64(a.buf[a.off+lamportsOffset:])
}

// SetLamports writes the account balance in place.
//
// Writability is enforced by the host at commit time, not re-checked here;
// callers are expected to consult IsWritable before mutating.
func (a Account) SetLamports(v uint64) {
	binary.LittleEndian.PutUint64(a.buf[a.off+lamportsOffset:], v)
}

// DataLen returns the current length of the account data.
func (a Account) DataLen() int {
	return int(binary.LittleEndian.Uint64(a.buf[a.off+dataLenOffset:]))
}

// DataIsEmpty returns true if the account data has zero length.
func (a Account) DataIsEmpty() bool {
	return a.DataLen() == 0
}

// Data returns the account data as a window into the input region.
//
// The slice capacity is clipped to its length; growing the data is only
// possible through Realloc, which keeps the serialized length field and
// the window in sync.
func (a Account) Data() []byte {
	start := a.off + dataOffset
	end := start + a.DataLen()
	return a.buf[start:end:end]
}

// IsSigner reports whether the transaction was signed by this account.
func (a Account) IsSigner() bool {
	return a.buf[a.off+isSignerOffset] != 0
}

// IsWritable reports whether the account may be modified.
func (a Account) IsWritable() bool {
	return a.buf[a.off+isWritableOffset] != 0
}

// IsExecutable reports whether this account is a program.
//
// Program accounts are always read-only.
func (a Account) IsExecutable() bool {
	return a.buf[a.off+executableOffset] != 0
}

// RentEpoch returns the rent epoch serialized after the data region.
func (a Account) RentEpoch() uint64 {
	return binary.LittleEndian.Uint64(a.buf[a.rentEpochOffset():])
}

// Is reports whether two views refer to the same backing account record.
// Duplicate accounts compare equal even when obtained from different
// positions in the account sequence.
func (a Account) Is(other Account) bool {
	if a.buf == nil || other.buf == nil {
		return a.buf == nil && other.buf == nil && a.off == other.off
	}
	return a.off == other.off && &a.buf[0] == &other.buf[0]
}

// Assign changes the owner of the account in place.
func (a Account) Assign(newOwner types.Pubkey) {
	copy(a.buf[a.off+ownerOffset:a.off+ownerOffset+types.PubkeySize], newOwner[:])
}

// originalDataLen is the data length at serialization time; the growth
// budget for Realloc is measured against it, not the current length.
func (a Account) originalDataLen() int {
	return int(binary.LittleEndian.Uint32(a.buf[a.off+originalLenOffset:]))
}

// rentEpochOffset locates the trailing rent epoch: data region, growth
// padding, then alignment to an 8-byte boundary.
func (a Account) rentEpochOffset() int {
	off := a.off + dataOffset + a.originalDataLen() + MaxPermittedDataIncrease
	return align8(off)
}

// Realloc resizes the account data in place.
//
// The data may grow by at most MaxPermittedDataIncrease bytes beyond its
// serialized length; the runtime reserves exactly that much zeroed padding
// after each account's data region. When zeroInit is set, any newly exposed
// bytes are cleared; the padding is zero on entry, so this only matters if
// the data shrank and re-grew within the same invocation.
func (a Account) Realloc(newLen int, zeroInit bool) error {
	current := a.DataLen()
	if newLen == current {
		return nil
	}

	original := a.originalDataLen()
	if newLen < 0 || newLen > original+MaxPermittedDataIncrease {
		return fmt.Errorf("%w: %d bytes exceeds growth limit", ErrInvalidRealloc, newLen)
	}

	binary.LittleEndian.PutUint64(a.buf[a.off+dataLenOffset:], uint64(newLen))

	if zeroInit && newLen > current {
		start := a.off + dataOffset + current
		end := a.off + dataOffset + newLen
		for i := start; i < end; i++ {
			a.buf[i] = 0
		}
	}
	return nil
}

func align8(off int) int {
	return (off + 7) &^ 7
}
