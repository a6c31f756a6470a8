// Package hostsim simulates the host runtime's side of the invocation
// boundary.
//
// It serializes account sets into the raw input region a program decodes,
// executes registered program functions against that region, reads the
// mutated region back, and commits results to a persistent store. Programs
// under test run against hostsim exactly as they would against the real
// runtime: same byte layout, same duplicate aliasing, same in-place
// mutation semantics.
package hostsim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

var (
	// ErrInvalidAccountData is returned when a read-back region is
	// inconsistent with the accounts it was built from.
	ErrInvalidAccountData = errors.New("invalid account data")

	// ErrDataTooLarge is returned when an account's data exceeds the
	// serializable maximum.
	ErrDataTooLarge = errors.New("account data too large")
)

// MaxAccountDataSize bounds serialized account data.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// AccountSeed is the host-side state of one account position in an
// invocation. Positions sharing a key serialize as duplicate records.
type AccountSeed struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	Lamports   uint64
	Data       []byte
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// BuildInput serializes accounts, instruction data, and the program id
// into a raw input region.
//
// Layout, per the runtime serializer: account count (u64); for each
// account either a full record (NonDupMarker, flags, original length, key,
// owner, lamports, data length, data, MaxPermittedDataIncrease bytes of
// zeroed growth padding, alignment to 8, rent epoch) or, when an earlier
// position holds the same key, a duplicate record (index byte plus 7
// padding bytes); instruction data length (u64) and bytes; program id.
func BuildInput(accounts []AccountSeed, data []byte, programID types.Pubkey) ([]byte, error) {
	dup := duplicateIndexes(accounts)

	size := 8
	for i, acc := range accounts {
		if dup[i] >= 0 {
			size += 8
			continue
		}
		if len(acc.Data) > MaxAccountDataSize {
			return nil, fmt.Errorf("%w: account %d has %d bytes", ErrDataTooLarge, i, len(acc.Data))
		}
		size += recordSize(len(acc.Data))
	}
	size += 8 + len(data) + types.PubkeySize

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], uint64(len(accounts)))
	offset += 8

	for i, acc := range accounts {
		if d := dup[i]; d >= 0 {
			buf[offset] = byte(d)
			offset += 8 // marker + padding
			continue
		}

		buf[offset] = entry.NonDupMarker
		if acc.IsSigner {
			buf[offset+1] = 1
		}
		if acc.IsWritable {
			buf[offset+2] = 1
		}
		if acc.Executable {
			buf[offset+3] = 1
		}
		binary.LittleEndian.PutUint32(buf[offset+4:], uint32(len(acc.Data)))
		copy(buf[offset+8:], acc.Key[:])
		copy(buf[offset+40:], acc.Owner[:])
		binary.LittleEndian.PutUint64(buf[offset+72:], acc.Lamports)
		binary.LittleEndian.PutUint64(buf[offset+80:], uint64(len(acc.Data)))
		copy(buf[offset+88:], acc.Data)

		// Growth padding is already zero; skip to the aligned rent epoch.
		offset += recordSize(len(acc.Data))
		binary.LittleEndian.PutUint64(buf[offset-8:], acc.RentEpoch)
	}

	binary.LittleEndian.PutUint64(buf[offset:], uint64(len(data)))
	offset += 8
	copy(buf[offset:], data)
	offset += len(data)
	copy(buf[offset:], programID[:])

	return buf, nil
}

// ReadBack applies the program's in-place mutations from the input region
// back onto the account seeds: lamports, owner, and data (including
// in-place resizes). Duplicate positions are refreshed from their
// canonical record afterwards.
func ReadBack(input []byte, accounts []AccountSeed) error {
	dup := duplicateIndexes(accounts)

	offset := 8
	for i := range accounts {
		if dup[i] >= 0 {
			offset += 8
			continue
		}

		acc := &accounts[i]
		original := len(acc.Data)
		if len(input)-offset < recordSize(original) {
			return fmt.Errorf("%w: account %d record", ErrInvalidAccountData, i)
		}

		copy(acc.Owner[:], input[offset+40:offset+72])
		acc.Lamports = binary.LittleEndian.Uint64(input[offset+72:])

		dataLen := binary.LittleEndian.Uint64(input[offset+80:])
		if dataLen > uint64(original+entry.MaxPermittedDataIncrease) {
			return fmt.Errorf("%w: account %d data length %d", ErrInvalidAccountData, i, dataLen)
		}
		data := make([]byte, dataLen)
		copy(data, input[offset+88:offset+88+int(dataLen)])
		acc.Data = data

		// The record footprint is fixed by the original length; resizes
		// happen inside the growth padding.
		offset += recordSize(original)
		acc.RentEpoch = binary.LittleEndian.Uint64(input[offset-8:])
	}

	for i, d := range dup {
		if d >= 0 {
			accounts[i].Lamports = accounts[d].Lamports
			accounts[i].Owner = accounts[d].Owner
			accounts[i].Data = accounts[d].Data
		}
	}
	return nil
}

// recordSize is the serialized footprint of a non-duplicate record with
// the given data length: header, data, growth padding, alignment, rent
// epoch.
func recordSize(dataLen int) int {
	n := 88 + dataLen + entry.MaxPermittedDataIncrease
	n = (n + 7) &^ 7
	return n + 8
}

// duplicateIndexes maps each position to the first earlier position with
// the same key, or -1 for canonical records. The marker byte caps
// referenceable positions at 0xFE; later repeats serialize in full.
func duplicateIndexes(accounts []AccountSeed) []int {
	dup := make([]int, len(accounts))
	for i := range dup {
		dup[i] = -1
		for j := 0; j < i && j < int(entry.NonDupMarker); j++ {
			if accounts[j].Key.Equals(accounts[i].Key) {
				dup[i] = j
				break
			}
		}
	}
	return dup
}
