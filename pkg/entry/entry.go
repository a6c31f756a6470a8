// Package entry implements the zero-copy program entrypoint for X1-Nitro.
//
// The runtime hands every program invocation a single raw byte region
// containing the ordered account records, the instruction data, and the
// program id. This package decodes that region without allocating or
// copying:
//   - account views are offsets into the region, not materialized structs
//   - duplicate account records resolve to the view they alias, so all
//     positions referencing one account share its backing bytes
//   - the instruction data and program id are windows into the region
//
// Mutations through an Account view (lamports, data, owner) land directly
// in the region the runtime reads back after the invocation returns, so
// there is no copy-back step.
//
// Layout of the input region (little-endian):
//   - account count (u64)
//   - per account: a duplicate-marker byte; if NonDupMarker, the marker
//     starts an 88-byte header (flags, original length, key, owner,
//     lamports, data length) followed by the data, MaxPermittedDataIncrease
//     bytes of zeroed growth padding, alignment to 8 bytes, and the rent
//     epoch (u64); otherwise the marker is the index of an earlier account
//     and 7 padding bytes follow
//   - instruction data length (u64) and instruction data
//   - program id (32 bytes)
package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

const (
	// NonDupMarker is the duplicate-marker value indicating an account
	// record is serialized in full rather than aliasing a prior index.
	NonDupMarker = 0xFF

	// MaxPermittedDataIncrease is the zeroed padding the runtime reserves
	// after each account's data so it can grow in place. The decoder must
	// skip exactly this much or every subsequent offset desynchronizes.
	MaxPermittedDataIncrease = 10 * 1024

	// MaxEntrypointAccounts is the account capacity used by Run. Programs
	// expecting wider transactions can supply their own scratch via RunN.
	MaxEntrypointAccounts = 64
)

// Invocation is the decoded view of one program invocation.
//
// Its shape is fixed once decoded; only the account cells referenced by
// the views may change, through the views themselves. It must not outlive
// the input region it was decoded from.
type Invocation struct {
	// ProgramID is the id of the invoked program, a window into the region.
	ProgramID *types.Pubkey

	// Accounts holds the retained account views in their original order.
	// It is a prefix of the scratch slice passed to Decode.
	Accounts []Account

	// Data is the instruction data, a window into the region.
	Data []byte
}

// ProcessFunc is the instruction-processing function a program supplies.
// Everything it receives points into the invocation's input region.
type ProcessFunc func(programID *types.Pubkey, accounts []Account, data []byte) error

// Run decodes the input region and dispatches to process, reporting the
// result as the u64 code the runtime expects. It retains at most
// MaxEntrypointAccounts accounts; excess accounts are parsed but dropped.
//
// This is the only host-facing boundary: the runtime invokes the program
// with the region, and the returned code is the invocation's result.
func Run(input []byte, process ProcessFunc) uint64 {
	var views [MaxEntrypointAccounts]Account
	return RunN(input, views[:], process)
}

// RunN is Run with caller-supplied view scratch, for programs that need a
// different maximum account count.
func RunN(input []byte, views []Account, process ProcessFunc) uint64 {
	in, err := Decode(input, views)
	if err != nil {
		return ErrorCode(err)
	}
	return ErrorCode(process(in.ProgramID, in.Accounts, in.Data))
}

// Decode interprets input as a runtime-serialized invocation region.
//
// views bounds the number of accounts retained: accounts beyond len(views)
// are still parsed, so the cursor stays correct through the variable-length
// records, but they are not exposed. Decode performs no allocation; the
// returned Invocation references input and a prefix of views.
//
// Any length field that is inconsistent with the size of input fails with
// ErrTruncated or ErrOutOfBounds before any state is exposed; there is no
// partial result.
func Decode(input []byte, views []Account) (Invocation, error) {
	var in Invocation

	if len(input) < 8 {
		return in, fmt.Errorf("%w: account count", ErrTruncated)
	}
	total := binary.LittleEndian.Uint64(input)

	// Each record consumes at least 8 bytes, so a count larger than the
	// region itself can never be satisfied.
	if total > uint64(len(input)) {
		return in, fmt.Errorf("%w: account count %d", ErrOutOfBounds, total)
	}

	count := int(total)
	if count > len(views) {
		count = len(views)
	}

	offset := 8
	for i := 0; i < count; i++ {
		if offset >= len(input) {
			return in, fmt.Errorf("%w: account %d marker", ErrTruncated, i)
		}
		marker := input[offset]
		if marker == NonDupMarker {
			next, err := skipRecord(input, offset, i)
			if err != nil {
				return in, err
			}
			// Record the serialization-time data length; Realloc measures
			// its growth budget against this field.
			dataLen := binary.LittleEndian.Uint64(input[offset+dataLenOffset:])
			binary.LittleEndian.PutUint32(input[offset+originalLenOffset:], uint32(dataLen))

			views[i] = Account{buf: input, off: offset}
			offset = next
		} else {
			if int(marker) >= i {
				return in, fmt.Errorf("%w: duplicate marker %d at account %d", ErrOutOfBounds, marker, i)
			}
			// Alias the already-materialized view rather than re-reading
			// bytes; both positions now share one backing record.
			views[i] = views[marker]
			offset += 8
		}
	}

	// Consume any remaining accounts to move the cursor to the instruction
	// data; their bytes are validated but nothing is retained.
	for i := count; i < int(total); i++ {
		if offset >= len(input) {
			return in, fmt.Errorf("%w: account %d marker", ErrTruncated, i)
		}
		if input[offset] == NonDupMarker {
			next, err := skipRecord(input, offset, i)
			if err != nil {
				return in, err
			}
			offset = next
		} else {
			offset += 8
		}
	}

	if len(input)-offset < 8 {
		return in, fmt.Errorf("%w: instruction data length", ErrTruncated)
	}
	dataLen := binary.LittleEndian.Uint64(input[offset:])
	offset += 8

	if dataLen > uint64(len(input)-offset) {
		return in, fmt.Errorf("%w: instruction data length %d", ErrOutOfBounds, dataLen)
	}
	data := input[offset : offset+int(dataLen) : offset+int(dataLen)]
	offset += int(dataLen)

	if len(input)-offset < types.PubkeySize {
		return in, fmt.Errorf("%w: program id", ErrTruncated)
	}
	programID := (*types.Pubkey)(input[offset : offset+types.PubkeySize])

	in.ProgramID = programID
	in.Accounts = views[:count]
	in.Data = data
	return in, nil
}

// skipRecord validates a non-duplicate record starting at offset and
// returns the offset of the next record.
func skipRecord(input []byte, offset, index int) (int, error) {
	if len(input)-offset < accountHeaderSize {
		return 0, fmt.Errorf("%w: account %d header", ErrTruncated, index)
	}
	dataLen := binary.LittleEndian.Uint64(input[offset+dataLenOffset:])
	if dataLen > uint64(len(input)-offset-accountHeaderSize) {
		return 0, fmt.Errorf("%w: account %d data length %d", ErrOutOfBounds, index, dataLen)
	}

	next := offset + accountHeaderSize + int(dataLen) + MaxPermittedDataIncrease
	next = align8(next)
	next += 8 // rent epoch
	if next > len(input) {
		return 0, fmt.Errorf("%w: account %d record", ErrTruncated, index)
	}
	return next, nil
}
