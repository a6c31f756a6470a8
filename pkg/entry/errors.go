package entry

import "errors"

// Decode errors.
var (
	// ErrTruncated is returned when the input region ends before a field
	// the layout requires.
	ErrTruncated = errors.New("input buffer truncated")

	// ErrOutOfBounds is returned when a declared length or index would
	// read past the end of the input region.
	ErrOutOfBounds = errors.New("declared length out of bounds")

	// ErrInvalidRealloc is returned when a data resize exceeds the growth
	// padding reserved by the runtime.
	ErrInvalidRealloc = errors.New("invalid realloc")
)

// Result codes reported to the host.
const (
	// Success is the result code for a successful invocation.
	Success uint64 = 0

	// CodeFailure is the generic nonzero result for a failed invocation.
	CodeFailure uint64 = 1

	// CodeMalformedInput is reported when the input region cannot be decoded.
	CodeMalformedInput uint64 = 2

	// CodeNotEnoughAccounts is reported when an instruction received fewer
	// accounts than its schema requires.
	CodeNotEnoughAccounts uint64 = 3
)

// Coder is implemented by errors that carry an explicit host result code.
type Coder interface {
	ErrorCode() uint64
}

// ErrorCode maps an error to the result code reported to the host.
func ErrorCode(err error) uint64 {
	if err == nil {
		return Success
	}
	var coded Coder
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	if errors.Is(err, ErrTruncated) || errors.Is(err, ErrOutOfBounds) {
		return CodeMalformedInput
	}
	return CodeFailure
}
