// Package pda derives program-derived addresses.
//
// A program-derived address is the sha256 of seed bytes, the deriving
// program's id, and a fixed marker. A valid derivation must land off the
// ed25519 curve so no private key can ever sign for it; FindProgramAddress
// searches bump seeds from 255 downward for the first off-curve result.
package pda

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Seed limits.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// Marker appended to every derivation.
var marker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedsExceeded is returned for more than MaxSeeds seeds.
	ErrMaxSeedsExceeded = errors.New("max seeds exceeded")

	// ErrMaxSeedLengthExceeded is returned for a seed longer than MaxSeedLen.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidSeeds is returned when the derived address lands on the
	// ed25519 curve.
	ErrInvalidSeeds = errors.New("invalid seeds: derived address is on curve")

	// ErrNoViableBump is returned when no bump seed produces an off-curve
	// address.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
)

// CreateProgramAddress derives an address from seeds and a program id,
// failing if the result is on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	var p types.Pubkey

	if len(seeds) > MaxSeeds {
		return p, ErrMaxSeedsExceeded
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return p, ErrMaxSeedLengthExceeded
		}
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(marker)
	copy(p[:], h.Sum(nil))

	if isOnCurve(p) {
		return types.Pubkey{}, ErrInvalidSeeds
	}
	return p, nil
}

// FindProgramAddress searches bump seeds from 255 downward for the first
// off-curve derivation, returning the address and the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		p, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return p, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return types.Pubkey{}, 0, err
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// Field prime p = 2^255 - 19 and curve parameter d = -121665/121666 (mod p)
// for the twisted Edwards curve -x^2 + y^2 = 1 + d*x^2*y^2.
var (
	curveP = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	curveD = func() *big.Int {
		d := new(big.Int).Mul(big.NewInt(-121665), new(big.Int).ModInverse(big.NewInt(121666), curveP))
		return d.Mod(d, curveP)
	}()
)

// isOnCurve checks whether a compressed point decodes to a point on the
// ed25519 curve. The compressed form stores the y-coordinate little-endian
// with the sign of x in the high bit; y yields x^2 = (y^2-1)/(d*y^2+1),
// and the point is valid iff x^2 has a square root mod p.
func isOnCurve(point types.Pubkey) bool {
	yBytes := make([]byte, 32)
	copy(yBytes, point[:])
	yBytes[31] &= 0x7F

	y := new(big.Int)
	for i := 31; i >= 0; i-- {
		y.Lsh(y, 8)
		y.Or(y, big.NewInt(int64(yBytes[i])))
	}
	if y.Cmp(curveP) >= 0 {
		return false
	}

	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, curveP)

	num := new(big.Int).Sub(y2, big.NewInt(1))
	num.Mod(num, curveP)

	den := new(big.Int).Mul(curveD, y2)
	den.Add(den, big.NewInt(1))
	den.Mod(den, curveP)

	denInv := new(big.Int).ModInverse(den, curveP)
	if denInv == nil {
		return false
	}
	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, curveP)

	// Euler's criterion: x^2 is a quadratic residue iff x^2^((p-1)/2) = 1.
	exp := new(big.Int).Sub(curveP, big.NewInt(1))
	exp.Rsh(exp, 1)
	legendre := new(big.Int).Exp(x2, exp, curveP)

	return legendre.Cmp(big.NewInt(1)) == 0 || x2.Sign() == 0
}
