// Package pda derives program addresses: 32-byte keys computed from a program
// id and a list of seeds that are guaranteed to lie off the ed25519 curve, so
// no private key exists for them and only the deriving program can sign.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// PDA constants.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// pdaMarker is appended to every derivation input.
var pdaMarker = []byte("ProgramDerivedAddress")

// ErrNoViableBump is returned when no bump in 255..0 yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// errOnCurve marks a derivation that landed on the curve.
var errOnCurve = fmt.Errorf("%w: derived address is on curve", svm.ErrInvalidSeeds)

// CreateProgramAddress derives the address for seeds under programID.
// Fails if the seed limits are exceeded or the result lies on the curve.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, fmt.Errorf("%w: %d seeds", svm.ErrMaxSeedLengthExceeded, len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, fmt.Errorf("%w: seed of %d bytes", svm.ErrMaxSeedLengthExceeded, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr) {
		return types.Pubkey{}, errOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return types.Pubkey{}, 0, fmt.Errorf("%w: %d seeds", svm.ErrMaxSeedLengthExceeded, len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, errOnCurve) {
			return types.Pubkey{}, 0, err
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether key decodes to a valid ed25519 point.
func IsOnCurve(key types.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
