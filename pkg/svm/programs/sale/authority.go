package sale

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm/pda"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
)

// ProgramAuthority is the keyless address that holds the sale record and
// owns the custody token account. A value can only be obtained by deriving
// it for a program id, and it is the only way to sign for custody.
type ProgramAuthority struct {
	address   types.Pubkey
	bump      uint8
	programID types.Pubkey
}

// DeriveProgramAuthority derives the sale authority of programID.
func DeriveProgramAuthority(programID types.Pubkey) (ProgramAuthority, error) {
	addr, bump, err := pda.FindProgramAddress(saleSeeds(), programID)
	if err != nil {
		return ProgramAuthority{}, err
	}
	return ProgramAuthority{address: addr, bump: bump, programID: programID}, nil
}

// MustDeriveProgramAuthority is DeriveProgramAuthority for instruction
// builders, where the seeds are fixed and derivation cannot fail in practice.
func MustDeriveProgramAuthority(programID types.Pubkey) ProgramAuthority {
	a, err := DeriveProgramAuthority(programID)
	if err != nil {
		panic(fmt.Sprintf("sale authority for %s: %v", programID, err))
	}
	return a
}

// Address returns the derived address.
func (a ProgramAuthority) Address() types.Pubkey { return a.address }

// Bump returns the bump seed found during derivation.
func (a ProgramAuthority) Bump() uint8 { return a.bump }

// ProgramID returns the program the authority was derived for.
func (a ProgramAuthority) ProgramID() types.Pubkey { return a.programID }

// Matches reports whether key is the authority address.
func (a ProgramAuthority) Matches(key types.Pubkey) bool { return a.address == key }

// SignerSeeds returns the seed list, bump included, proving the authority
// in a nested invocation made by its program.
func (a ProgramAuthority) SignerSeeds() [][]byte {
	return append(saleSeeds(), []byte{a.bump})
}

// CustodyAddress returns the associated token account of the authority for
// the sale token.
func CustodyAddress(a ProgramAuthority) types.Pubkey {
	return associated.MustFindAddress(a.address, ClashTokenID)
}
