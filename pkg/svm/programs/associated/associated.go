// Package associated implements the Associated Token Account program: the
// canonical token account of a wallet for a mint lives at an address derived
// from (wallet, token program, mint) and is created on demand by anyone
// willing to fund it.
package associated

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/pda"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// ProgramID is the Associated Token Account program address.
var ProgramID = types.AssociatedTokenProgramAddr

// Instruction discriminants. Empty data is treated as InstructionCreate.
const (
	InstructionCreate           uint8 = 0
	InstructionCreateIdempotent uint8 = 1
)

// FindAddress returns the associated token account of wallet for mint and
// its bump seed.
func FindAddress(wallet, mint types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(seeds(wallet, mint), ProgramID)
}

// MustFindAddress is FindAddress for callers that cannot recover from a
// derivation failure.
func MustFindAddress(wallet, mint types.Pubkey) types.Pubkey {
	addr, _, err := FindAddress(wallet, mint)
	if err != nil {
		panic(fmt.Sprintf("associated token address for %s/%s: %v", wallet, mint, err))
	}
	return addr
}

func seeds(wallet, mint types.Pubkey) [][]byte {
	return [][]byte{wallet[:], token.ProgramID[:], mint[:]}
}

// Create builds an instruction creating the associated token account of
// wallet for mint, funded by funder.
//
// Accounts: [0] funder (signer, writable), [1] associated account (writable),
// [2] wallet, [3] mint, [4] system program, [5] token program, [6] rent sysvar.
func Create(funder, wallet, mint types.Pubkey) svm.Instruction {
	return create(InstructionCreate, funder, wallet, mint)
}

// CreateIdempotent is Create that succeeds when the account already exists
// with the expected mint and owner.
func CreateIdempotent(funder, wallet, mint types.Pubkey) svm.Instruction {
	return create(InstructionCreateIdempotent, funder, wallet, mint)
}

func create(kind uint8, funder, wallet, mint types.Pubkey) svm.Instruction {
	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(funder, true, true),
			svm.NewAccountMeta(MustFindAddress(wallet, mint), false, true),
			svm.NewAccountMeta(wallet, false, false),
			svm.NewAccountMeta(mint, false, false),
			svm.NewAccountMeta(system.ProgramID, false, false),
			svm.NewAccountMeta(token.ProgramID, false, false),
			svm.NewAccountMeta(types.SysvarRentAddr, false, false),
		},
		Data: []byte{kind},
	}
}

// Processor executes Associated Token Account instructions.
type Processor struct{}

// NewProcessor creates a new Associated Token Account processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes an Associated Token Account instruction.
func (p *Processor) Process(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	kind := InstructionCreate
	if len(data) > 0 {
		kind = data[0]
	}
	switch kind {
	case InstructionCreate:
		ctx.Log("Create")
		return p.create(ctx, accounts, false)
	case InstructionCreateIdempotent:
		ctx.Log("CreateIdempotent")
		return p.create(ctx, accounts, true)
	default:
		return fmt.Errorf("%w: unsupported instruction %d", svm.ErrInvalidInstructionData, kind)
	}
}

func (p *Processor) create(ctx svm.InvokeContext, accounts []*svm.AccountInfo, idempotent bool) error {
	if err := svm.CheckAccounts(accounts, 6); err != nil {
		return err
	}
	funder, ata, wallet, mint := accounts[0], accounts[1], accounts[2], accounts[3]
	tokenProgram := accounts[5]

	if tokenProgram.Key != token.ProgramID {
		return fmt.Errorf("%w: token program %s", svm.ErrIncorrectProgramID, tokenProgram)
	}

	addr, bump, err := FindAddress(wallet.Key, mint.Key)
	if err != nil {
		return err
	}
	if addr != ata.Key {
		ctx.Log("Error: Associated address does not match seed derivation")
		return fmt.Errorf("%w: expected %s, got %s", svm.ErrInvalidSeeds, addr, ata)
	}

	if idempotent && ata.Owner == token.ProgramID {
		existing, err := token.DecodeAccount(ata.Data)
		if err != nil {
			return err
		}
		if existing.Mint != mint.Key || existing.Owner != wallet.Key {
			return fmt.Errorf("%w: existing account %s", svm.ErrIllegalOwner, ata)
		}
		return nil
	}

	signer := append(seeds(wallet.Key, mint.Key), []byte{bump})

	ctx.Log("Initialize the associated token account")
	rent := ctx.RentMinimum(token.AccountSize)
	if err := ctx.Invoke(system.CreateAccount(funder.Key, ata.Key, rent, token.AccountSize, token.ProgramID), signer); err != nil {
		return err
	}
	return ctx.Invoke(token.InitializeAccount3(ata.Key, mint.Key, wallet.Key))
}
