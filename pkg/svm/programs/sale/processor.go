// Package sale implements the Clash token sale program.
//
// The program sells a fixed token for lamports at a compiled-in price and
// credits tokens for payments confirmed off-chain by a trusted signer. Unsold
// tokens sit in a custody token account owned by a keyless authority derived
// from the program id; only this program can sign for it.
//
// Instructions:
//   - Initialize: create the sale record and the custody token account
//   - Exchange: pay lamports to the treasury, receive tokens from custody
//   - ExecutePayment: receive tokens confirmed by the payment authority
//   - Terminate: return leftover tokens and lamports to the initializer
package sale

import (
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// Processor executes sale instructions.
type Processor struct {
	pricing Pricing
}

// NewProcessor creates a sale processor using DefaultPricing.
func NewProcessor() *Processor {
	return &Processor{pricing: DefaultPricing}
}

// Process decodes and executes a sale instruction.
func (p *Processor) Process(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return Fail(ctx, err)
	}

	switch ix.Kind {
	case InstructionInitialize:
		ctx.Log("Instruction: Initialize Clash ICO")
		err = p.initialize(ctx, accounts)
	case InstructionExchange:
		ctx.Log("Instruction: Exchange Clash Token")
		err = p.exchange(ctx, accounts, ix.Exchange)
	case InstructionExecutePayment:
		ctx.Log("Instruction: Execute Clash Payment")
		err = p.executePayment(ctx, accounts, ix.Payment)
	case InstructionTerminate:
		ctx.Log("Instruction: Terminate Clash ICO")
		err = p.terminate(ctx, accounts)
	}
	if err != nil {
		return Fail(ctx, err)
	}
	return nil
}

// authority derives the sale authority and checks it against the supplied
// account.
func authority(ctx svm.InvokeContext, acc *svm.AccountInfo) (ProgramAuthority, error) {
	a, err := DeriveProgramAuthority(ctx.ProgramID())
	if err != nil {
		return ProgramAuthority{}, err
	}
	if !a.Matches(acc.Key) {
		return ProgramAuthority{}, ErrInvalidAddressProgramPDA
	}
	return a, nil
}

// checkProgram fails unless acc is the executing program.
func checkProgram(ctx svm.InvokeContext, acc *svm.AccountInfo) error {
	if acc.Key != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}
	return nil
}

// checkMintID fails unless acc is the sale token mint.
func checkMintID(acc *svm.AccountInfo) error {
	if acc.Key != ClashTokenID {
		return ErrInvalidClashTokenID
	}
	return nil
}

func mintDecimals(acc *svm.AccountInfo) (uint8, error) {
	mint, err := token.DecodeMint(acc.Data)
	if err != nil {
		return 0, err
	}
	return mint.Decimals, nil
}

// custodyBalance decodes the custody token account and requires it to be
// owned by the sale authority.
func custodyBalance(acc *svm.AccountInfo, a ProgramAuthority) (*token.Account, error) {
	custody, err := token.DecodeAccount(acc.Data)
	if err != nil {
		return nil, err
	}
	if !a.Matches(custody.Owner) {
		return nil, ErrInvalidProgramAssociatedPDAOwner
	}
	return custody, nil
}
