// Package system implements the native System Program.
//
// The System Program is responsible for:
//   - Creating new accounts
//   - Transferring lamports
//   - Assigning account ownership
//   - Allocating account space
package system

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// ProgramID is the System Program address.
var ProgramID = types.SystemProgramAddr

// Instruction discriminants.
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// Maximum account data size.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// Error is a System Program custom error.
type Error uint32

// System Program errors, numbered as in Solana's SystemError.
const (
	ErrAccountAlreadyInUse        Error = 0
	ErrResultWithNegativeLamports Error = 1
	ErrInvalidProgramID           Error = 2
	ErrInvalidAccountDataLength   Error = 3
)

var errorMessages = map[Error]string{
	ErrAccountAlreadyInUse:        "an account with the same address already exists",
	ErrResultWithNegativeLamports: "account does not have enough SOL to perform the operation",
	ErrInvalidProgramID:           "cannot assign account to this program id",
	ErrInvalidAccountDataLength:   "cannot allocate account data of this length",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("system error %d", uint32(e))
}

// Code implements svm.CodedError.
func (e Error) Code() uint64 { return uint64(e) }

// CustomCode implements svm.CustomError.
func (e Error) CustomCode() uint32 { return uint32(e) }

// Processor executes System Program instructions.
type Processor struct{}

// NewProcessor creates a new System Program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes a System Program instruction.
func (p *Processor) Process(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return svm.ErrInvalidInstructionData
	}

	instruction := binary.LittleEndian.Uint32(data[:4])

	switch instruction {
	case InstructionCreateAccount:
		return p.processCreateAccount(ctx, accounts, data[4:])
	case InstructionAssign:
		return p.processAssign(ctx, accounts, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ctx, accounts, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ctx, accounts, data[4:])
	default:
		return fmt.Errorf("%w: unsupported system instruction %d", svm.ErrInvalidInstructionData, instruction)
	}
}

// processCreateAccount creates a new account.
// Accounts: [0] funder (signer, writable), [1] new account (signer, writable).
func (p *Processor) processCreateAccount(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) < 48 {
		return svm.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	var owner types.Pubkey
	copy(owner[:], data[16:48])

	if err := svm.CheckAccounts(accounts, 2); err != nil {
		return err
	}
	funder, newAccount := accounts[0], accounts[1]

	if !funder.IsSigner {
		return fmt.Errorf("%w: funder %s", svm.ErrMissingRequiredSignature, funder)
	}
	if !newAccount.IsSigner {
		return fmt.Errorf("%w: new account %s", svm.ErrMissingRequiredSignature, newAccount)
	}

	if newAccount.Owner != ProgramID || len(newAccount.Data) > 0 || newAccount.Lamports > 0 {
		ctx.Logf("Create Account: account %s already in use", newAccount)
		return ErrAccountAlreadyInUse
	}
	if space > MaxAccountDataSize {
		return ErrInvalidAccountDataLength
	}
	if funder.Lamports < lamports {
		ctx.Logf("Transfer: insufficient lamports %d, need %d", funder.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}
	if lamports < ctx.RentMinimum(space) {
		return svm.ErrAccountNotRentExempt
	}

	funder.Lamports -= lamports
	newAccount.Lamports = lamports
	newAccount.Data = make([]byte, space)
	newAccount.Owner = owner

	return nil
}

// processAssign changes the owner of an account.
// Accounts: [0] account (signer, writable).
func (p *Processor) processAssign(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	if len(data) < 32 {
		return svm.ErrInvalidInstructionData
	}
	var newOwner types.Pubkey
	copy(newOwner[:], data[0:32])

	if err := svm.CheckAccounts(accounts, 1); err != nil {
		return err
	}
	account := accounts[0]

	if account.Owner == newOwner {
		return nil
	}
	if !account.IsSigner {
		return fmt.Errorf("%w: account %s", svm.ErrMissingRequiredSignature, account)
	}
	if account.Owner != ProgramID {
		return fmt.Errorf("%w: account %s is owned by %s", svm.ErrIllegalOwner, account, account.Owner)
	}

	account.Owner = newOwner
	return nil
}

// processTransfer transfers lamports between accounts.
// Accounts: [0] from (signer, writable), [1] to (writable).
func (p *Processor) processTransfer(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	if len(data) < 8 {
		return svm.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])

	if err := svm.CheckAccounts(accounts, 2); err != nil {
		return err
	}
	from, to := accounts[0], accounts[1]

	if !from.IsSigner {
		return fmt.Errorf("%w: from %s", svm.ErrMissingRequiredSignature, from)
	}
	if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return svm.ErrInvalidArgument
	}
	if from.Lamports < lamports {
		ctx.Logf("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}
	if to.Lamports > ^uint64(0)-lamports {
		return svm.ErrArithmeticOverflow
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

// processAllocate allocates space in an account.
// Accounts: [0] account (signer, writable).
func (p *Processor) processAllocate(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	if len(data) < 8 {
		return svm.ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])

	if err := svm.CheckAccounts(accounts, 1); err != nil {
		return err
	}
	account := accounts[0]

	if !account.IsSigner {
		return fmt.Errorf("%w: account %s", svm.ErrMissingRequiredSignature, account)
	}
	if len(account.Data) > 0 || account.Owner != ProgramID {
		ctx.Logf("Allocate: account %s already in use", account)
		return ErrAccountAlreadyInUse
	}
	if space > MaxAccountDataSize {
		return ErrInvalidAccountDataLength
	}

	account.Data = make([]byte, space)
	return nil
}
