// Package token implements the subset of the SPL Token Program the sale needs:
// mints, token accounts, minting, transfers and closing accounts.
//
// Account layouts are byte-compatible with SPL Token.
//
// Program ID: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
package token

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// ProgramID is the Token Program address.
var ProgramID = types.TokenProgramAddr

// Processor executes Token Program instructions.
type Processor struct{}

// NewProcessor creates a new Token Program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes a Token Program instruction.
func (p *Processor) Process(ctx svm.InvokeContext, accounts []*svm.AccountInfo, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	switch ix.Kind {
	case InstructionInitializeMint:
		ctx.Log("Instruction: InitializeMint")
		return p.initializeMint(ctx, accounts, ix)
	case InstructionInitializeAccount3:
		ctx.Log("Instruction: InitializeAccount3")
		return p.initializeAccount(ctx, accounts, ix.Owner)
	case InstructionTransfer:
		ctx.Log("Instruction: Transfer")
		return p.transfer(ctx, accounts, ix.Amount, nil)
	case InstructionTransferChecked:
		ctx.Log("Instruction: TransferChecked")
		return p.transfer(ctx, accounts, ix.Amount, &ix.Decimals)
	case InstructionMintTo:
		ctx.Log("Instruction: MintTo")
		return p.mintTo(ctx, accounts, ix.Amount)
	case InstructionCloseAccount:
		ctx.Log("Instruction: CloseAccount")
		return p.closeAccount(ctx, accounts)
	default:
		return fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstruction, ix.Kind)
	}
}

// checkOwned fails unless acc is owned by the Token Program.
func checkOwned(acc *svm.AccountInfo) error {
	if acc.Owner != ProgramID {
		return fmt.Errorf("%w: %s is owned by %s", svm.ErrIncorrectProgramID, acc, acc.Owner)
	}
	return nil
}

// loadMint decodes an initialized mint owned by the Token Program.
func loadMint(acc *svm.AccountInfo) (*Mint, error) {
	if err := checkOwned(acc); err != nil {
		return nil, err
	}
	mint, err := DecodeMint(acc.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", ErrUninitializedState, acc)
	}
	return mint, nil
}

// loadAccount decodes an initialized token account owned by the Token Program.
func loadAccount(acc *svm.AccountInfo) (*Account, error) {
	if err := checkOwned(acc); err != nil {
		return nil, err
	}
	ta, err := DecodeAccount(acc.Data)
	if err != nil {
		return nil, err
	}
	if !ta.IsInitialized() {
		return nil, fmt.Errorf("%w: account %s", ErrUninitializedState, acc)
	}
	return ta, nil
}

// Accounts: [0] mint (writable), [1] rent sysvar.
func (p *Processor) initializeMint(ctx svm.InvokeContext, accounts []*svm.AccountInfo, ix *Instruction) error {
	if err := svm.CheckAccounts(accounts, 1); err != nil {
		return err
	}
	mintAcc := accounts[0]

	if err := checkOwned(mintAcc); err != nil {
		return err
	}
	if len(mintAcc.Data) != MintSize {
		return fmt.Errorf("%w: mint data is %d bytes", svm.ErrInvalidAccountData, len(mintAcc.Data))
	}
	existing, err := DecodeMint(mintAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized {
		return ErrAlreadyInUse
	}
	if mintAcc.Lamports < ctx.RentMinimum(MintSize) {
		return ErrNotRentExempt
	}

	mint := &Mint{
		MintAuthority:   Some(ix.MintAuthority),
		Decimals:        ix.Decimals,
		IsInitialized:   true,
		FreezeAuthority: ix.FreezeAuthority,
	}
	copy(mintAcc.Data, mint.Encode())
	return nil
}

// Accounts: [0] account (writable), [1] mint.
func (p *Processor) initializeAccount(ctx svm.InvokeContext, accounts []*svm.AccountInfo, owner types.Pubkey) error {
	if err := svm.CheckAccounts(accounts, 2); err != nil {
		return err
	}
	tokenAcc, mintAcc := accounts[0], accounts[1]

	if err := checkOwned(tokenAcc); err != nil {
		return err
	}
	existing, err := DecodeAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized() {
		return ErrAlreadyInUse
	}
	if tokenAcc.Lamports < ctx.RentMinimum(AccountSize) {
		return ErrNotRentExempt
	}
	if _, err := loadMint(mintAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}

	account := &Account{
		Mint:  mintAcc.Key,
		Owner: owner,
		State: AccountStateInitialized,
	}
	copy(tokenAcc.Data, account.Encode())
	return nil
}

// transfer moves tokens between accounts of the same mint. With decimals set
// it is TransferChecked and the accounts are [source, mint, destination,
// authority]; otherwise [source, destination, authority].
func (p *Processor) transfer(ctx svm.InvokeContext, accounts []*svm.AccountInfo, amount uint64, decimals *uint8) error {
	var sourceAcc, mintAcc, destAcc, authority *svm.AccountInfo
	if decimals != nil {
		if err := svm.CheckAccounts(accounts, 4); err != nil {
			return err
		}
		sourceAcc, mintAcc, destAcc, authority = accounts[0], accounts[1], accounts[2], accounts[3]
	} else {
		if err := svm.CheckAccounts(accounts, 3); err != nil {
			return err
		}
		sourceAcc, destAcc, authority = accounts[0], accounts[1], accounts[2]
	}

	source, err := loadAccount(sourceAcc)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dest, err := loadAccount(destAcc)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if source.IsFrozen() || dest.IsFrozen() {
		return ErrAccountFrozen
	}
	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}

	if mintAcc != nil {
		if mintAcc.Key != source.Mint {
			return ErrMintMismatch
		}
		mint, err := loadMint(mintAcc)
		if err != nil {
			return err
		}
		if mint.Decimals != *decimals {
			return ErrMintDecimalsMismatch
		}
	}

	isDelegate := source.Delegate.Contains(authority.Key)
	if source.Owner != authority.Key && !isDelegate {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: authority %s", svm.ErrMissingRequiredSignature, authority)
	}

	if source.Amount < amount {
		return ErrInsufficientFunds
	}
	if isDelegate && source.Owner != authority.Key {
		if source.DelegatedAmount < amount {
			return ErrInsufficientFunds
		}
		source.DelegatedAmount -= amount
	}

	if sourceAcc.Key == destAcc.Key {
		return nil
	}
	if dest.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}

	source.Amount -= amount
	dest.Amount += amount

	copy(sourceAcc.Data, source.Encode())
	copy(destAcc.Data, dest.Encode())
	return nil
}

// Accounts: [0] mint (writable), [1] destination (writable), [2] mint authority (signer).
func (p *Processor) mintTo(ctx svm.InvokeContext, accounts []*svm.AccountInfo, amount uint64) error {
	if err := svm.CheckAccounts(accounts, 3); err != nil {
		return err
	}
	mintAcc, destAcc, authority := accounts[0], accounts[1], accounts[2]

	mint, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	dest, err := loadAccount(destAcc)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if dest.IsFrozen() {
		return ErrAccountFrozen
	}
	if dest.Mint != mintAcc.Key {
		return ErrMintMismatch
	}

	if !mint.MintAuthority.IsSome {
		return ErrFixedSupply
	}
	if mint.MintAuthority.Value != authority.Key {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: mint authority %s", svm.ErrMissingRequiredSignature, authority)
	}

	if mint.Supply > ^uint64(0)-amount || dest.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	dest.Amount += amount

	copy(mintAcc.Data, mint.Encode())
	copy(destAcc.Data, dest.Encode())
	return nil
}

// Accounts: [0] account (writable), [1] destination (writable), [2] owner (signer).
func (p *Processor) closeAccount(ctx svm.InvokeContext, accounts []*svm.AccountInfo) error {
	if err := svm.CheckAccounts(accounts, 3); err != nil {
		return err
	}
	closeAcc, destAcc, authority := accounts[0], accounts[1], accounts[2]

	if closeAcc.Key == destAcc.Key {
		return svm.ErrInvalidAccountData
	}

	account, err := loadAccount(closeAcc)
	if err != nil {
		return err
	}
	if account.Amount > 0 && !account.IsNative.IsSome {
		return ErrNonNativeHasBalance
	}

	authorized := account.Owner
	if account.CloseAuthority.IsSome {
		authorized = account.CloseAuthority.Value
	}
	if authorized != authority.Key {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: close authority %s", svm.ErrMissingRequiredSignature, authority)
	}

	if destAcc.Lamports > ^uint64(0)-closeAcc.Lamports {
		return ErrOverflow
	}
	destAcc.Lamports += closeAcc.Lamports
	closeAcc.Lamports = 0

	for i := range closeAcc.Data {
		closeAcc.Data[i] = 0
	}
	return nil
}
