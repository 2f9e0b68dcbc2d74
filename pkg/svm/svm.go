// Package svm defines the host primitives shared by the native programs and the
// runtime that executes them: account views, instructions, the invoke context
// and the generic instruction error table.
//
// Programs never touch the ledger directly. Each invocation receives the
// accounts named by its instruction as AccountInfo views and reaches other
// programs only through InvokeContext.Invoke.
package svm

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
)

// AccountInfo is a program's view of one account for the duration of an
// invocation. The embedded Account is shared by every view of the same key
// within a transaction, so writes are visible to callers and callees alike.
type AccountInfo struct {
	Key        types.Pubkey
	IsSigner   bool
	IsWritable bool

	*accounts.Account
}

// String identifies the account in log lines.
func (a *AccountInfo) String() string {
	return a.Key.String()
}

// AccountMeta describes an account in an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta builds an AccountMeta.
func NewAccountMeta(pubkey types.Pubkey, isSigner, isWritable bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: isWritable}
}

// Instruction is a single program call: the program to run, the accounts it
// may touch and an opaque payload.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// InvokeContext is the host surface available to a running program.
type InvokeContext interface {
	// ProgramID returns the id of the program currently executing.
	ProgramID() types.Pubkey

	// Log records a program log message.
	Log(msg string)

	// Logf records a formatted program log message.
	Logf(format string, args ...any)

	// RentMinimum returns the rent-exempt minimum balance for dataLen bytes.
	RentMinimum(dataLen uint64) uint64

	// ConsumeCU charges compute units against the transaction budget.
	ConsumeCU(cost uint64) error

	// Invoke runs a nested instruction. Each entry of signerSeeds is the full
	// seed list (bump included) of an address derived from the calling
	// program; such addresses are treated as signers of the nested call.
	Invoke(ix Instruction, signerSeeds ...[][]byte) error
}

// Program is a natively implemented on-ledger program.
type Program interface {
	Process(ctx InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error

// Process calls f.
func (f ProgramFunc) Process(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// CheckAccounts fails with ErrNotEnoughAccountKeys if fewer than n accounts
// were supplied.
func CheckAccounts(accounts []*AccountInfo, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: expected %d, got %d", ErrNotEnoughAccountKeys, n, len(accounts))
	}
	return nil
}
