// Package svmtest provides helpers for unit-testing native programs without a
// full runtime.
package svmtest

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// Context is an in-memory svm.InvokeContext. Nested invocations are recorded
// and, when OnInvoke is set, forwarded to it.
type Context struct {
	Program  types.Pubkey
	Logs     []string
	Invoked  []Invocation
	OnInvoke func(ix svm.Instruction, signerSeeds [][][]byte) error
	Meter    *svm.ComputeMeter
}

// Invocation is a recorded nested call.
type Invocation struct {
	Instruction svm.Instruction
	SignerSeeds [][][]byte
}

// NewContext returns a context executing as program.
func NewContext(program types.Pubkey) *Context {
	return &Context{
		Program: program,
		Meter:   svm.NewComputeMeterDisabled(),
	}
}

// ProgramID implements svm.InvokeContext.
func (c *Context) ProgramID() types.Pubkey { return c.Program }

// Log implements svm.InvokeContext.
func (c *Context) Log(msg string) { c.Logs = append(c.Logs, msg) }

// Logf implements svm.InvokeContext.
func (c *Context) Logf(format string, args ...any) { c.Log(fmt.Sprintf(format, args...)) }

// RentMinimum implements svm.InvokeContext.
func (c *Context) RentMinimum(dataLen uint64) uint64 { return svm.MinimumBalance(dataLen) }

// ConsumeCU implements svm.InvokeContext.
func (c *Context) ConsumeCU(cost uint64) error { return c.Meter.Consume(cost) }

// Invoke implements svm.InvokeContext.
func (c *Context) Invoke(ix svm.Instruction, signerSeeds ...[][]byte) error {
	c.Invoked = append(c.Invoked, Invocation{Instruction: ix, SignerSeeds: signerSeeds})
	if c.OnInvoke != nil {
		return c.OnInvoke(ix, signerSeeds)
	}
	return nil
}

// Account builds an AccountInfo with the given flags over a fresh account.
func Account(key types.Pubkey, owner types.Pubkey, lamports uint64, data []byte, isSigner, isWritable bool) *svm.AccountInfo {
	return &svm.AccountInfo{
		Key:        key,
		IsSigner:   isSigner,
		IsWritable: isWritable,
		Account: &accounts.Account{
			Lamports: lamports,
			Data:     data,
			Owner:    owner,
		},
	}
}

// Wallet builds a system-owned, data-less account.
func Wallet(key types.Pubkey, lamports uint64, isSigner, isWritable bool) *svm.AccountInfo {
	return Account(key, types.SystemProgramAddr, lamports, nil, isSigner, isWritable)
}
