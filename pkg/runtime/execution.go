package runtime

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/pda"
)

// execution is the state of one transaction.
type execution struct {
	runtime *Runtime
	meter   *svm.ComputeMeter
	logs    []string

	// working holds the transaction's copy of every referenced account.
	// AccountInfo views at every depth share these pointers.
	working map[types.Pubkey]*accounts.Account

	// loaded holds the accounts as read, for commit.
	loaded map[types.Pubkey]*accounts.Account
	order  []types.Pubkey
}

// load reads every account referenced by tx. Unknown addresses become empty
// system-owned accounts.
func (e *execution) load(tx *Transaction) error {
	e.working = make(map[types.Pubkey]*accounts.Account)
	e.loaded = make(map[types.Pubkey]*accounts.Account)

	add := func(key types.Pubkey) error {
		if _, ok := e.working[key]; ok {
			return nil
		}
		acc, err := e.runtime.db.GetAccount(key)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			acc = &accounts.Account{Owner: types.SystemProgramAddr}
		} else if err != nil {
			return errors.Wrapf(err, "load account %s", key)
		}
		e.loaded[key] = acc.Clone()
		e.working[key] = acc
		e.order = append(e.order, key)
		return nil
	}

	for _, ix := range tx.Instructions {
		if err := add(ix.ProgramID); err != nil {
			return err
		}
		for _, meta := range ix.Accounts {
			if err := add(meta.Pubkey); err != nil {
				return err
			}
		}
	}
	return nil
}

// commit writes back every account that differs from what was loaded and
// returns their keys in sorted order.
func (e *execution) commit() ([]types.Pubkey, error) {
	var modified []types.Pubkey
	for _, key := range e.order {
		if equalAccounts(e.loaded[key], e.working[key]) {
			continue
		}
		if err := e.runtime.db.SetAccount(key, e.working[key]); err != nil {
			return nil, errors.Wrapf(err, "store account %s", key)
		}
		modified = append(modified, key)
	}
	accounts.SortPubkeys(modified)
	return modified, nil
}

func (e *execution) log(format string, args ...any) {
	e.logs = append(e.logs, fmt.Sprintf(format, args...))
}

// run executes one program invocation at the given depth, then checks the
// account rules for everything it changed.
func (e *execution) run(programID types.Pubkey, infos []*svm.AccountInfo, data []byte, depth int) error {
	e.log("Program %s invoke [%d]", programID, depth)

	err := e.dispatch(programID, infos, data, depth)
	if err != nil {
		e.log("Program %s failed: %s", programID, svm.Status(err))
		return err
	}
	e.log("Program %s success", programID)
	return nil
}

func (e *execution) dispatch(programID types.Pubkey, infos []*svm.AccountInfo, data []byte, depth int) error {
	registered, ok := e.runtime.programs[programID]
	if !ok {
		return svm.ErrUnsupportedProgramID
	}
	if acc := e.working[programID]; acc == nil || !acc.Executable {
		return errors.Wrapf(svm.ErrUnsupportedProgramID, "program account %s is not executable", programID)
	}

	before := e.meter.Consumed()
	if err := e.meter.Consume(registered.cost); err != nil {
		return err
	}

	inv := newInvocation(e, programID, infos, depth)
	err := registered.program.Process(inv, infos, data)
	if err == nil {
		err = inv.verify()
	}
	e.log("Program %s consumed %d of %d compute units",
		programID, e.meter.Consumed()-before, e.meter.Limit())
	return err
}

// invocation is the svm.InvokeContext of one running program.
type invocation struct {
	exec      *execution
	programID types.Pubkey
	depth     int
	infos     []*svm.AccountInfo

	// keys are the distinct accounts of the invocation with merged privileges.
	keys     []types.Pubkey
	signer   map[types.Pubkey]bool
	writable map[types.Pubkey]bool

	// pre is the state the program's own changes are measured against.
	pre map[types.Pubkey]*accounts.Account
}

func newInvocation(e *execution, programID types.Pubkey, infos []*svm.AccountInfo, depth int) *invocation {
	inv := &invocation{
		exec:      e,
		programID: programID,
		depth:     depth,
		infos:     infos,
		signer:    make(map[types.Pubkey]bool),
		writable:  make(map[types.Pubkey]bool),
		pre:       make(map[types.Pubkey]*accounts.Account),
	}
	for _, info := range infos {
		if _, seen := inv.pre[info.Key]; !seen {
			inv.keys = append(inv.keys, info.Key)
			inv.pre[info.Key] = info.Account.Clone()
		}
		inv.signer[info.Key] = inv.signer[info.Key] || info.IsSigner
		inv.writable[info.Key] = inv.writable[info.Key] || info.IsWritable
	}
	return inv
}

// ProgramID implements svm.InvokeContext.
func (inv *invocation) ProgramID() types.Pubkey { return inv.programID }

// Log implements svm.InvokeContext.
func (inv *invocation) Log(msg string) { inv.exec.log("Program log: %s", msg) }

// Logf implements svm.InvokeContext.
func (inv *invocation) Logf(format string, args ...any) { inv.Log(fmt.Sprintf(format, args...)) }

// RentMinimum implements svm.InvokeContext.
func (inv *invocation) RentMinimum(dataLen uint64) uint64 { return svm.MinimumBalance(dataLen) }

// ConsumeCU implements svm.InvokeContext.
func (inv *invocation) ConsumeCU(cost uint64) error { return inv.exec.meter.Consume(cost) }

// Invoke implements svm.InvokeContext. Every account of ix must be an account
// of the caller; it may be a signer only if the caller has it as a signer or
// it is derived from signerSeeds under the caller's program id, and writable
// only if the caller has it writable.
func (inv *invocation) Invoke(ix svm.Instruction, signerSeeds ...[][]byte) error {
	if inv.depth >= svm.CPIDepthMax {
		return svm.ErrCallDepth
	}
	if err := inv.ConsumeCU(svm.CUInvokeBase); err != nil {
		return err
	}

	derived := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := pda.CreateProgramAddress(seeds, inv.programID)
		if err != nil {
			return err
		}
		derived[addr] = true
	}

	infos := make([]*svm.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		if _, ok := inv.pre[meta.Pubkey]; !ok {
			inv.Logf("Instruction references an unknown account %s", meta.Pubkey)
			return svm.ErrMissingAccount
		}
		if meta.IsSigner && !inv.signer[meta.Pubkey] && !derived[meta.Pubkey] {
			inv.Logf("%s's signer privilege escalated", meta.Pubkey)
			return svm.ErrPrivilegeEscalation
		}
		if meta.IsWritable && !inv.writable[meta.Pubkey] {
			inv.Logf("%s's writable privilege escalated", meta.Pubkey)
			return svm.ErrPrivilegeEscalation
		}
		infos[i] = &svm.AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    inv.exec.working[meta.Pubkey],
		}
	}

	// The caller's own changes so far must be legal before the callee sees them.
	if err := inv.verify(); err != nil {
		return err
	}
	if err := inv.exec.run(ix.ProgramID, infos, ix.Data, inv.depth+1); err != nil {
		return err
	}
	// The callee's changes were verified on its return.
	for _, meta := range ix.Accounts {
		inv.pre[meta.Pubkey] = inv.exec.working[meta.Pubkey].Clone()
	}
	return nil
}

// verify checks the changes the program made to its accounts since pre:
// read-only accounts are untouched, only the owner debits an account or
// changes its data or owner, executable flags never change and lamports are
// conserved.
func (inv *invocation) verify() error {
	var preTotal, postTotal uint64
	for _, key := range inv.keys {
		pre, post := inv.pre[key], inv.exec.working[key]
		preTotal += pre.Lamports
		postTotal += post.Lamports

		dataChanged := !bytes.Equal(pre.Data, post.Data)
		if !inv.writable[key] {
			switch {
			case pre.Lamports != post.Lamports:
				return errors.Wrapf(svm.ErrReadonlyLamportChange, "account %s", key)
			case dataChanged || pre.Owner != post.Owner:
				return errors.Wrapf(svm.ErrReadonlyDataModified, "account %s", key)
			}
			continue
		}

		owned := pre.Owner == inv.programID
		switch {
		case pre.Executable != post.Executable:
			return errors.Wrapf(svm.ErrExecutableModified, "account %s", key)
		case pre.Owner != post.Owner && !owned:
			return errors.Wrapf(svm.ErrModifiedProgramID, "account %s", key)
		case post.Lamports < pre.Lamports && !owned:
			return errors.Wrapf(svm.ErrExternalAccountLamportSpend, "account %s", key)
		case dataChanged && !owned:
			return errors.Wrapf(svm.ErrExternalAccountDataModified, "account %s", key)
		}
	}
	if preTotal != postTotal {
		return errors.Wrapf(svm.ErrUnbalancedInstruction, "%d lamports before, %d after", preTotal, postTotal)
	}
	return nil
}

func equalAccounts(a, b *accounts.Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		a.RentEpoch == b.RentEpoch &&
		bytes.Equal(a.Data, b.Data)
}
