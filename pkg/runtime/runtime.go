// Package runtime executes transactions of native program instructions
// against an accounts database.
//
// A transaction runs all-or-nothing: accounts are loaded into a working set,
// every instruction runs against it, and only if all of them succeed are the
// changed accounts written back. Programs call each other through
// svm.InvokeContext.Invoke; the runtime checks signer and writable privileges
// of every nested call and enforces the ownership rules on account changes
// after each program returns.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/journal"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// ErrEmptyTransaction is returned for transactions without instructions.
var ErrEmptyTransaction = errors.New("transaction has no instructions")

// Journal receives a record of every executed transaction.
type Journal interface {
	Append(e *journal.Entry) (uint64, error)
}

// Transaction is an ordered list of instructions executed atomically.
type Transaction struct {
	Instructions []svm.Instruction

	// ComputeLimit caps compute units for the whole transaction.
	// Zero means svm.CUDefault.
	ComputeLimit uint64
}

// Result is the outcome of a transaction.
type Result struct {
	// Err is the instruction error that aborted the transaction, or nil.
	Err error

	// Seq is the journal sequence number, when a journal is attached.
	Seq uint64

	Logs         []string
	ComputeUnits uint64

	// Modified lists the accounts written back, sorted. Empty on failure.
	Modified []types.Pubkey
}

// Status returns the outcome name: "Ok", a host error name or "Custom(n)".
func (r *Result) Status() string {
	return svm.Status(r.Err)
}

type registeredProgram struct {
	program svm.Program
	cost    uint64
}

// Runtime executes transactions. It is safe for concurrent use; transactions
// are applied one at a time.
type Runtime struct {
	mu sync.Mutex

	db       accounts.DB
	programs map[types.Pubkey]registeredProgram
	journal  Journal
	log      *logrus.Entry
	now      func() time.Time
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithJournal records every transaction in j.
func WithJournal(j Journal) Option {
	return func(r *Runtime) { r.journal = j }
}

// WithLogger sets the process logger.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Runtime) { r.log = log }
}

// New creates a runtime over db with the system, token, associated token and
// sale programs registered.
func New(db accounts.DB, opts ...Option) *Runtime {
	r := &Runtime{
		db:       db,
		programs: make(map[types.Pubkey]registeredProgram),
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "runtime")

	r.Register(system.ProgramID, system.NewProcessor(), svm.CUSystemProgramDefault)
	r.Register(token.ProgramID, token.NewProcessor(), svm.CUTokenProgramDefault)
	r.Register(associated.ProgramID, associated.NewProcessor(), svm.CUAssociatedTokenDefault)
	r.Register(sale.ProgramID, sale.NewProcessor(), svm.CUSaleProgramDefault)
	return r
}

// Register installs a native program under id, charging cost compute units
// per invocation. A later registration replaces an earlier one.
func (r *Runtime) Register(id types.Pubkey, p svm.Program, cost uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = registeredProgram{program: p, cost: cost}
}

// InstallPrograms writes an executable account for every registered program
// and the rent sysvar, unless present.
func (r *Runtime) InstallPrograms() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	install := func(key types.Pubkey, acc *accounts.Account) error {
		exists, err := r.db.HasAccount(key)
		if err != nil || exists {
			return err
		}
		return errors.Wrapf(r.db.SetAccount(key, acc), "install %s", key)
	}

	for id := range r.programs {
		acc := &accounts.Account{Lamports: 1, Owner: types.NativeLoaderAddr, Executable: true}
		if err := install(id, acc); err != nil {
			return err
		}
	}
	return install(types.SysvarRentAddr, &accounts.Account{
		Lamports: svm.MinimumBalance(17),
		Data:     make([]byte, 17),
		Owner:    types.MustPubkeyFromBase58("Sysvar1111111111111111111111111111111111111"),
	})
}

// Execute runs tx. Instruction failures are reported in Result.Err with a nil
// error; the returned error is reserved for storage and journal failures and
// context cancellation, in which case nothing was written.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Result, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limit := tx.ComputeLimit
	if limit == 0 {
		limit = svm.CUDefault
	}
	exec := &execution{
		runtime: r,
		meter:   svm.NewComputeMeter(limit),
	}

	if err := exec.load(tx); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		infos := make([]*svm.AccountInfo, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			infos[j] = &svm.AccountInfo{
				Key:        meta.Pubkey,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    exec.working[meta.Pubkey],
			}
		}
		if err := exec.run(ix.ProgramID, infos, ix.Data, 1); err != nil {
			result.Err = err
			r.log.WithFields(logrus.Fields{
				"instruction": i,
				"program":     ix.ProgramID.String(),
				"status":      svm.Status(err),
			}).Info("transaction failed")
			break
		}
	}

	result.Logs = exec.logs
	result.ComputeUnits = exec.meter.Consumed()

	if result.Err == nil {
		modified, err := exec.commit()
		if err != nil {
			return nil, err
		}
		result.Modified = modified
	}

	if r.journal != nil {
		seq, err := r.journal.Append(r.journalEntry(tx, result))
		if err != nil {
			return nil, errors.Wrap(err, "journal transaction")
		}
		result.Seq = seq
	}

	r.log.WithFields(logrus.Fields{
		"instructions": len(tx.Instructions),
		"status":       result.Status(),
		"cu":           result.ComputeUnits,
		"modified":     len(result.Modified),
	}).Debug("transaction executed")
	return result, nil
}

func (r *Runtime) journalEntry(tx *Transaction, result *Result) *journal.Entry {
	e := &journal.Entry{
		Time:         r.now().UTC(),
		Status:       result.Status(),
		Code:         svm.StatusCode(result.Err),
		ComputeUnits: result.ComputeUnits,
		Logs:         result.Logs,
		Modified:     result.Modified,
	}
	for _, ix := range tx.Instructions {
		keys := make([]types.Pubkey, len(ix.Accounts))
		for i, meta := range ix.Accounts {
			keys[i] = meta.Pubkey
		}
		e.Instructions = append(e.Instructions, journal.Instruction{
			ProgramID: ix.ProgramID,
			Accounts:  keys,
			Data:      ix.Data,
		})
	}
	return e
}
