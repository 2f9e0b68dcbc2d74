package sale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
	"github.com/fortiblox/clash-ico/pkg/svm/svmtest"
)

const (
	sol          = uint64(LamportsPerSOL)
	testDecimals = uint8(6)
	custodyStock = uint64(1_000_000) * 1_000_000 // one million whole tokens
)

var (
	initializerKey = types.PubkeyFromSeed("initializer")
	payerKey       = types.PubkeyFromSeed("payer")
)

// ledger is a flat account map for driving the processor without the
// runtime. Nested invocations run the real native programs against it.
// There is no rollback: tests only inspect state after successes or after
// failures that precede every effect.
type ledger struct {
	t         *testing.T
	accounts  map[types.Pubkey]*accounts.Account
	processor *Processor
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	l := &ledger{
		t:         t,
		accounts:  map[types.Pubkey]*accounts.Account{},
		processor: NewProcessor(),
	}
	for _, program := range []types.Pubkey{system.ProgramID, token.ProgramID, associated.ProgramID, ProgramID} {
		l.accounts[program] = &accounts.Account{Lamports: 1, Owner: types.NativeLoaderAddr, Executable: true}
	}
	l.accounts[types.SysvarRentAddr] = &accounts.Account{Lamports: 1, Owner: system.ProgramID}

	l.fund(initializerKey, 100*sol)
	l.fund(payerKey, 10*sol)
	l.fund(TreasuryWallet, 1)
	l.fund(PaymentAuthority, sol)

	mint := &token.Mint{MintAuthority: token.Some(initializerKey), Decimals: testDecimals, IsInitialized: true}
	l.accounts[ClashTokenID] = &accounts.Account{
		Lamports: svm.MinimumBalance(token.MintSize),
		Data:     mint.Encode(),
		Owner:    token.ProgramID,
	}
	l.tokenAccount(initializerTokenKey(), initializerKey, 0)
	return l
}

func initializerTokenKey() types.Pubkey {
	return associated.MustFindAddress(initializerKey, ClashTokenID)
}

func payerTokenKey() types.Pubkey {
	return associated.MustFindAddress(payerKey, ClashTokenID)
}

func custodyKey() types.Pubkey {
	return CustodyAddress(MustDeriveProgramAuthority(ProgramID))
}

func saleKey() types.Pubkey {
	return MustDeriveProgramAuthority(ProgramID).Address()
}

func (l *ledger) fund(key types.Pubkey, lamports uint64) {
	l.accounts[key] = &accounts.Account{Lamports: lamports, Owner: system.ProgramID}
}

func (l *ledger) tokenAccount(key, owner types.Pubkey, amount uint64) {
	ta := &token.Account{Mint: ClashTokenID, Owner: owner, Amount: amount, State: token.AccountStateInitialized}
	l.accounts[key] = &accounts.Account{
		Lamports: svm.MinimumBalance(token.AccountSize),
		Data:     ta.Encode(),
		Owner:    token.ProgramID,
	}
}

// account returns the stored account, creating an empty system-owned one
// for unknown keys.
func (l *ledger) account(key types.Pubkey) *accounts.Account {
	acc, ok := l.accounts[key]
	if !ok {
		acc = &accounts.Account{Owner: system.ProgramID}
		l.accounts[key] = acc
	}
	return acc
}

func (l *ledger) lamports(key types.Pubkey) uint64 {
	return l.account(key).Lamports
}

func (l *ledger) tokens(key types.Pubkey) uint64 {
	l.t.Helper()
	ta, err := token.DecodeAccount(l.account(key).Data)
	require.NoError(l.t, err)
	return ta.Amount
}

func (l *ledger) infos(metas []svm.AccountMeta) []*svm.AccountInfo {
	infos := make([]*svm.AccountInfo, len(metas))
	for i, meta := range metas {
		infos[i] = &svm.AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    l.account(meta.Pubkey),
		}
	}
	return infos
}

func (l *ledger) context(program types.Pubkey) *svmtest.Context {
	ctx := svmtest.NewContext(program)
	ctx.OnInvoke = func(ix svm.Instruction, _ [][][]byte) error {
		var p svm.Program
		switch ix.ProgramID {
		case system.ProgramID:
			p = system.NewProcessor()
		case token.ProgramID:
			p = token.NewProcessor()
		case associated.ProgramID:
			p = associated.NewProcessor()
		default:
			return svm.ErrUnsupportedProgramID
		}
		nested := l.context(ix.ProgramID)
		err := p.Process(nested, l.infos(ix.Accounts), ix.Data)
		ctx.Logs = append(ctx.Logs, nested.Logs...)
		return err
	}
	return ctx
}

// run executes a sale instruction and returns the program context.
func (l *ledger) run(ix svm.Instruction) (*svmtest.Context, error) {
	ctx := l.context(ProgramID)
	return ctx, l.processor.Process(ctx, l.infos(ix.Accounts), ix.Data)
}

// initialize runs Initialize and stocks the custody account.
func (l *ledger) initialize() {
	l.t.Helper()
	_, err := l.run(Initialize(ProgramID, initializerKey, initializerTokenKey()))
	require.NoError(l.t, err)

	mintTo := token.MintTo(ClashTokenID, custodyKey(), initializerKey, custodyStock)
	err = token.NewProcessor().Process(svmtest.NewContext(token.ProgramID), l.infos(mintTo.Accounts), mintTo.Data)
	require.NoError(l.t, err)
}

// snapshot copies every balance for before/after comparisons.
func (l *ledger) snapshot() map[types.Pubkey]accounts.Account {
	out := make(map[types.Pubkey]accounts.Account, len(l.accounts))
	for k, v := range l.accounts {
		out[k] = *v.Clone()
	}
	return out
}

// assertUnchanged fails if any account captured in before has changed.
func (l *ledger) assertUnchanged(before map[types.Pubkey]accounts.Account) {
	l.t.Helper()
	for key, want := range before {
		assert.Equal(l.t, want, *l.account(key).Clone(), "account %s", key)
	}
}

// collect drops zero-lamport accounts the way the runtime does on commit.
func (l *ledger) collect() {
	for key, acc := range l.accounts {
		if acc.Lamports == 0 {
			delete(l.accounts, key)
		}
	}
}
