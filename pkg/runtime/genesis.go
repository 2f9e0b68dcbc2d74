package runtime

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// Genesis describes the starting ledger of a sale simulation.
type Genesis struct {
	// Balances are credited to system-owned wallets before anything runs.
	Balances map[types.Pubkey]uint64

	// MintAuthority creates and controls the sale token mint. It must be
	// funded in Balances and is the only wallet able to initialize the sale.
	MintAuthority types.Pubkey

	// Decimals of the sale token.
	Decimals uint8
}

// ErrGenesisApplied is returned by ApplyGenesis on a ledger that already
// holds the sale token mint.
var ErrGenesisApplied = errors.New("genesis already applied")

// ApplyGenesis installs the native programs, funds the genesis wallets and
// creates the sale token mint together with the mint authority's token
// account. It fails without writing anything if the mint or any wallet in
// Balances already exists.
func (r *Runtime) ApplyGenesis(ctx context.Context, g Genesis) error {
	exists, err := r.db.HasAccount(sale.ClashTokenID)
	if err != nil {
		return errors.Wrap(err, "check mint")
	}
	if exists {
		return errors.Wrapf(ErrGenesisApplied, "mint %s exists", sale.ClashTokenID)
	}
	for key := range g.Balances {
		exists, err := r.db.HasAccount(key)
		if err != nil {
			return errors.Wrapf(err, "check %s", key)
		}
		if exists {
			return errors.Errorf("genesis wallet %s already exists", key)
		}
	}

	if err := r.InstallPrograms(); err != nil {
		return err
	}

	for key, lamports := range g.Balances {
		acc := &accounts.Account{Lamports: lamports, Owner: system.ProgramID}
		if err := r.db.SetAccount(key, acc); err != nil {
			return errors.Wrapf(err, "fund %s", key)
		}
	}

	mint := sale.ClashTokenID
	tx := &Transaction{Instructions: []svm.Instruction{
		system.CreateAccount(g.MintAuthority, mint, svm.MinimumBalance(token.MintSize), token.MintSize, token.ProgramID),
		token.InitializeMint(mint, g.Decimals, g.MintAuthority, nil),
		associated.Create(g.MintAuthority, g.MintAuthority, mint),
	}}
	result, err := r.Execute(ctx, tx)
	if err != nil {
		return err
	}
	if result.Err != nil {
		return errors.Wrapf(result.Err, "create mint %s", mint)
	}
	return nil
}
