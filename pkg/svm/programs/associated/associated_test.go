package associated

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
	"github.com/fortiblox/clash-ico/pkg/svm/svmtest"
)

var (
	funderKey = types.PubkeyFromSeed("funder")
	walletKey = types.PubkeyFromSeed("wallet")
	mintKey   = types.PubkeyFromSeed("mint")
)

// fixture holds the accounts of one Create call and forwards nested
// invocations to the real system and token processors.
type fixture struct {
	ctx      *svmtest.Context
	accounts map[types.Pubkey]*svm.AccountInfo
	list     []*svm.AccountInfo
}

func newFixture(t *testing.T, ix svm.Instruction) *fixture {
	t.Helper()
	mint := &token.Mint{MintAuthority: token.Some(walletKey), Decimals: 6, IsInitialized: true}

	f := &fixture{
		ctx:      svmtest.NewContext(ProgramID),
		accounts: map[types.Pubkey]*svm.AccountInfo{},
	}
	f.add(svmtest.Wallet(funderKey, 10_000_000, true, true))
	f.add(svmtest.Wallet(ix.Accounts[1].Pubkey, 0, false, true))
	f.add(svmtest.Wallet(walletKey, 0, false, false))
	f.add(svmtest.Account(mintKey, token.ProgramID, svm.MinimumBalance(token.MintSize), mint.Encode(), false, false))
	f.add(svmtest.Account(system.ProgramID, types.NativeLoaderAddr, 1, nil, false, false))
	f.add(svmtest.Account(token.ProgramID, types.NativeLoaderAddr, 1, nil, false, false))
	f.add(svmtest.Account(types.SysvarRentAddr, system.ProgramID, 1, nil, false, false))

	f.ctx.OnInvoke = func(nested svm.Instruction, signerSeeds [][][]byte) error {
		var program svm.Program
		switch nested.ProgramID {
		case system.ProgramID:
			program = system.NewProcessor()
		case token.ProgramID:
			program = token.NewProcessor()
		default:
			return svm.ErrUnsupportedProgramID
		}
		infos := make([]*svm.AccountInfo, len(nested.Accounts))
		for i, meta := range nested.Accounts {
			acc := f.accounts[meta.Pubkey]
			infos[i] = &svm.AccountInfo{
				Key:        meta.Pubkey,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    acc.Account,
			}
		}
		return program.Process(svmtest.NewContext(nested.ProgramID), infos, nested.Data)
	}
	return f
}

func (f *fixture) add(acc *svm.AccountInfo) {
	f.accounts[acc.Key] = acc
	f.list = append(f.list, acc)
}

func (f *fixture) run(data []byte) error {
	return NewProcessor().Process(f.ctx, f.list, data)
}

func TestFindAddressIsDeterministic(t *testing.T) {
	a, bumpA, err := FindAddress(walletKey, mintKey)
	require.NoError(t, err)
	b, bumpB, err := FindAddress(walletKey, mintKey)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, bumpA, bumpB)

	other, _, err := FindAddress(funderKey, mintKey)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
	assert.Equal(t, a, MustFindAddress(walletKey, mintKey))
}

func TestCreateBuildsAccountList(t *testing.T) {
	ix := Create(funderKey, walletKey, mintKey)
	require.Len(t, ix.Accounts, 7)
	assert.Equal(t, ProgramID, ix.ProgramID)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.Equal(t, MustFindAddress(walletKey, mintKey), ix.Accounts[1].Pubkey)
	assert.True(t, ix.Accounts[1].IsWritable)
	assert.Equal(t, token.ProgramID, ix.Accounts[5].Pubkey)
}

func TestCreate(t *testing.T) {
	ix := Create(funderKey, walletKey, mintKey)
	f := newFixture(t, ix)

	require.NoError(t, f.run(ix.Data))

	ata := f.accounts[ix.Accounts[1].Pubkey]
	assert.Equal(t, token.ProgramID, ata.Owner)
	assert.Equal(t, svm.MinimumBalance(token.AccountSize), ata.Lamports)
	assert.Equal(t, 10_000_000-svm.MinimumBalance(token.AccountSize), f.accounts[funderKey].Lamports)

	state, err := token.DecodeAccount(ata.Data)
	require.NoError(t, err)
	assert.Equal(t, walletKey, state.Owner)
	assert.Equal(t, mintKey, state.Mint)

	require.Len(t, f.ctx.Invoked, 2)
	_, bump, _ := FindAddress(walletKey, mintKey)
	require.Len(t, f.ctx.Invoked[0].SignerSeeds, 1)
	assert.Equal(t, []byte{bump}, f.ctx.Invoked[0].SignerSeeds[0][3])

	// A second plain Create fails, the idempotent form does not.
	assert.ErrorIs(t, f.run(ix.Data), system.ErrAccountAlreadyInUse)
	assert.NoError(t, f.run(CreateIdempotent(funderKey, walletKey, mintKey).Data))
}

func TestCreateRejectsWrongAddress(t *testing.T) {
	ix := Create(funderKey, walletKey, mintKey)
	ix.Accounts[1].Pubkey = types.PubkeyFromSeed("not-derived")
	f := newFixture(t, ix)

	assert.ErrorIs(t, f.run(ix.Data), svm.ErrInvalidSeeds)
	assert.Empty(t, f.ctx.Invoked)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ix := Create(funderKey, walletKey, mintKey)
	f := newFixture(t, ix)

	assert.ErrorIs(t, f.run([]byte{7}), svm.ErrInvalidInstructionData)
	assert.ErrorIs(t, NewProcessor().Process(f.ctx, f.list[:3], nil), svm.ErrNotEnoughAccountKeys)

	f.list[5] = svmtest.Wallet(types.PubkeyFromSeed("fake-token"), 0, false, false)
	assert.ErrorIs(t, f.run(nil), svm.ErrIncorrectProgramID)
}
