package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/svmtest"
)

var (
	mintKey   = types.PubkeyFromSeed("mint")
	authority = types.PubkeyFromSeed("mint-authority")
	alice     = types.PubkeyFromSeed("alice")
	bob       = types.PubkeyFromSeed("bob")
	aliceATA  = types.PubkeyFromSeed("alice-token")
	bobATA    = types.PubkeyFromSeed("bob-token")
)

func process(t *testing.T, ix svm.Instruction, accounts ...*svm.AccountInfo) error {
	t.Helper()
	return NewProcessor().Process(svmtest.NewContext(ProgramID), accounts, ix.Data)
}

func mintAccount(t *testing.T, decimals uint8, supply uint64) *svm.AccountInfo {
	t.Helper()
	m := &Mint{
		MintAuthority: Some(authority),
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	}
	return svmtest.Account(mintKey, ProgramID, svm.MinimumBalance(MintSize), m.Encode(), false, true)
}

func tokenAccount(key, owner types.Pubkey, amount uint64) *svm.AccountInfo {
	a := &Account{Mint: mintKey, Owner: owner, Amount: amount, State: AccountStateInitialized}
	return svmtest.Account(key, ProgramID, svm.MinimumBalance(AccountSize), a.Encode(), false, true)
}

func decodeAccount(t *testing.T, acc *svm.AccountInfo) *Account {
	t.Helper()
	ta, err := DecodeAccount(acc.Data)
	require.NoError(t, err)
	return ta
}

func TestStateLayouts(t *testing.T) {
	m := &Mint{
		MintAuthority:   Some(authority),
		Supply:          1_000_000,
		Decimals:        6,
		IsInitialized:   true,
		FreezeAuthority: Some(alice),
	}
	data := m.Encode()
	require.Len(t, data, MintSize)
	assert.Equal(t, []byte{1, 0, 0, 0}, data[:4])
	assert.Equal(t, byte(6), data[44])
	assert.Equal(t, byte(1), data[45])

	decoded, err := DecodeMint(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	a := &Account{
		Mint:     mintKey,
		Owner:    alice,
		Amount:   42,
		State:    AccountStateInitialized,
		IsNative: COptionU64{IsSome: true, Value: 7},
	}
	data = a.Encode()
	require.Len(t, data, AccountSize)
	assert.Equal(t, mintKey[:], data[:32])
	assert.Equal(t, alice[:], data[32:64])
	assert.Equal(t, byte(AccountStateInitialized), data[108])

	decodedAcc, err := DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, a, decodedAcc)
}

func TestDecodeRejectsMalformedState(t *testing.T) {
	_, err := DecodeMint(make([]byte, MintSize-1))
	assert.ErrorIs(t, err, svm.ErrInvalidAccountData)

	_, err = DecodeAccount(make([]byte, AccountSize+1))
	assert.ErrorIs(t, err, svm.ErrInvalidAccountData)

	bad := make([]byte, AccountSize)
	bad[108] = 3
	_, err = DecodeAccount(bad)
	assert.ErrorIs(t, err, svm.ErrInvalidAccountData)

	bad = make([]byte, MintSize)
	bad[0] = 2
	_, err = DecodeMint(bad)
	assert.ErrorIs(t, err, svm.ErrInvalidAccountData)
}

func TestDecodeInstruction(t *testing.T) {
	freeze := alice
	ix, err := DecodeInstruction(InitializeMint(mintKey, 9, authority, &freeze).Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionInitializeMint, ix.Kind)
	assert.Equal(t, uint8(9), ix.Decimals)
	assert.Equal(t, authority, ix.MintAuthority)
	assert.Equal(t, Some(alice), ix.FreezeAuthority)

	ix, err = DecodeInstruction(TransferChecked(aliceATA, mintKey, bobATA, alice, 500, 6).Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionTransferChecked, ix.Kind)
	assert.Equal(t, uint64(500), ix.Amount)
	assert.Equal(t, uint8(6), ix.Decimals)

	ix, err = DecodeInstruction(InitializeAccount3(aliceATA, mintKey, alice).Data)
	require.NoError(t, err)
	assert.Equal(t, alice, ix.Owner)

	for _, data := range [][]byte{
		nil,
		{InstructionTransfer, 1, 2},
		{InstructionTransferChecked, 1, 2, 3, 4, 5, 6, 7, 8},
		{InstructionInitializeAccount3},
		{200},
	} {
		_, err := DecodeInstruction(data)
		assert.ErrorIs(t, err, ErrInvalidInstruction, "data %v", data)
	}
}

func TestInitializeMintAndAccount(t *testing.T) {
	mint := svmtest.Account(mintKey, ProgramID, svm.MinimumBalance(MintSize), make([]byte, MintSize), false, true)
	require.NoError(t, process(t, InitializeMint(mintKey, 6, authority, nil), mint))

	m, err := DecodeMint(mint.Data)
	require.NoError(t, err)
	assert.True(t, m.IsInitialized)
	assert.True(t, m.MintAuthority.Contains(authority))
	assert.False(t, m.FreezeAuthority.IsSome)

	assert.ErrorIs(t, process(t, InitializeMint(mintKey, 6, authority, nil), mint), ErrAlreadyInUse)

	acc := svmtest.Account(aliceATA, ProgramID, svm.MinimumBalance(AccountSize), make([]byte, AccountSize), false, true)
	require.NoError(t, process(t, InitializeAccount3(aliceATA, mintKey, alice), acc, mint))

	ta := decodeAccount(t, acc)
	assert.Equal(t, mintKey, ta.Mint)
	assert.Equal(t, alice, ta.Owner)
	assert.Zero(t, ta.Amount)

	assert.ErrorIs(t, process(t, InitializeAccount3(aliceATA, mintKey, alice), acc, mint), ErrAlreadyInUse)
}

func TestInitializeAccountRequiresRentAndMint(t *testing.T) {
	mint := mintAccount(t, 6, 0)

	poor := svmtest.Account(aliceATA, ProgramID, 1, make([]byte, AccountSize), false, true)
	assert.ErrorIs(t, process(t, InitializeAccount3(aliceATA, mintKey, alice), poor, mint), ErrNotRentExempt)

	acc := svmtest.Account(aliceATA, ProgramID, svm.MinimumBalance(AccountSize), make([]byte, AccountSize), false, true)
	notMint := svmtest.Wallet(mintKey, 1, false, false)
	assert.ErrorIs(t, process(t, InitializeAccount3(aliceATA, mintKey, alice), acc, notMint), ErrInvalidMint)

	foreign := svmtest.Account(aliceATA, alice, svm.MinimumBalance(AccountSize), make([]byte, AccountSize), false, true)
	assert.ErrorIs(t, process(t, InitializeAccount3(aliceATA, mintKey, alice), foreign, mint), svm.ErrIncorrectProgramID)
}

func TestMintTo(t *testing.T) {
	mint := mintAccount(t, 6, 0)
	dest := tokenAccount(aliceATA, alice, 0)
	signer := svmtest.Wallet(authority, 0, true, false)

	require.NoError(t, process(t, MintTo(mintKey, aliceATA, authority, 1_000), mint, dest, signer))
	assert.Equal(t, uint64(1_000), decodeAccount(t, dest).Amount)

	m, err := DecodeMint(mint.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), m.Supply)

	impostor := svmtest.Wallet(bob, 0, true, false)
	assert.ErrorIs(t, process(t, MintTo(mintKey, aliceATA, bob, 1), mint, dest, impostor), ErrOwnerMismatch)

	signer.IsSigner = false
	assert.ErrorIs(t, process(t, MintTo(mintKey, aliceATA, authority, 1), mint, dest, signer), svm.ErrMissingRequiredSignature)
}

func TestTransferChecked(t *testing.T) {
	mint := mintAccount(t, 6, 1_000)
	src := tokenAccount(aliceATA, alice, 1_000)
	dst := tokenAccount(bobATA, bob, 0)
	owner := svmtest.Wallet(alice, 0, true, false)

	require.NoError(t, process(t, TransferChecked(aliceATA, mintKey, bobATA, alice, 400, 6), src, mint, dst, owner))
	assert.Equal(t, uint64(600), decodeAccount(t, src).Amount)
	assert.Equal(t, uint64(400), decodeAccount(t, dst).Amount)

	tests := []struct {
		name    string
		ix      svm.Instruction
		signer  *svm.AccountInfo
		wantErr error
	}{
		{
			name:    "decimals mismatch",
			ix:      TransferChecked(aliceATA, mintKey, bobATA, alice, 1, 9),
			signer:  owner,
			wantErr: ErrMintDecimalsMismatch,
		},
		{
			name:    "insufficient funds",
			ix:      TransferChecked(aliceATA, mintKey, bobATA, alice, 601, 6),
			signer:  owner,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "wrong authority",
			ix:      TransferChecked(aliceATA, mintKey, bobATA, bob, 1, 6),
			signer:  svmtest.Wallet(bob, 0, true, false),
			wantErr: ErrOwnerMismatch,
		},
		{
			name:    "authority did not sign",
			ix:      TransferChecked(aliceATA, mintKey, bobATA, alice, 1, 6),
			signer:  svmtest.Wallet(alice, 0, false, false),
			wantErr: svm.ErrMissingRequiredSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := process(t, tt.ix, src, mint, dst, tt.signer)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, uint64(600), decodeAccount(t, src).Amount)
		})
	}
}

func TestTransferMintMismatch(t *testing.T) {
	src := tokenAccount(aliceATA, alice, 10)
	other := &Account{Mint: types.PubkeyFromSeed("other-mint"), Owner: bob, State: AccountStateInitialized}
	dst := svmtest.Account(bobATA, ProgramID, svm.MinimumBalance(AccountSize), other.Encode(), false, true)
	owner := svmtest.Wallet(alice, 0, true, false)

	assert.ErrorIs(t, process(t, Transfer(aliceATA, bobATA, alice, 1), src, dst, owner), ErrMintMismatch)
}

func TestCloseAccount(t *testing.T) {
	rent := svm.MinimumBalance(AccountSize)
	acc := tokenAccount(aliceATA, alice, 5)
	dest := svmtest.Wallet(alice, 100, true, true)

	assert.ErrorIs(t, process(t, CloseAccount(aliceATA, alice, alice), acc, dest, dest), ErrNonNativeHasBalance)

	acc = tokenAccount(aliceATA, alice, 0)
	require.NoError(t, process(t, CloseAccount(aliceATA, alice, alice), acc, dest, dest))
	assert.Zero(t, acc.Lamports)
	assert.Equal(t, make([]byte, AccountSize), acc.Data)
	assert.Equal(t, 100+rent, dest.Lamports)

	acc = tokenAccount(aliceATA, alice, 0)
	stranger := svmtest.Wallet(bob, 0, true, false)
	assert.ErrorIs(t, process(t, CloseAccount(aliceATA, alice, bob), acc, dest, stranger), ErrOwnerMismatch)
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, "Custom(1)", svm.Status(ErrInsufficientFunds))
	assert.Equal(t, "Custom(18)", svm.Status(ErrMintDecimalsMismatch))
	assert.Equal(t, uint64(4), svm.StatusCode(ErrOwnerMismatch))
}
