package sale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

func TestDecodeInstructionEmpty(t *testing.T) {
	_, err := DecodeInstruction(nil)
	assert.Equal(t, ErrInvalidInstructionDataEmpty, err)

	_, err = DecodeInstruction([]byte{})
	assert.Equal(t, ErrInvalidInstructionDataEmpty, err)
}

func TestDecodeInstructionUnknownTag(t *testing.T) {
	for tag := 4; tag <= 255; tag++ {
		for _, tail := range [][]byte{nil, {0}, make([]byte, 8)} {
			data := append([]byte{byte(tag)}, tail...)
			_, err := DecodeInstruction(data)
			require.Equal(t, ErrInvalidProgramInstruction, err, "tag %d", tag)
		}
	}
}

func TestDecodeInstructionTags(t *testing.T) {
	ix, err := DecodeInstruction([]byte{0})
	require.NoError(t, err)
	assert.Equal(t, InstructionInitialize, ix.Kind)

	// Payload-less instructions do not look past the tag.
	ix, err = DecodeInstruction([]byte{3, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, InstructionTerminate, ix.Kind)
}

func TestDecodeInstructionBadPayload(t *testing.T) {
	for _, tag := range []byte{1, 2} {
		for _, n := range []int{0, 1, 7, 9, 16} {
			data := append([]byte{tag}, make([]byte, n)...)
			_, err := DecodeInstruction(data)
			assert.ErrorIs(t, err, svm.ErrInvalidInstructionData, "tag %d payload %d", tag, n)
		}
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	for _, amount := range []uint64{0, 1, 2_000_000_000, math.MaxUint64 - 1, math.MaxUint64} {
		exchange := &Instruction{Kind: InstructionExchange, Exchange: ExchangeRequest{SolAsLamportsAmount: amount}}
		decoded, err := DecodeInstruction(exchange.Pack())
		require.NoError(t, err)
		assert.Equal(t, amount, decoded.Exchange.SolAsLamportsAmount)

		payment := &Instruction{Kind: InstructionExecutePayment, Payment: PaymentConfirmation{ClashTokenAmount: amount}}
		decoded, err = DecodeInstruction(payment.Pack())
		require.NoError(t, err)
		assert.Equal(t, amount, decoded.Payment.ClashTokenAmount)
	}
}

func TestPackLayout(t *testing.T) {
	assert.Equal(t, []byte{0}, (&Instruction{Kind: InstructionInitialize}).Pack())
	assert.Equal(t, []byte{3}, (&Instruction{Kind: InstructionTerminate}).Pack())
	assert.Equal(t,
		[]byte{1, 0x00, 0x94, 0x35, 0x77, 0, 0, 0, 0},
		(&Instruction{Kind: InstructionExchange, Exchange: ExchangeRequest{SolAsLamportsAmount: 2_000_000_000}}).Pack())
	assert.Equal(t,
		[]byte{2, 1, 0, 0, 0, 0, 0, 0, 0},
		(&Instruction{Kind: InstructionExecutePayment, Payment: PaymentConfirmation{ClashTokenAmount: 1}}).Pack())
}

func TestInstructionBuilders(t *testing.T) {
	initializer := types.PubkeyFromSeed("initializer")
	payer := types.PubkeyFromSeed("payer")
	auth := MustDeriveProgramAuthority(ProgramID)

	initIx := Initialize(ProgramID, initializer, payer)
	require.Len(t, initIx.Accounts, 9)
	assert.Equal(t, auth.Address(), initIx.Accounts[3].Pubkey)
	assert.Equal(t, CustodyAddress(auth), initIx.Accounts[4].Pubkey)
	assert.True(t, initIx.Accounts[0].IsSigner)

	exchange := Exchange(ProgramID, payer, 5)
	require.Len(t, exchange.Accounts, 11)
	assert.Equal(t, TreasuryWallet, exchange.Accounts[2].Pubkey)
	assert.Equal(t, ProgramID, exchange.Accounts[5].Pubkey)

	payment := ExecutePayment(ProgramID, payer, PaymentAuthority, 5)
	require.Len(t, payment.Accounts, 11)
	assert.True(t, payment.Accounts[3].IsSigner)

	terminate := Terminate(ProgramID, initializer, payer)
	require.Len(t, terminate.Accounts, 6)
	assert.Equal(t, []byte{3}, terminate.Data)
}

func TestInstructionKindString(t *testing.T) {
	assert.Equal(t, "Exchange", InstructionExchange.String())
	assert.Equal(t, "InstructionKind(9)", InstructionKind(9).String())
}

func TestSaleRecord(t *testing.T) {
	r := &SaleRecord{
		Initializer:             types.PubkeyFromSeed("initializer"),
		InitializerTokenAccount: types.PubkeyFromSeed("initializer-token"),
	}
	data := r.Encode()
	require.Len(t, data, SaleRecordSize)
	assert.Equal(t, r.Initializer[:], data[:32])

	decoded, err := DecodeSaleRecord(data)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)

	for _, n := range []int{0, 63, 65} {
		_, err := DecodeSaleRecord(make([]byte, n))
		assert.ErrorIs(t, err, svm.ErrInvalidAccountData)
	}
}
