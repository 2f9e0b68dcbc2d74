package sale

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// InstructionKind is the tag in the first byte of sale instruction data.
type InstructionKind uint8

// Sale instructions.
const (
	InstructionInitialize     InstructionKind = 0
	InstructionExchange       InstructionKind = 1
	InstructionExecutePayment InstructionKind = 2
	InstructionTerminate      InstructionKind = 3
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionInitialize:
		return "Initialize"
	case InstructionExchange:
		return "Exchange"
	case InstructionExecutePayment:
		return "ExecutePayment"
	case InstructionTerminate:
		return "Terminate"
	default:
		return fmt.Sprintf("InstructionKind(%d)", uint8(k))
	}
}

// Instruction is a decoded sale instruction. Exchange is set only for
// InstructionExchange and Payment only for InstructionExecutePayment.
type Instruction struct {
	Kind     InstructionKind
	Exchange ExchangeRequest
	Payment  PaymentConfirmation
}

// DecodeInstruction parses instruction data. Decoding is all-or-nothing.
// Trailing bytes after the tag of Initialize and Terminate are ignored; the
// payload of Exchange and ExecutePayment must be exactly one u64.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstructionDataEmpty
	}

	ix := &Instruction{Kind: InstructionKind(data[0])}
	payload := data[1:]

	switch ix.Kind {
	case InstructionInitialize, InstructionTerminate:
	case InstructionExchange:
		amount, err := decodeAmount(payload)
		if err != nil {
			return nil, err
		}
		ix.Exchange.SolAsLamportsAmount = amount
	case InstructionExecutePayment:
		amount, err := decodeAmount(payload)
		if err != nil {
			return nil, err
		}
		ix.Payment.ClashTokenAmount = amount
	default:
		return nil, ErrInvalidProgramInstruction
	}
	return ix, nil
}

func decodeAmount(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("%w: amount payload is %d bytes, expected 8",
			svm.ErrInvalidInstructionData, len(payload))
	}
	return binary.LittleEndian.Uint64(payload), nil
}

// Pack encodes the instruction into its canonical byte form.
func (ix *Instruction) Pack() []byte {
	switch ix.Kind {
	case InstructionExchange:
		return packAmount(ix.Kind, ix.Exchange.SolAsLamportsAmount)
	case InstructionExecutePayment:
		return packAmount(ix.Kind, ix.Payment.ClashTokenAmount)
	default:
		return []byte{byte(ix.Kind)}
	}
}

func packAmount(kind InstructionKind, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = byte(kind)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

// Initialize builds an Initialize instruction for the sale deployed at
// programID. The initializer funds the sale record and custody account.
func Initialize(programID, initializer, initializerTokenAccount types.Pubkey) svm.Instruction {
	authority := MustDeriveProgramAuthority(programID)
	return svm.Instruction{
		ProgramID: programID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(initializer, true, true),
			svm.NewAccountMeta(initializerTokenAccount, false, false),
			svm.NewAccountMeta(ClashTokenID, false, true),
			svm.NewAccountMeta(authority.Address(), false, true),
			svm.NewAccountMeta(CustodyAddress(authority), false, true),
			svm.NewAccountMeta(system.ProgramID, false, false),
			svm.NewAccountMeta(token.ProgramID, false, false),
			svm.NewAccountMeta(associated.ProgramID, false, false),
			svm.NewAccountMeta(types.SysvarRentAddr, false, false),
		},
		Data: (&Instruction{Kind: InstructionInitialize}).Pack(),
	}
}

// Exchange builds an Exchange instruction offering lamports from payer. The
// payer's associated token account receives the tokens.
func Exchange(programID, payer types.Pubkey, lamports uint64) svm.Instruction {
	authority := MustDeriveProgramAuthority(programID)
	ix := &Instruction{Kind: InstructionExchange, Exchange: ExchangeRequest{SolAsLamportsAmount: lamports}}
	return svm.Instruction{
		ProgramID: programID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(payer, true, true),
			svm.NewAccountMeta(associated.MustFindAddress(payer, ClashTokenID), false, true),
			svm.NewAccountMeta(TreasuryWallet, false, true),
			svm.NewAccountMeta(CustodyAddress(authority), false, true),
			svm.NewAccountMeta(ClashTokenID, false, false),
			svm.NewAccountMeta(programID, false, false),
			svm.NewAccountMeta(authority.Address(), false, false),
			svm.NewAccountMeta(system.ProgramID, false, false),
			svm.NewAccountMeta(token.ProgramID, false, false),
			svm.NewAccountMeta(associated.ProgramID, false, false),
			svm.NewAccountMeta(types.SysvarRentAddr, false, false),
		},
		Data: ix.Pack(),
	}
}

// ExecutePayment builds an ExecutePayment instruction crediting amount
// tokens to payer, confirmed by trusted. The payer is marked as signer and
// writable because it funds its token account when that does not exist yet.
func ExecutePayment(programID, payer, trusted types.Pubkey, amount uint64) svm.Instruction {
	authority := MustDeriveProgramAuthority(programID)
	ix := &Instruction{Kind: InstructionExecutePayment, Payment: PaymentConfirmation{ClashTokenAmount: amount}}
	return svm.Instruction{
		ProgramID: programID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(payer, true, true),
			svm.NewAccountMeta(associated.MustFindAddress(payer, ClashTokenID), false, true),
			svm.NewAccountMeta(ClashTokenID, false, false),
			svm.NewAccountMeta(trusted, true, false),
			svm.NewAccountMeta(CustodyAddress(authority), false, true),
			svm.NewAccountMeta(programID, false, false),
			svm.NewAccountMeta(authority.Address(), false, false),
			svm.NewAccountMeta(system.ProgramID, false, false),
			svm.NewAccountMeta(token.ProgramID, false, false),
			svm.NewAccountMeta(associated.ProgramID, false, false),
			svm.NewAccountMeta(types.SysvarRentAddr, false, false),
		},
		Data: ix.Pack(),
	}
}

// Terminate builds a Terminate instruction. Leftover tokens go to
// initializerTokenAccount, every lamport held by the sale to initializer.
func Terminate(programID, initializer, initializerTokenAccount types.Pubkey) svm.Instruction {
	authority := MustDeriveProgramAuthority(programID)
	return svm.Instruction{
		ProgramID: programID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(initializer, true, true),
			svm.NewAccountMeta(initializerTokenAccount, false, true),
			svm.NewAccountMeta(ClashTokenID, false, true),
			svm.NewAccountMeta(authority.Address(), false, true),
			svm.NewAccountMeta(CustodyAddress(authority), false, true),
			svm.NewAccountMeta(token.ProgramID, false, false),
		},
		Data: (&Instruction{Kind: InstructionTerminate}).Pack(),
	}
}
