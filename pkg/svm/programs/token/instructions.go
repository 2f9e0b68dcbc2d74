package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// Token Program instruction discriminators (first byte of instruction data)
const (
	InstructionInitializeMint     uint8 = 0
	InstructionTransfer           uint8 = 3
	InstructionMintTo             uint8 = 7
	InstructionCloseAccount       uint8 = 9
	InstructionTransferChecked    uint8 = 12
	InstructionInitializeAccount3 uint8 = 18
)

// Instruction is a decoded Token Program instruction. Only the fields of
// the given Kind are meaningful.
type Instruction struct {
	Kind            uint8
	Amount          uint64
	Decimals        uint8
	Owner           types.Pubkey
	MintAuthority   types.Pubkey
	FreezeAuthority COption
}

// DecodeInstruction parses Token Program instruction data.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: instruction data too short", ErrInvalidInstruction)
	}

	ix := &Instruction{Kind: data[0]}
	rest := data[1:]

	switch ix.Kind {
	case InstructionInitializeMint:
		// decimals (1) + mint_authority (32) + freeze option tag (1) [+ freeze_authority (32)]
		if len(rest) < 34 {
			return nil, fmt.Errorf("%w: InitializeMint requires at least 34 bytes, got %d",
				ErrInvalidInstruction, len(rest))
		}
		ix.Decimals = rest[0]
		copy(ix.MintAuthority[:], rest[1:33])
		switch rest[33] {
		case 0:
		case 1:
			if len(rest) < 66 {
				return nil, fmt.Errorf("%w: InitializeMint with freeze authority requires 66 bytes",
					ErrInvalidInstruction)
			}
			ix.FreezeAuthority.IsSome = true
			copy(ix.FreezeAuthority.Value[:], rest[34:66])
		default:
			return nil, fmt.Errorf("%w: bad freeze authority tag", ErrInvalidInstruction)
		}

	case InstructionInitializeAccount3:
		if len(rest) < 32 {
			return nil, fmt.Errorf("%w: InitializeAccount3 requires 32 bytes", ErrInvalidInstruction)
		}
		copy(ix.Owner[:], rest[:32])

	case InstructionTransfer, InstructionMintTo:
		if len(rest) < 8 {
			return nil, fmt.Errorf("%w: amount requires 8 bytes", ErrInvalidInstruction)
		}
		ix.Amount = binary.LittleEndian.Uint64(rest[:8])

	case InstructionTransferChecked:
		if len(rest) < 9 {
			return nil, fmt.Errorf("%w: TransferChecked requires 9 bytes", ErrInvalidInstruction)
		}
		ix.Amount = binary.LittleEndian.Uint64(rest[:8])
		ix.Decimals = rest[8]

	case InstructionCloseAccount:

	default:
		return nil, fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstruction, ix.Kind)
	}

	return ix, nil
}

// InitializeMint builds an InitializeMint instruction.
// Accounts: [0] mint (writable), [1] rent sysvar.
func InitializeMint(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) svm.Instruction {
	data := make([]byte, 0, 67)
	data = append(data, InstructionInitializeMint, decimals)
	data = append(data, mintAuthority[:]...)
	if freezeAuthority != nil {
		data = append(data, 1)
		data = append(data, freezeAuthority[:]...)
	} else {
		data = append(data, 0)
	}

	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(mint, false, true),
			svm.NewAccountMeta(types.SysvarRentAddr, false, false),
		},
		Data: data,
	}
}

// InitializeAccount3 builds an InitializeAccount3 instruction.
// Accounts: [0] account (writable), [1] mint.
func InitializeAccount3(account, mint, owner types.Pubkey) svm.Instruction {
	data := make([]byte, 0, 33)
	data = append(data, InstructionInitializeAccount3)
	data = append(data, owner[:]...)

	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(account, false, true),
			svm.NewAccountMeta(mint, false, false),
		},
		Data: data,
	}
}

// Transfer builds an unchecked Transfer instruction.
func Transfer(source, destination, authority types.Pubkey, amount uint64) svm.Instruction {
	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(source, false, true),
			svm.NewAccountMeta(destination, false, true),
			svm.NewAccountMeta(authority, true, false),
		},
		Data: amountData(InstructionTransfer, amount),
	}
}

// TransferChecked builds a TransferChecked instruction, which also asserts
// the mint and its decimals.
func TransferChecked(source, mint, destination, authority types.Pubkey, amount uint64, decimals uint8) svm.Instruction {
	data := amountData(InstructionTransferChecked, amount)
	data = append(data, decimals)

	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(source, false, true),
			svm.NewAccountMeta(mint, false, false),
			svm.NewAccountMeta(destination, false, true),
			svm.NewAccountMeta(authority, true, false),
		},
		Data: data,
	}
}

// MintTo builds a MintTo instruction.
func MintTo(mint, destination, authority types.Pubkey, amount uint64) svm.Instruction {
	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(mint, false, true),
			svm.NewAccountMeta(destination, false, true),
			svm.NewAccountMeta(authority, true, false),
		},
		Data: amountData(InstructionMintTo, amount),
	}
}

// CloseAccount builds a CloseAccount instruction returning the account's
// lamports to destination.
func CloseAccount(account, destination, owner types.Pubkey) svm.Instruction {
	return svm.Instruction{
		ProgramID: ProgramID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(account, false, true),
			svm.NewAccountMeta(destination, false, true),
			svm.NewAccountMeta(owner, true, false),
		},
		Data: []byte{InstructionCloseAccount},
	}
}

func amountData(kind uint8, amount uint64) []byte {
	data := make([]byte, 9, 10)
	data[0] = kind
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return data
}
