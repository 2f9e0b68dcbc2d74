package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// Account state sizes
const (
	// MintSize is the size of a serialized Mint account (82 bytes)
	MintSize = 82

	// AccountSize is the size of a serialized token Account (165 bytes)
	AccountSize = 165
)

// AccountState values
const (
	AccountStateUninitialized uint8 = 0
	AccountStateInitialized   uint8 = 1
	AccountStateFrozen        uint8 = 2
)

// COption is an optional pubkey: 4 bytes tag + 32 bytes value.
type COption struct {
	IsSome bool
	Value  types.Pubkey
}

// Some returns a populated COption.
func Some(key types.Pubkey) COption {
	return COption{IsSome: true, Value: key}
}

// Contains reports whether the option holds key.
func (o COption) Contains(key types.Pubkey) bool {
	return o.IsSome && o.Value == key
}

// COptionU64 is an optional u64: 4 bytes tag + 8 bytes value.
type COptionU64 struct {
	IsSome bool
	Value  uint64
}

// Mint is a token mint.
// Layout (82 bytes total):
//   - mint_authority: COption<Pubkey> (36 bytes)
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - is_initialized: bool (1 byte)
//   - freeze_authority: COption<Pubkey> (36 bytes)
type Mint struct {
	MintAuthority   COption
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority COption
}

// Account is a token account.
// Layout (165 bytes total):
//   - mint: Pubkey (32 bytes)
//   - owner: Pubkey (32 bytes)
//   - amount: u64 (8 bytes)
//   - delegate: COption<Pubkey> (36 bytes)
//   - state: AccountState (1 byte)
//   - is_native: COption<u64> (12 bytes)
//   - delegated_amount: u64 (8 bytes)
//   - close_authority: COption<Pubkey> (36 bytes)
type Account struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        COption
	State           uint8
	IsNative        COptionU64
	DelegatedAmount uint64
	CloseAuthority  COption
}

// DecodeMint decodes a Mint. The data must be exactly MintSize bytes.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data is %d bytes, expected %d",
			svm.ErrInvalidAccountData, len(data), MintSize)
	}

	mint := &Mint{}
	offset := 0
	var err error

	if mint.MintAuthority, offset, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}

	mint.Supply = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	mint.Decimals = data[offset]
	offset++

	switch data[offset] {
	case 0:
	case 1:
		mint.IsInitialized = true
	default:
		return nil, fmt.Errorf("%w: bad is_initialized flag", svm.ErrInvalidAccountData)
	}
	offset++

	if mint.FreezeAuthority, _, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}
	return mint, nil
}

// Encode serializes the Mint.
func (m *Mint) Encode() []byte {
	data := make([]byte, MintSize)
	offset := encodeCOption(data, 0, m.MintAuthority)

	binary.LittleEndian.PutUint64(data[offset:offset+8], m.Supply)
	offset += 8

	data[offset] = m.Decimals
	offset++

	if m.IsInitialized {
		data[offset] = 1
	}
	offset++

	encodeCOption(data, offset, m.FreezeAuthority)
	return data
}

// DecodeAccount decodes a token Account. The data must be exactly
// AccountSize bytes.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account data is %d bytes, expected %d",
			svm.ErrInvalidAccountData, len(data), AccountSize)
	}

	acc := &Account{}
	offset := 0
	var err error

	copy(acc.Mint[:], data[offset:offset+32])
	offset += 32

	copy(acc.Owner[:], data[offset:offset+32])
	offset += 32

	acc.Amount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	if acc.Delegate, offset, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}

	acc.State = data[offset]
	if acc.State > AccountStateFrozen {
		return nil, fmt.Errorf("%w: bad account state %d", svm.ErrInvalidAccountData, acc.State)
	}
	offset++

	if acc.IsNative, offset, err = decodeCOptionU64(data, offset); err != nil {
		return nil, err
	}

	acc.DelegatedAmount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	if acc.CloseAuthority, _, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}
	return acc, nil
}

// Encode serializes the token Account.
func (a *Account) Encode() []byte {
	data := make([]byte, AccountSize)
	offset := 0

	copy(data[offset:offset+32], a.Mint[:])
	offset += 32

	copy(data[offset:offset+32], a.Owner[:])
	offset += 32

	binary.LittleEndian.PutUint64(data[offset:offset+8], a.Amount)
	offset += 8

	offset = encodeCOption(data, offset, a.Delegate)

	data[offset] = a.State
	offset++

	offset = encodeCOptionU64(data, offset, a.IsNative)

	binary.LittleEndian.PutUint64(data[offset:offset+8], a.DelegatedAmount)
	offset += 8

	encodeCOption(data, offset, a.CloseAuthority)
	return data
}

// IsInitialized reports whether the account has been initialized.
func (a *Account) IsInitialized() bool {
	return a.State != AccountStateUninitialized
}

// IsFrozen returns true if the account is frozen.
func (a *Account) IsFrozen() bool {
	return a.State == AccountStateFrozen
}

func decodeCOption(data []byte, offset int) (COption, int, error) {
	var opt COption
	switch binary.LittleEndian.Uint32(data[offset : offset+4]) {
	case 0:
	case 1:
		opt.IsSome = true
		copy(opt.Value[:], data[offset+4:offset+36])
	default:
		return opt, offset, fmt.Errorf("%w: bad option tag", svm.ErrInvalidAccountData)
	}
	return opt, offset + 36, nil
}

func encodeCOption(data []byte, offset int, opt COption) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		copy(data[offset+4:offset+36], opt.Value[:])
	}
	return offset + 36
}

func decodeCOptionU64(data []byte, offset int) (COptionU64, int, error) {
	var opt COptionU64
	switch binary.LittleEndian.Uint32(data[offset : offset+4]) {
	case 0:
	case 1:
		opt.IsSome = true
		opt.Value = binary.LittleEndian.Uint64(data[offset+4 : offset+12])
	default:
		return opt, offset, fmt.Errorf("%w: bad option tag", svm.ErrInvalidAccountData)
	}
	return opt, offset + 12, nil
}

func encodeCOptionU64(data []byte, offset int, opt COptionU64) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		binary.LittleEndian.PutUint64(data[offset+4:offset+12], opt.Value)
	}
	return offset + 12
}
