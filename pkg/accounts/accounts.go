// Package accounts stores the ledger state the sale runtime executes against.
//
// Every address maps to one Account: a lamport balance, an owner program and
// an opaque data blob. Programs only ever see accounts through the runtime,
// which loads them from a DB before an instruction and writes them back after
// it succeeds. Accounts whose balance drops to zero are removed on write,
// which is how closed sale and custody accounts disappear from the ledger.
//
// Two DB implementations are provided: MemoryDB for tests and short-lived
// simulations, and BadgerDB for a persistent ledger directory.
package accounts

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/fortiblox/clash-ico/internal/types"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrClosed is returned when operating on a closed database.
	ErrClosed = errors.New("database closed")

	// ErrInvalidData is returned when a serialized account is malformed.
	ErrInvalidData = errors.New("invalid account data")
)

// MaxDataSize bounds the data of a single account.
const MaxDataSize = 10 * 1024 * 1024

// Account is a single ledger entry.
type Account struct {
	// Lamports is the account balance (1 SOL = 1e9 lamports).
	Lamports uint64

	// Data is owned by, and only writable by, the Owner program.
	Data []byte

	// Owner is the program allowed to debit the account and change its data.
	Owner types.Pubkey

	// Executable marks program accounts.
	Executable bool

	RentEpoch uint64
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dataCopy := make([]byte, len(a.Data))
	copy(dataCopy, a.Data)
	return &Account{
		Lamports:   a.Lamports,
		Data:       dataCopy,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
}

// IsZero reports whether the account holds no lamports. Such accounts are
// deleted on write whatever their data.
func (a *Account) IsZero() bool {
	return a.Lamports == 0
}

// Size returns the serialized size of the account.
func (a *Account) Size() int {
	// lamports, data_len, data, owner, executable, rent_epoch
	return 8 + 8 + len(a.Data) + 32 + 1 + 8
}

// Serialize encodes the account for storage:
// lamports (8) | data_len (8) | data | owner (32) | executable (1) | rent_epoch (8).
func (a *Account) Serialize() []byte {
	buf := make([]byte, a.Size())
	binary.LittleEndian.PutUint64(buf[0:], a.Lamports)
	binary.LittleEndian.PutUint64(buf[8:], uint64(len(a.Data)))
	offset := 16 + copy(buf[16:], a.Data)
	offset += copy(buf[offset:], a.Owner[:])
	if a.Executable {
		buf[offset] = 1
	}
	binary.LittleEndian.PutUint64(buf[offset+1:], a.RentEpoch)
	return buf
}

// DeserializeAccount decodes an account written by Serialize.
func DeserializeAccount(data []byte) (*Account, error) {
	const fixed = 8 + 8 + 32 + 1 + 8
	if len(data) < fixed {
		return nil, errors.Wrapf(ErrInvalidData, "%d bytes", len(data))
	}

	dataLen := binary.LittleEndian.Uint64(data[8:])
	if dataLen > MaxDataSize || uint64(len(data)) != fixed+dataLen {
		return nil, errors.Wrapf(ErrInvalidData, "data length %d in %d bytes", dataLen, len(data))
	}

	acc := &Account{
		Lamports: binary.LittleEndian.Uint64(data[0:]),
		Data:     make([]byte, dataLen),
	}
	offset := 16 + copy(acc.Data, data[16:])
	offset += copy(acc.Owner[:], data[offset:])
	acc.Executable = data[offset] != 0
	acc.RentEpoch = binary.LittleEndian.Uint64(data[offset+1:])
	return acc, nil
}

// DB is the accounts database interface.
// Implementations must be safe for concurrent use.
type DB interface {
	// GetAccount returns a copy of the account, or ErrAccountNotFound.
	GetAccount(pubkey types.Pubkey) (*Account, error)

	// SetAccount stores a copy of account. Zero-lamport accounts are deleted.
	SetAccount(pubkey types.Pubkey, account *Account) error

	// DeleteAccount removes an account. Missing accounts are not an error.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount checks if an account exists.
	HasAccount(pubkey types.Pubkey) (bool, error)

	// IterateAccounts calls fn for every account in ascending pubkey order
	// and stops at the first error fn returns.
	IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error

	// AccountsCount returns the number of stored accounts.
	AccountsCount() (uint64, error)

	// Close closes the database.
	Close() error
}

// MemoryDB is an in-memory DB.
type MemoryDB struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*Account
	closed   bool
}

// NewMemoryDB creates a new in-memory accounts database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[types.Pubkey]*Account),
	}
}

// GetAccount retrieves an account.
func (m *MemoryDB) GetAccount(pubkey types.Pubkey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	acc, ok := m.accounts[pubkey]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// SetAccount stores an account.
func (m *MemoryDB) SetAccount(pubkey types.Pubkey, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if account.IsZero() {
		delete(m.accounts, pubkey)
		return nil
	}
	m.accounts[pubkey] = account.Clone()
	return nil
}

// DeleteAccount removes an account.
func (m *MemoryDB) DeleteAccount(pubkey types.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.accounts, pubkey)
	return nil
}

// HasAccount checks if an account exists.
func (m *MemoryDB) HasAccount(pubkey types.Pubkey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.accounts[pubkey]
	return ok, nil
}

// IterateAccounts visits accounts in ascending pubkey order. The callback
// runs on copies, without the lock held.
func (m *MemoryDB) IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]types.Pubkey, 0, len(m.accounts))
	copies := make(map[types.Pubkey]*Account, len(m.accounts))
	for k, v := range m.accounts {
		keys = append(keys, k)
		copies[k] = v.Clone()
	}
	m.mu.RUnlock()

	SortPubkeys(keys)
	for _, k := range keys {
		if err := fn(k, copies[k]); err != nil {
			return err
		}
	}
	return nil
}

// AccountsCount returns the number of accounts.
func (m *MemoryDB) AccountsCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.accounts)), nil
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.accounts = nil
	return nil
}

// SortPubkeys sorts pubkeys in ascending byte order.
func SortPubkeys(pubkeys []types.Pubkey) {
	sort.Slice(pubkeys, func(i, j int) bool {
		return pubkeys[i].Compare(pubkeys[j]) < 0
	})
}

var _ DB = (*MemoryDB)(nil)
