// Package journal records every transaction the runtime executes: the
// instructions sent, the outcome, the program logs and the accounts written.
// Entries are numbered from 1 in execution order and never rewritten.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/clash-ico/internal/types"
)

var (
	// ErrEntryNotFound is returned when a sequence number has no entry.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

var (
	// bucketEntries stores gob-encoded entries keyed by sequence.
	bucketEntries = []byte("entries")

	// bucketByAccount indexes sequences by written account: pubkey | seq.
	bucketByAccount = []byte("by_account")
)

// StatusOk is the status of a successful transaction.
const StatusOk = "Ok"

// Instruction is a journaled instruction.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []types.Pubkey
	Data      []byte
}

// Entry is one executed transaction.
type Entry struct {
	Seq          uint64
	Time         time.Time
	Instructions []Instruction

	// Status is "Ok", a host error name or "Custom(n)"; Code is its numeric form.
	Status string
	Code   uint64

	ComputeUnits uint64
	Logs         []string

	// Modified lists the accounts written back to the ledger, sorted.
	Modified []types.Pubkey
}

// Succeeded reports whether the transaction was applied.
func (e *Entry) Succeeded() bool {
	return e.Status == StatusOk
}

// Config holds journal configuration options.
type Config struct {
	// Path is the journal database file.
	Path string

	// NoSync disables fsync after each append.
	NoSync bool

	// ReadOnly opens the journal without write access.
	ReadOnly bool
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Store is a bbolt-backed journal.
type Store struct {
	db *bolt.DB

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a journal.
func Open(config Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "create directory")
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}

	if !config.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, name := range [][]byte{bucketEntries, bucketByAccount} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return errors.Wrapf(err, "create bucket %s", name)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func accountKey(pubkey types.Pubkey, seq uint64) []byte {
	key := make([]byte, types.PubkeySize+8)
	copy(key, pubkey[:])
	binary.BigEndian.PutUint64(key[types.PubkeySize:], seq)
	return key
}

// Append stores e under the next sequence number, which is written to e.Seq
// and returned.
func (s *Store) Append(e *Entry) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(e); err != nil {
			return errors.Wrap(err, "encode entry")
		}
		if err := entries.Put(seqKey(seq), buf.Bytes()); err != nil {
			return err
		}

		byAccount := tx.Bucket(bucketByAccount)
		for _, pubkey := range e.Modified {
			if err := byAccount.Put(accountKey(pubkey, seq), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "append entry")
	}
	return e.Seq, nil
}

// Get returns the entry with sequence number seq.
func (s *Store) Get(seq uint64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, err = getEntry(tx, seq)
		return err
	})
	return entry, err
}

func getEntry(tx *bolt.Tx, seq uint64) (*Entry, error) {
	b := tx.Bucket(bucketEntries)
	if b == nil {
		return nil, ErrEntryNotFound
	}
	data := b.Get(seqKey(seq))
	if data == nil {
		return nil, ErrEntryNotFound
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, errors.Wrapf(err, "decode entry %d", seq)
	}
	return &entry, nil
}

// List returns up to limit entries, newest first. A limit of 0 returns all.
func (s *Store) List(limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []*Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry Entry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&entry); err != nil {
				return errors.Wrapf(err, "decode entry %d", binary.BigEndian.Uint64(k))
			}
			out = append(out, &entry)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// ListByAccount returns up to limit entries that wrote pubkey, newest first.
func (s *Store) ListByAccount(pubkey types.Pubkey, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []*Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketByAccount)
		if b == nil {
			return nil
		}
		c := b.Cursor()

		// Seek past the last possible key for pubkey, then walk back.
		k, _ := c.Seek(accountKey(pubkey, ^uint64(0)))
		if k == nil {
			k, _ = c.Last()
		}
		for ; k != nil; k, _ = c.Prev() {
			if !bytes.HasPrefix(k, pubkey[:]) {
				if bytes.Compare(k, pubkey[:]) < 0 {
					break
				}
				continue
			}
			entry, err := getEntry(tx, binary.BigEndian.Uint64(k[types.PubkeySize:]))
			if err != nil {
				return err
			}
			out = append(out, entry)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Count returns the number of entries.
func (s *Store) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketEntries); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return uint64(n), err
}

// Close closes the journal.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.db.Close()
}
