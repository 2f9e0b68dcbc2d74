package accounts

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/fortiblox/clash-ico/internal/types"
)

const snapshotVersion uint32 = 1

var snapshotMagic = []byte{'C', 'L', 'S', 'N'}

var (
	// ErrSnapshotNotFound is returned when a snapshot file doesn't exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupted is returned when a snapshot fails validation.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")
)

// SnapshotHeader describes a ledger snapshot.
type SnapshotHeader struct {
	Version       uint32
	AccountsCount uint64
	StateHash     types.Hash
}

// Snapshot layout:
//   - Magic (4 bytes): "CLSN"
//   - Version (4 bytes, little-endian)
//   - AccountsCount (8 bytes, little-endian)
//   - StateHash (32 bytes)
//   - zstd stream, per account: pubkey (32) | size (4, LE) | Account.Serialize
const snapshotHeaderSize = 4 + 4 + 8 + 32

// WriteSnapshot exports every account of db to w.
func WriteSnapshot(w io.Writer, db DB) (*SnapshotHeader, error) {
	stateHash, err := ComputeStateHash(db)
	if err != nil {
		return nil, errors.Wrap(err, "compute state hash")
	}
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}
	header := &SnapshotHeader{Version: snapshotVersion, AccountsCount: count, StateHash: stateHash}

	if _, err := w.Write(header.encode()); err != nil {
		return nil, errors.Wrap(err, "write header")
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, errors.Wrap(err, "init zstd writer")
	}
	bw := bufio.NewWriter(enc)

	var written uint64
	err = db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		data := account.Serialize()
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
		if _, err := bw.Write(pubkey[:]); err != nil {
			return err
		}
		if _, err := bw.Write(size[:]); err != nil {
			return err
		}
		_, err := bw.Write(data)
		written++
		return err
	})
	if err == nil {
		err = bw.Flush()
	}
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrap(err, "write accounts")
	}
	if written != count {
		return nil, errors.Errorf("ledger changed during snapshot: counted %d, wrote %d", count, written)
	}
	return header, nil
}

// ReadSnapshot imports the accounts of a snapshot into db and verifies the
// state hash of what was read against the header.
func ReadSnapshot(r io.Reader, db DB) (*SnapshotHeader, error) {
	var raw [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, errors.Wrap(ErrSnapshotCorrupted, "short header")
	}
	header, err := decodeSnapshotHeader(raw[:])
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "init zstd reader")
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	hashes := make([]types.Hash, 0, header.AccountsCount)
	for i := uint64(0); i < header.AccountsCount; i++ {
		var pubkey types.Pubkey
		if _, err := io.ReadFull(br, pubkey[:]); err != nil {
			return nil, errors.Wrapf(ErrSnapshotCorrupted, "account %d: read pubkey: %v", i, err)
		}
		var size [4]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			return nil, errors.Wrapf(ErrSnapshotCorrupted, "account %d: read size: %v", i, err)
		}
		n := binary.LittleEndian.Uint32(size[:])
		if n > MaxDataSize+64 {
			return nil, errors.Wrapf(ErrSnapshotCorrupted, "account %d: size %d", i, n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, errors.Wrapf(ErrSnapshotCorrupted, "account %d: read data: %v", i, err)
		}
		account, err := DeserializeAccount(data)
		if err != nil {
			return nil, errors.Wrapf(ErrSnapshotCorrupted, "account %d: %v", i, err)
		}
		if err := db.SetAccount(pubkey, account); err != nil {
			return nil, errors.Wrapf(err, "restore account %s", pubkey)
		}
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
	}

	if ComputeMerkleRoot(hashes) != header.StateHash {
		return nil, errors.Wrap(ErrSnapshotCorrupted, "state hash mismatch")
	}
	return header, nil
}

// WriteSnapshotFile writes a snapshot of db to path, creating parent
// directories as needed.
func WriteSnapshotFile(path string, db DB) (*SnapshotHeader, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create snapshot directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create snapshot file")
	}
	header, err := WriteSnapshot(f, db)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "close snapshot file")
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return header, nil
}

// ReadSnapshotFile restores the snapshot at path into db.
func ReadSnapshotFile(path string, db DB) (*SnapshotHeader, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	defer f.Close()
	return ReadSnapshot(bufio.NewReader(f), db)
}

func (h *SnapshotHeader) encode() []byte {
	buf := make([]byte, snapshotHeaderSize)
	copy(buf, snapshotMagic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.AccountsCount)
	copy(buf[16:], h.StateHash[:])
	return buf
}

func decodeSnapshotHeader(buf []byte) (*SnapshotHeader, error) {
	if !bytes.Equal(buf[:4], snapshotMagic) {
		return nil, errors.Wrapf(ErrSnapshotCorrupted, "bad magic %q", buf[:4])
	}
	h := &SnapshotHeader{
		Version:       binary.LittleEndian.Uint32(buf[4:]),
		AccountsCount: binary.LittleEndian.Uint64(buf[8:]),
	}
	if h.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", h.Version)
	}
	copy(h.StateHash[:], buf[16:])
	return h, nil
}
