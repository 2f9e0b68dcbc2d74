package accounts

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/clash-ico/internal/types"
)

// ComputeAccountHash hashes one account with BLAKE3 over
// lamports || rent_epoch || data || executable || owner || pubkey.
// Zero-lamport accounts hash to the zero hash.
func ComputeAccountHash(pubkey types.Pubkey, account *Account) types.Hash {
	if account == nil || account.IsZero() {
		return types.Hash{}
	}

	buf := make([]byte, 8+8+len(account.Data)+1+32+32)
	binary.LittleEndian.PutUint64(buf[0:], account.Lamports)
	binary.LittleEndian.PutUint64(buf[8:], account.RentEpoch)
	offset := 16 + copy(buf[16:], account.Data)
	if account.Executable {
		buf[offset] = 1
	}
	offset++
	offset += copy(buf[offset:], account.Owner[:])
	copy(buf[offset:], pubkey[:])

	return blake3.Sum256(buf)
}

// ComputeStateHash returns the Merkle root of every account hash in pubkey
// order. Two ledgers with the same accounts always produce the same hash.
func ComputeStateHash(db DB) (types.Hash, error) {
	var hashes []types.Hash
	err := db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	return ComputeMerkleRoot(hashes), nil
}

// ComputeMerkleRoot computes a binary Merkle root.
//
// Tree structure:
//   - Leaf: BLAKE3(0x00 || hash)
//   - Node: BLAKE3(0x01 || left || right)
//   - An odd node out is paired with the zero hash
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		level[i] = leafHash(h)
	}
	for len(level) > 1 {
		next := make([]types.Hash, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var right types.Hash
			if i+1 < len(level) {
				right = level[i+1]
			}
			next[i/2] = nodeHash(level[i], right)
		}
		level = next
	}
	return level[0]
}

func leafHash(data types.Hash) types.Hash {
	var buf [1 + 32]byte
	copy(buf[1:], data[:])
	return blake3.Sum256(buf[:])
}

func nodeHash(left, right types.Hash) types.Hash {
	var buf [1 + 32 + 32]byte
	buf[0] = 0x01
	copy(buf[1:], left[:])
	copy(buf[33:], right[:])
	return blake3.Sum256(buf[:])
}
