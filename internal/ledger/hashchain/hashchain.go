// Package hashchain implements the pure digest operations underlying the
// ledger. The exact byte layout below is the published verification
// contract that external auditors replicate; any change breaks
// verifiability of previously issued hashes and must be versioned.
//
// Contract (version 1):
//
//   - DataHash = lowercase hex SHA-256 of the canonical JSON encoding of the
//     payload. Canonical JSON means encoding/json output: object keys sorted
//     lexicographically, no insignificant whitespace.
//   - BlockHash = lowercase hex SHA-256 of the UTF-8 string
//     "<blockNumber><timestampMillis><dataHash><previousHash><nonce>"
//     where the numeric fields are base-10 with no padding and no separator
//     between fields.
//   - The genesis block carries the previous-hash sentinel "0".
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"aidchain/internal/ledger/models"
)

// ErrEncoding reports a payload that cannot be canonically serialized.
var ErrEncoding = errors.New("payload not serializable")

// Hash canonicalizes data and returns its hex SHA-256 digest. Identical
// logical input always yields an identical digest: encoding/json emits map
// keys in sorted order, so key insertion order never leaks into the hash.
func Hash(data map[string]any) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// BlockHash computes a block's hash from the five chained fields. Field
// order and decimal formatting are fixed by the package contract.
func BlockHash(blockNumber uint64, timestampMillis int64, dataHash, previousHash string, nonce int64) string {
	input := strconv.FormatUint(blockNumber, 10) +
		strconv.FormatInt(timestampMillis, 10) +
		dataHash +
		previousHash +
		strconv.FormatInt(nonce, 10)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyBlockHash recomputes the block hash from the block's own fields and
// compares it to the stored value.
func VerifyBlockHash(b models.Block) bool {
	expected := BlockHash(b.BlockNumber, b.Timestamp.UnixMilli(), b.DataHash, b.PreviousHash, b.Nonce)
	return expected == b.Hash
}

// VerifyDataHash reports whether data hashes to storedDataHash.
func VerifyDataHash(data map[string]any, storedDataHash string) (bool, error) {
	digest, err := Hash(data)
	if err != nil {
		return false, err
	}
	return digest == storedDataHash, nil
}

// VerifyLink checks that current chains onto previous: the stored previous
// hash must equal the predecessor's hash and the numbering must be
// contiguous. A genesis block is valid iff it is block 1 carrying the
// sentinel previous hash.
func VerifyLink(current, previous models.Block) (bool, models.FailureReason) {
	if current.IsGenesis() {
		if current.PreviousHash != models.GenesisPreviousHash {
			return false, models.ReasonPreviousHashMismatch
		}
		return true, ""
	}
	if current.BlockNumber != previous.BlockNumber+1 {
		return false, models.ReasonSequenceGap
	}
	if current.PreviousHash != previous.Hash {
		return false, models.ReasonPreviousHashMismatch
	}
	return true, ""
}

// MerkleRoot reduces a list of hex digests to a single root by pairwise
// hashing, duplicating the last element when a level has odd length. Used
// when several transactions are summarized into one block. An empty list
// yields an empty root.
func MerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	level := make([]string, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			sum := sha256.Sum256([]byte(level[i] + level[i+1]))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		level = next
	}
	return level[0]
}
