package hashchain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidchain/internal/ledger/models"
)

func TestHash(t *testing.T) {
	t.Run("is deterministic across repeated calls", func(t *testing.T) {
		data := map[string]any{"amount": 3, "item": "rice", "unit": "kg"}
		first, err := Hash(data)
		require.NoError(t, err)
		second, err := Hash(data)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("is independent of key insertion order", func(t *testing.T) {
		a := map[string]any{}
		a["zeta"] = 1
		a["alpha"] = 2
		b := map[string]any{}
		b["alpha"] = 2
		b["zeta"] = 1

		hashA, err := Hash(a)
		require.NoError(t, err)
		hashB, err := Hash(b)
		require.NoError(t, err)
		assert.Equal(t, hashA, hashB)
	})

	t.Run("distinct payloads yield distinct digests", func(t *testing.T) {
		hashA, err := Hash(map[string]any{"x": 1})
		require.NoError(t, err)
		hashB, err := Hash(map[string]any{"x": 2})
		require.NoError(t, err)
		assert.NotEqual(t, hashA, hashB)
	})

	t.Run("returns 64 lowercase hex characters", func(t *testing.T) {
		digest, err := Hash(map[string]any{"x": 1})
		require.NoError(t, err)
		assert.Len(t, digest, 64)
		assert.Equal(t, strings.ToLower(digest), digest)
	})

	t.Run("unserializable payload fails with encoding error", func(t *testing.T) {
		_, err := Hash(map[string]any{"ch": make(chan int)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncoding)
	})
}

func TestBlockHash(t *testing.T) {
	t.Run("same inputs yield same digest", func(t *testing.T) {
		first := BlockHash(7, 1700000000000, "dh", "ph", 42)
		second := BlockHash(7, 1700000000000, "dh", "ph", 42)
		assert.Equal(t, first, second)
	})

	t.Run("every field participates in the digest", func(t *testing.T) {
		base := BlockHash(7, 1700000000000, "dh", "ph", 42)
		assert.NotEqual(t, base, BlockHash(8, 1700000000000, "dh", "ph", 42))
		assert.NotEqual(t, base, BlockHash(7, 1700000000001, "dh", "ph", 42))
		assert.NotEqual(t, base, BlockHash(7, 1700000000000, "dx", "ph", 42))
		assert.NotEqual(t, base, BlockHash(7, 1700000000000, "dh", "px", 42))
		assert.NotEqual(t, base, BlockHash(7, 1700000000000, "dh", "ph", 43))
	})
}

func buildBlock(t *testing.T, number uint64, prevHash string) models.Block {
	t.Helper()
	data := map[string]any{"n": number}
	dataHash, err := Hash(data)
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Millisecond)
	b := models.Block{
		BlockNumber:     number,
		PreviousHash:    prevHash,
		Nonce:           int64(number) * 31,
		TransactionType: models.TypeSystemEvent,
		Data:            data,
		DataHash:        dataHash,
		Timestamp:       ts,
	}
	b.Hash = BlockHash(b.BlockNumber, ts.UnixMilli(), b.DataHash, b.PreviousHash, b.Nonce)
	return b
}

func TestVerifyBlockHash(t *testing.T) {
	t.Run("accepts untouched block", func(t *testing.T) {
		b := buildBlock(t, 3, "prev")
		assert.True(t, VerifyBlockHash(b))
	})

	t.Run("rejects mutated nonce", func(t *testing.T) {
		b := buildBlock(t, 3, "prev")
		b.Nonce++
		assert.False(t, VerifyBlockHash(b))
	})

	t.Run("rejects mutated previous hash", func(t *testing.T) {
		b := buildBlock(t, 3, "prev")
		b.PreviousHash = "forged"
		assert.False(t, VerifyBlockHash(b))
	})
}

func TestVerifyDataHash(t *testing.T) {
	data := map[string]any{"item": "tents", "qty": 4}
	digest, err := Hash(data)
	require.NoError(t, err)

	ok, err := VerifyDataHash(data, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	data["qty"] = 5
	ok, err = VerifyDataHash(data, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyLink(t *testing.T) {
	t.Run("valid consecutive pair", func(t *testing.T) {
		prev := buildBlock(t, 4, "earlier")
		curr := buildBlock(t, 5, prev.Hash)
		ok, reason := VerifyLink(curr, prev)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("previous hash mismatch", func(t *testing.T) {
		prev := buildBlock(t, 4, "earlier")
		curr := buildBlock(t, 5, "not-the-prev-hash")
		ok, reason := VerifyLink(curr, prev)
		assert.False(t, ok)
		assert.Equal(t, models.ReasonPreviousHashMismatch, reason)
	})

	t.Run("sequence gap", func(t *testing.T) {
		prev := buildBlock(t, 4, "earlier")
		curr := buildBlock(t, 6, prev.Hash)
		ok, reason := VerifyLink(curr, prev)
		assert.False(t, ok)
		assert.Equal(t, models.ReasonSequenceGap, reason)
	})

	t.Run("genesis with sentinel is valid", func(t *testing.T) {
		genesis := buildBlock(t, 1, models.GenesisPreviousHash)
		ok, reason := VerifyLink(genesis, models.Block{})
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("genesis without sentinel is invalid", func(t *testing.T) {
		genesis := buildBlock(t, 1, "deadbeef")
		ok, reason := VerifyLink(genesis, models.Block{})
		assert.False(t, ok)
		assert.Equal(t, models.ReasonPreviousHashMismatch, reason)
	})
}

func TestMerkleRoot(t *testing.T) {
	t.Run("empty list yields empty root", func(t *testing.T) {
		assert.Empty(t, MerkleRoot(nil))
	})

	t.Run("single element reduces to itself", func(t *testing.T) {
		assert.Equal(t, "abc", MerkleRoot([]string{"abc"}))
	})

	t.Run("odd list duplicates the last element", func(t *testing.T) {
		root3 := MerkleRoot([]string{"a", "b", "c"})
		root4 := MerkleRoot([]string{"a", "b", "c", "c"})
		assert.Equal(t, root4, root3)
	})

	t.Run("order matters", func(t *testing.T) {
		assert.NotEqual(t, MerkleRoot([]string{"a", "b"}), MerkleRoot([]string{"b", "a"}))
	})

	t.Run("input slice is not mutated", func(t *testing.T) {
		in := []string{"a", "b", "c"}
		_ = MerkleRoot(in)
		assert.Equal(t, []string{"a", "b", "c"}, in)
	})
}
