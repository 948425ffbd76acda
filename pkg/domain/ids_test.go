package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "aidchain/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseBeneficiaryID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseBeneficiaryID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseBeneficiaryID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseBeneficiaryID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseBeneficiaryID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, BeneficiaryID(valid), id)
	})
}

func TestBeneficiaryIDJSONRoundTrip(t *testing.T) {
	id := NewBeneficiaryID()

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	// Canonical string form, not a byte array.
	assert.Equal(t, `"`+id.String()+`"`, string(raw))

	var back BeneficiaryID
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, id, back)
}

func TestActorID(t *testing.T) {
	assert.True(t, ActorID("").IsNil())
	assert.False(t, ActorID("field-officer-7").IsNil())
	assert.Equal(t, "field-officer-7", ActorID("field-officer-7").String())
}
