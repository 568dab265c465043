package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityResponse(t *testing.T) {
	out, err := parseEntityResponse(
		`{"entities":[{"type":"actor","text":"Smith","confidence":0.9},{"type":"citation","text":"410 U.S. 113","confidence":0.95}]}`,
		WaveActors)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, EntityID(TypeActor, "Smith"), out[0].ID)
	assert.Equal(t, WaveActors, out[0].Wave)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestParseEntityResponseMissingEntitiesFieldIsHardFailure(t *testing.T) {
	// Valid JSON without the declared field must error, not return empty.
	_, err := parseEntityResponse(`{"items": []}`, WaveCombined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entities field")
}

func TestParseEntityResponseEmptyListIsNotAnError(t *testing.T) {
	out, err := parseEntityResponse(`{"entities": []}`, WaveConcepts)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseEntityResponseRepairsTruncation(t *testing.T) {
	out, err := parseEntityResponse(
		`{"entities":[{"type":"actor","text":"Smith","confidence":0.9},`,
		WaveActors)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Smith", out[0].Text)
}

func TestParseEntityResponseUnrecoverable(t *testing.T) {
	_, err := parseEntityResponse("the model apologizes and refuses", WaveActors)
	require.Error(t, err)
}

func TestParseEntityResponseSkipsBlankItemsAndClampsConfidence(t *testing.T) {
	out, err := parseEntityResponse(
		`{"entities":[{"type":"","text":"x","confidence":0.5},{"type":"actor","text":"","confidence":0.5},{"type":"actor","text":"Smith","confidence":1.7},{"type":"date","text":"2020","confidence":-0.2}]}`,
		WaveCombined)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Confidence)
	assert.Equal(t, 0.0, out[1].Confidence)
}

func TestParseRelationshipResponse(t *testing.T) {
	items, err := parseRelationshipResponse(
		`{"relationships":[{"source":"Smith","target":"Jones","label":"party_to","confidence":0.8}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "party_to", items[0].Label)

	_, err = parseRelationshipResponse(`{"entities": []}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no relationships field")
}
