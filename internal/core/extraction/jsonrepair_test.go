package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRepairJSONPassesValidInputThrough(t *testing.T) {
	in := `{"entities":[{"type":"actor","text":"Smith","confidence":0.9}]}`
	assert.Equal(t, in, RepairJSON(in))
}

func TestRepairJSONTable(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{
			"trailing comma in array",
			`{"entities": [{"type": "actor", "text": "Smith", "confidence": 0.9},]}`,
		},
		{
			"trailing comma in object",
			`{"entities": [{"type": "actor", "text": "Smith", "confidence": 0.9,}]}`,
		},
		{
			"single quotes",
			`{'entities': [{'type': 'actor', 'text': 'Smith', 'confidence': 0.9}]}`,
		},
		{
			"truncated mid-string",
			`{"entities": [{"type": "actor", "text": "Smith", "confidence": 0.9}, {"type": "citation", "text": "Roe v. Wa`,
		},
		{
			"truncated after comma",
			`{"entities": [{"type": "actor", "text": "Smith", "confidence": 0.9},`,
		},
		{
			"missing closing brackets",
			`{"entities": [{"type": "actor", "text": "Smith", "confidence": 0.9}`,
		},
		{
			"code fence wrapper",
			"```json\n{\"entities\": []}\n```",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RepairJSON(tt.in)
			require.True(t, gjson.Valid(out), "repaired output still invalid: %s", out)

			var payload entitiesPayload
			require.NoError(t, json.Unmarshal([]byte(out), &payload))
		})
	}
}

func TestRepairJSONKeepsApostrophesInsideStrings(t *testing.T) {
	in := `{"entities": [{"type": "concept", "text": "party's burden", "confidence": 0.8}]}`
	out := RepairJSON(in)
	require.True(t, gjson.Valid(out))
	assert.Equal(t, "party's burden", gjson.Get(out, "entities.0.text").String())
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences(`{"a":1}`))
}

func TestRepairJSONIsPure(t *testing.T) {
	in := `{"entities": [{"type": "actor", "text": "Smith"},`
	first := RepairJSON(in)
	assert.Equal(t, first, RepairJSON(in))
}
