package extraction

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Wire payloads the waves declare as their guided-output schema.
type entityItem struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type entitiesPayload struct {
	Entities []entityItem `json:"entities"`
}

type relationshipItem struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type relationshipsPayload struct {
	Relationships []relationshipItem `json:"relationships"`
}

// parseEntityResponse turns a wave response into entities. Minor
// malformations go through RepairJSON; a response without a declared
// "entities" field is a hard parse failure even if otherwise valid,
// because treating it as empty would silently mask prompt or model
// regressions.
func parseEntityResponse(content, wave string) ([]ExtractedEntity, error) {
	body, err := recoverJSON(content)
	if err != nil {
		return nil, fmt.Errorf("wave %s: %w", wave, err)
	}
	if !gjson.GetBytes(body, "entities").Exists() {
		return nil, fmt.Errorf("wave %s: response has no entities field", wave)
	}

	var payload entitiesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("wave %s: decode entities: %w", wave, err)
	}

	out := make([]ExtractedEntity, 0, len(payload.Entities))
	for _, item := range payload.Entities {
		if item.Text == "" || item.Type == "" {
			continue
		}
		out = append(out, ExtractedEntity{
			ID:         EntityID(item.Type, item.Text),
			Type:       item.Type,
			Text:       item.Text,
			Confidence: clampConfidence(item.Confidence),
			Wave:       wave,
		})
	}
	return out, nil
}

// parseRelationshipResponse decodes the relationship wave. Source and
// target arrive as entity surface text; resolution against the
// deduplicated entity set happens in the orchestrator.
func parseRelationshipResponse(content string) ([]relationshipItem, error) {
	body, err := recoverJSON(content)
	if err != nil {
		return nil, fmt.Errorf("relationship wave: %w", err)
	}
	if !gjson.GetBytes(body, "relationships").Exists() {
		return nil, fmt.Errorf("relationship wave: response has no relationships field")
	}
	var payload relationshipsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("relationship wave: decode: %w", err)
	}
	return payload.Relationships, nil
}

// recoverJSON returns valid JSON bytes from model output, repairing if
// needed.
func recoverJSON(content string) ([]byte, error) {
	s := StripCodeFences(content)
	if gjson.Valid(s) {
		return []byte(s), nil
	}
	repaired := RepairJSON(s)
	if !gjson.Valid(repaired) {
		return nil, fmt.Errorf("unrecoverable response body")
	}
	return []byte(repaired), nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
