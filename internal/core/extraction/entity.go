package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Entity types in the fixed taxonomy. The rule matcher and the wave
// prompts both draw from this set.
const (
	TypeActor    = "actor"    // parties, courts, judges, organizations
	TypeCitation = "citation" // case citations, statutes, regulations
	TypeConcept  = "concept"  // legal doctrines, claims, defenses
	TypeDate     = "date"
	TypeMoney    = "money"
)

// ExtractedEntity is the in-flight form of an entity between a wave
// response and persistence.
type ExtractedEntity struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Wave       string   `json:"wave"`
	ChunkIDs   []string `json:"chunk_ids,omitempty"`
}

// ExtractedRelationship references entities by their content-derived
// IDs, so it survives any chunking arrangement.
type ExtractedRelationship struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NormalizeText lowercases and collapses internal whitespace so "The
// Supreme  Court" and "the supreme court" share an identity.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// EntityID derives the deterministic identifier: a pure function of
// (type, normalized text), independent of document, wave, and order.
func EntityID(entityType, text string) string {
	h := sha256.Sum256([]byte(entityType + "\x00" + NormalizeText(text)))
	return hex.EncodeToString(h[:])[:24]
}

// Dedup merges entities by (type, normalized text), keeping the
// highest-confidence instance and unioning chunk membership. The merge
// is commutative and idempotent: order of input and repeated application
// do not change the outcome.
func Dedup(entities []ExtractedEntity) []ExtractedEntity {
	byID := make(map[string]*ExtractedEntity, len(entities))
	for _, e := range entities {
		id := EntityID(e.Type, e.Text)
		cur, ok := byID[id]
		if !ok {
			copied := e
			copied.ID = id
			copied.ChunkIDs = uniqueSorted(e.ChunkIDs)
			byID[id] = &copied
			continue
		}
		if e.Confidence > cur.Confidence {
			cur.Text = e.Text
			cur.Confidence = e.Confidence
			cur.Wave = e.Wave
		}
		cur.ChunkIDs = uniqueSorted(append(cur.ChunkIDs, e.ChunkIDs...))
	}

	out := make([]ExtractedEntity, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	// Stable output order for reproducible results and tests.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
