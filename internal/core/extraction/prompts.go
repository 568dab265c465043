package extraction

import (
	"fmt"
	"strings"
)

// Wave names. Waves run in this order for a given chunk; each prompt
// lists the entities already found so the model spends its budget on
// discovery instead of repetition.
const (
	WaveMatcher       = "matcher"
	WaveCombined      = "combined"
	WaveActors        = "actors"
	WaveCitations     = "citations"
	WaveConcepts      = "concepts"
	WaveRelationships = "relationships"
)

const systemPrompt = `You are an entity extraction engine for legal documents. ` +
	`Respond with JSON only, matching the schema you are given. ` +
	`Extract the exact text as it appears in the document.`

var waveInstructions = map[string]string{
	WaveCombined: `Extract every entity you can find: actors (parties, courts, judges, ` +
		`organizations), citations (cases, statutes, regulations), legal concepts, dates, and monetary amounts.`,
	WaveActors: `Extract the actors: parties, courts, judges, attorneys, agencies, and organizations. ` +
		`Type each as "actor".`,
	WaveCitations: `Extract the citations: case names, reporter citations, statutes, and regulations. ` +
		`Type each as "citation".`,
	WaveConcepts: `Extract the legal concepts: doctrines, claims, defenses, standards of review, ` +
		`and causes of action. Type each as "concept".`,
}

// buildWavePrompt renders the user prompt for one extraction wave.
func buildWavePrompt(wave, text string, known []ExtractedEntity) string {
	var b strings.Builder
	b.WriteString(waveInstructions[wave])
	b.WriteString("\n\n")
	if len(known) > 0 {
		b.WriteString("Already found (do not repeat):\n")
		for _, e := range known {
			fmt.Fprintf(&b, "- [%s] %s\n", e.Type, e.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Document:\n")
	b.WriteString(text)
	return b.String()
}

// buildRelationshipPrompt renders the relationship wave against the
// deduplicated entity list. The model refers to entities by their exact
// text; resolution back to IDs happens after parsing.
func buildRelationshipPrompt(text string, entities []ExtractedEntity) string {
	var b strings.Builder
	b.WriteString("Identify relationships between the entities below, based on the document. ")
	b.WriteString(`Use the exact entity text for "source" and "target". `)
	b.WriteString(`Use short snake_case labels such as "ruled_on", "cited_by", "party_to", "decided_on".`)
	b.WriteString("\n\nEntities:\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- [%s] %s\n", e.Type, e.Text)
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}
