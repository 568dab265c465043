package extraction

import (
	"regexp"
)

// Matcher is the rule-based collaborator run as a zero-cost first pass
// before any inference call. Its output is merged exactly like a wave's.
type Matcher interface {
	Match(text string) []ExtractedEntity
}

// rulePattern ties one regex to an entity type and a fixed confidence.
// Rule hits are precise but narrow, hence the high confidence.
type rulePattern struct {
	re         *regexp.Regexp
	entityType string
	confidence float64
}

// RuleMatcher is a small built-in legal-domain pattern set. The full
// taxonomy ships as data in deployments; this covers the always-present
// pattern classes.
type RuleMatcher struct {
	patterns []rulePattern
}

// NewRuleMatcher builds the matcher with the built-in pattern set.
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{patterns: []rulePattern{
		// Courts and tribunals.
		{regexp.MustCompile(`(?i)\b(?:the\s+)?(?:supreme|district|appellate|circuit|federal|state)\s+court(?:\s+of\s+[A-Z][a-zA-Z]+)?`), TypeActor, 0.95},
		// Case citations: Smith v. Jones style.
		{regexp.MustCompile(`\b[A-Z][a-zA-Z.]+\s+v\.?\s+[A-Z][a-zA-Z.]+\b`), TypeCitation, 0.9},
		// Reporter citations: 410 U.S. 113, 5 F.3d 1412.
		{regexp.MustCompile(`\b\d{1,4}\s+(?:U\.S\.|F\.\d?d|S\.\s?Ct\.|F\.\s?Supp\.(?:\s?\d?d)?)\s+\d{1,5}\b`), TypeCitation, 0.95},
		// Statutes: 42 U.S.C. § 1983.
		{regexp.MustCompile(`\b\d{1,3}\s+U\.S\.C\.\s+§+\s*\d+[a-z]?(?:\([a-z0-9]+\))*`), TypeCitation, 0.95},
		// Section references.
		{regexp.MustCompile(`§+\s*\d+(?:\.\d+)*`), TypeCitation, 0.8},
		// Dates: January 2, 2006 / 01/02/2006.
		{regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`), TypeDate, 0.9},
		{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), TypeDate, 0.85},
		// Monetary amounts.
		{regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?(?:\s?(?:million|billion|thousand))?`), TypeMoney, 0.9},
	}}
}

// Match runs every pattern over the text. Overlapping hits of the same
// normalized text are collapsed later by the orchestrator's dedup, so
// no dedup happens here.
func (m *RuleMatcher) Match(text string) []ExtractedEntity {
	var out []ExtractedEntity
	for _, p := range m.patterns {
		for _, hit := range p.re.FindAllString(text, -1) {
			out = append(out, ExtractedEntity{
				ID:         EntityID(p.entityType, hit),
				Type:       p.entityType,
				Text:       hit,
				Confidence: p.confidence,
				Wave:       WaveMatcher,
			})
		}
	}
	return out
}

var _ Matcher = (*RuleMatcher)(nil)
