package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matcherSample = `On January 22, 1973, the Supreme Court decided Roe v. Wade,
410 U.S. 113. The plaintiff sued under 42 U.S.C. § 1983 seeking $75,000
in damages. The hearing was rescheduled to 03/15/1973.`

func findMatch(entities []ExtractedEntity, entityType, text string) *ExtractedEntity {
	for i := range entities {
		if entities[i].Type == entityType && NormalizeText(entities[i].Text) == NormalizeText(text) {
			return &entities[i]
		}
	}
	return nil
}

func TestRuleMatcherFindsCorePatterns(t *testing.T) {
	hits := NewRuleMatcher().Match(matcherSample)
	require.NotEmpty(t, hits)

	assert.NotNil(t, findMatch(hits, TypeActor, "the Supreme Court"))
	assert.NotNil(t, findMatch(hits, TypeCitation, "Roe v. Wade"))
	assert.NotNil(t, findMatch(hits, TypeCitation, "410 U.S. 113"))
	assert.NotNil(t, findMatch(hits, TypeCitation, "42 U.S.C. § 1983"))
	assert.NotNil(t, findMatch(hits, TypeDate, "January 22, 1973"))
	assert.NotNil(t, findMatch(hits, TypeDate, "03/15/1973"))
	assert.NotNil(t, findMatch(hits, TypeMoney, "$75,000"))
}

func TestRuleMatcherTagsHits(t *testing.T) {
	hits := NewRuleMatcher().Match(matcherSample)
	for _, h := range hits {
		assert.Equal(t, WaveMatcher, h.Wave)
		assert.Equal(t, EntityID(h.Type, h.Text), h.ID)
		assert.Greater(t, h.Confidence, 0.0)
	}
}

func TestRuleMatcherNoFalseHitsOnPlainProse(t *testing.T) {
	hits := NewRuleMatcher().Match("The weather was pleasant and everyone went home early.")
	assert.Empty(t, hits)
}
