package chunking

import "context"

// fixedSplitter cuts every budget runes with no regard for content.
// Cheapest strategy; the default for machine-generated text where
// paragraph structure carries no signal.
type fixedSplitter struct{}

func (fixedSplitter) name() string { return StrategyFixed }

func (fixedSplitter) cuts(_ context.Context, text []rune, budget int) []int {
	var out []int
	for pos := budget; pos < len(text); pos += budget {
		out = append(out, pos)
	}
	return append(out, len(text))
}
