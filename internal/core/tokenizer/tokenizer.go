package tokenizer

import "math"

// DefaultCharsPerToken is the empirical ratio for English prose on the
// model families we run. Treat it as a starting point, not a constant
// of nature; legal text with heavy citations runs slightly denser.
const DefaultCharsPerToken = 4.0

// Estimator converts between character counts and approximate token
// counts. It is deliberately cheap (no real tokenizer dependency) since
// every request and every chunk-size decision goes through it.
type Estimator struct {
	CharsPerToken float64
}

// New returns an estimator with the given chars-per-token ratio.
// Non-positive ratios fall back to the default.
func New(charsPerToken float64) *Estimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &Estimator{CharsPerToken: charsPerToken}
}

// Count estimates the token count of text, rounding up.
// Empty input counts as zero.
func (e *Estimator) Count(text string) int {
	n := len([]rune(text))
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / e.CharsPerToken))
}

// CountAll sums the estimates for a slice of texts.
func (e *Estimator) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += e.Count(t)
	}
	return total
}

// FitsWindow reports whether promptTokens plus completionTokens fits the
// backend's context window.
func (e *Estimator) FitsWindow(promptTokens, completionTokens, window int) bool {
	return promptTokens+completionTokens <= window
}

// SafeChunkSize returns the largest chunk size in characters whose
// estimated tokens, together with the fixed prompt overhead and the
// completion budget, still fit the window. Returns 0 when the overhead
// alone exhausts the window.
func (e *Estimator) SafeChunkSize(window, promptOverhead, completionBudget int) int {
	slack := window - promptOverhead - completionBudget
	if slack <= 0 {
		return 0
	}
	return int(float64(slack) * e.CharsPerToken)
}

// RecommendedChunks suggests how many chunks a prompt of the given token
// count should be split into to fit the window, leaving the completion
// budget free. Always at least 1 for positive input.
func (e *Estimator) RecommendedChunks(promptTokens, window, completionBudget int) int {
	if promptTokens <= 0 {
		return 1
	}
	per := window - completionBudget
	if per <= 0 {
		return promptTokens // degenerate window; one token per chunk
	}
	return (promptTokens + per - 1) / per
}
