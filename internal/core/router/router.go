// Package router decides how a document gets processed before any
// network call happens. Routing is pure: it never fails on valid input
// and malformed sizes fall back to the cheapest strategy.
package router

import (
	"fmt"

	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
)

// Processing strategies, cheapest first.
const (
	StrategySinglePass       = "single_pass"
	StrategyThreeWave        = "three_wave"
	StrategyChunkedThreeWave = "chunked_three_wave"
	StrategyFullGraph        = "full_graph" // richest: three waves + relationship wave
)

// Options are the caller-supplied routing inputs.
type Options struct {
	// StrategyOverride forces a strategy; it always wins.
	StrategyOverride string
	// Relationships requests the relationship-extraction wave.
	Relationships bool
	// Deep requests maximum recall regardless of document size.
	Deep bool
}

// Decision is the routing outcome, consumed immediately by the
// orchestrator and never persisted.
type Decision struct {
	Strategy         string  `json:"strategy"`
	EstimatedTokens  int     `json:"estimated_tokens"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	ExpectedAccuracy float64 `json:"expected_accuracy"`
	Relationships    bool    `json:"relationships"`
	Chunked          bool    `json:"chunked"`
	Rationale        string  `json:"rationale"`
}

// Profile carries the empirically calibrated constants of one strategy:
// fixed prompt overhead, expected response size, wall-clock duration and
// accuracy. Like the size thresholds, these come from config so
// deployments re-calibrate against their own model family without a
// rebuild.
type Profile struct {
	PromptOverheadTokens int
	ResponseTokens       int
	Seconds              float64
	Accuracy             float64
}

// Profiles maps strategy name to its calibration.
type Profiles map[string]Profile

// DefaultProfiles returns the calibration shipped with the service.
func DefaultProfiles() Profiles {
	return Profiles{
		StrategySinglePass:       {PromptOverheadTokens: 350, ResponseTokens: 800, Seconds: 15, Accuracy: 0.78},
		StrategyThreeWave:        {PromptOverheadTokens: 1100, ResponseTokens: 2400, Seconds: 60, Accuracy: 0.88},
		StrategyChunkedThreeWave: {PromptOverheadTokens: 1100, ResponseTokens: 2400, Seconds: 120, Accuracy: 0.90},
		StrategyFullGraph:        {PromptOverheadTokens: 1700, ResponseTokens: 3600, Seconds: 200, Accuracy: 0.94},
	}
}

// Chunked reports whether a strategy splits the document before the
// extraction waves run. Structural, not calibration, so it is not part
// of Profile.
func Chunked(strategy string) bool {
	return strategy == StrategyChunkedThreeWave || strategy == StrategyFullGraph
}

// Thresholds are the size-band boundaries in characters: documents at or
// below VerySmall take one call, at or below Small take three waves, at
// or below Large take chunked three waves, and anything bigger is
// auto-upgraded to full_graph.
type Thresholds struct {
	VerySmall int
	Small     int
	Large     int
}

// Router classifies documents into size bands and applies the decision
// rules in priority order.
type Router struct {
	thresholds Thresholds
	pricePer1K float64
	profiles   Profiles
	est        *tokenizer.Estimator
}

// New builds a router. pricePer1K is the cost per thousand tokens used
// for the estimate. profiles overrides per-strategy calibration;
// strategies it leaves out keep the shipped defaults, and nil keeps them
// all.
func New(thresholds Thresholds, pricePer1K float64, profiles Profiles, est *tokenizer.Estimator) *Router {
	if est == nil {
		est = tokenizer.New(0)
	}
	merged := DefaultProfiles()
	for name, p := range profiles {
		merged[name] = p
	}
	return &Router{thresholds: thresholds, pricePer1K: pricePer1K, profiles: merged, est: est}
}

// Route picks a strategy for the document. It never errors: a
// non-positive size routes to single_pass as the safe default.
func (r *Router) Route(text string, opts Options) Decision {
	size := len([]rune(text))
	docTokens := r.est.Count(text)

	switch {
	case opts.StrategyOverride != "":
		if _, ok := r.profiles[opts.StrategyOverride]; ok {
			return r.decide(opts.StrategyOverride, docTokens, opts.Relationships,
				fmt.Sprintf("explicit override to %s", opts.StrategyOverride))
		}
		return r.decide(StrategySinglePass, docTokens, false,
			fmt.Sprintf("unknown override %q, defaulting to single_pass", opts.StrategyOverride))

	case size <= 0:
		return r.decide(StrategySinglePass, 0, false, "empty or malformed document, safe default")

	case opts.Deep:
		return r.decide(StrategyFullGraph, docTokens, true, "deep processing requested")

	case opts.Relationships && size > r.thresholds.VerySmall:
		return r.decide(StrategyFullGraph, docTokens, true, "relationship extraction requested")

	case size > r.thresholds.Large:
		// Large documents amortize the fixed prompt overhead of the
		// richest strategy, so upgrade regardless of the flag.
		return r.decide(StrategyFullGraph, docTokens, true,
			fmt.Sprintf("document of %d chars exceeds large threshold, auto-upgrading", size))

	case size <= r.thresholds.VerySmall:
		return r.decide(StrategySinglePass, docTokens, false, "very small document, one call suffices")

	case size <= r.thresholds.Small:
		return r.decide(StrategyThreeWave, docTokens, opts.Relationships, "small/medium document, multi-wave")

	default:
		return r.decide(StrategyChunkedThreeWave, docTokens, opts.Relationships, "large document, multi-wave with chunking")
	}
}

func (r *Router) decide(strategy string, docTokens int, relationships bool, rationale string) Decision {
	p := r.profiles[strategy]
	// full_graph always extracts relationships; cheaper strategies only
	// when asked (single_pass never does).
	if strategy == StrategyFullGraph {
		relationships = true
	}
	if strategy == StrategySinglePass {
		relationships = false
	}
	total := p.PromptOverheadTokens + docTokens + p.ResponseTokens
	return Decision{
		Strategy:         strategy,
		EstimatedTokens:  total,
		EstimatedSeconds: p.Seconds,
		EstimatedCostUSD: float64(total) / 1000 * r.pricePer1K,
		ExpectedAccuracy: p.Accuracy,
		Relationships:    relationships,
		Chunked:          Chunked(strategy),
		Rationale:        rationale,
	}
}

// Waves returns the extraction wave names a strategy runs, excluding the
// relationship wave (gated separately by Decision.Relationships).
func Waves(strategy string) []string {
	if strategy == StrategySinglePass {
		return []string{"combined"}
	}
	return []string{"actors", "citations", "concepts"}
}
