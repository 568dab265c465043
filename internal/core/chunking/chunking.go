// Package chunking splits documents into bounded, overlapping spans.
//
// Every strategy reduces to picking cut points in the text; a shared
// assembler then materializes chunks so the three invariants hold for
// all of them: no chunk exceeds MaxSize, consecutive chunks share
// exactly Overlap characters, and concatenating chunks with overlaps
// dropped reproduces the input byte-for-byte.
package chunking

import (
	"context"
	"fmt"

	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
)

// Strategy names accepted by NewEngine and the router.
const (
	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
	StrategyStructure = "structure"
	StrategySemantic  = "semantic"
)

// Chunk is one bounded span. Offsets are rune positions into the
// original text; Overlap is how many leading runes are shared with the
// previous chunk.
type Chunk struct {
	Index      int
	Text       string
	Start      int
	End        int
	TokenCount int
	Overlap    int
	Strategy   string
}

// ChunkID derives the deterministic persisted identifier.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// splitter picks cut points for a rune slice. Cut points are exclusive
// segment ends in ascending order; the final cut is always len(text).
// The context is only used by strategies that call out (semantic).
type splitter interface {
	name() string
	cuts(ctx context.Context, text []rune, budget int) []int
}

// Engine applies a named strategy with fixed size/overlap settings.
type Engine struct {
	strategy splitter
	maxSize  int
	overlap  int
	est      *tokenizer.Estimator
}

// NewEngine builds a chunking engine. maxSize and overlap are in
// characters; overlap must leave room for content (overlap < maxSize).
// The embedder is only consulted by the semantic strategy and may be nil
// for the others.
func NewEngine(strategyName string, maxSize, overlap int, est *tokenizer.Estimator, embedder Embedder) (*Engine, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("overlap %d out of range for max size %d", overlap, maxSize)
	}
	if est == nil {
		est = tokenizer.New(0)
	}

	var s splitter
	switch strategyName {
	case StrategyFixed:
		s = fixedSplitter{}
	case StrategyRecursive, "":
		s = recursiveSplitter{}
	case StrategyStructure:
		s = structureSplitter{}
	case StrategySemantic:
		s = &semanticSplitter{embedder: embedder}
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategyName)
	}
	return &Engine{strategy: s, maxSize: maxSize, overlap: overlap, est: est}, nil
}

// Split chunks the text. A text that already fits MaxSize comes back as
// a single chunk with no overlap.
func (e *Engine) Split(ctx context.Context, text string) ([]Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= e.maxSize {
		return []Chunk{{
			Index:      0,
			Text:       text,
			Start:      0,
			End:        len(runes),
			TokenCount: e.est.Count(text),
			Overlap:    0,
			Strategy:   e.strategy.name(),
		}}, nil
	}

	// Segments must leave room for the prepended overlap.
	budget := e.maxSize - e.overlap
	cuts := normalizeCuts(e.strategy.cuts(ctx, runes, budget), len(runes), budget, e.overlap)

	chunks := make([]Chunk, 0, len(cuts))
	prev := 0
	for i, cut := range cuts {
		start := prev
		overlap := 0
		if i > 0 {
			start = prev - e.overlap
			overlap = e.overlap
		}
		body := string(runes[start:cut])
		chunks = append(chunks, Chunk{
			Index:      i,
			Text:       body,
			Start:      start,
			End:        cut,
			TokenCount: e.est.Count(body),
			Overlap:    overlap,
			Strategy:   e.strategy.name(),
		})
		prev = cut
	}
	return chunks, nil
}

// normalizeCuts enforces what the invariants need regardless of how a
// strategy behaved: cuts strictly increasing, first cut no earlier than
// the overlap width, no segment longer than budget, final cut at the end
// of the text. The first segment carries no overlap prefix, so it may
// fill the whole chunk size; that also keeps a synthesized first cut at
// or past the overlap width even when the overlap exceeds the per-
// segment budget.
func normalizeCuts(cuts []int, textLen, budget, overlap int) []int {
	out := make([]int, 0, len(cuts)+1)
	prev := 0
	seg := func() int {
		if len(out) == 0 {
			return budget + overlap
		}
		return budget
	}
	for _, c := range cuts {
		if c <= prev || c >= textLen {
			continue
		}
		if len(out) == 0 && c < overlap {
			// A leading segment narrower than the overlap would force
			// the second chunk to start before the text does.
			continue
		}
		// Hard-split any oversized segment a strategy let through.
		for c-prev > seg() {
			prev += seg()
			out = append(out, prev)
		}
		if c > prev {
			out = append(out, c)
			prev = c
		}
	}
	for textLen-prev > seg() {
		prev += seg()
		out = append(out, prev)
	}
	return append(out, textLen)
}

// Embedder is the slice of the inference layer the semantic strategy
// needs; satisfied by llm.EmbeddingProvider.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
