package chunking

import (
	"context"
	"math"
)

// semanticSplitter cuts where local topic similarity drops: sentences
// are embedded, cosine similarity between neighbours is computed, and
// cut candidates are the similarity valleys. Budget enforcement then
// picks the deepest valley inside each window. Without an embedder (or
// when embedding fails) it degrades to the recursive strategy, since a
// mis-chunked document is better than a failed one.
type semanticSplitter struct {
	embedder Embedder
}

func (*semanticSplitter) name() string { return StrategySemantic }

func (s *semanticSplitter) cuts(ctx context.Context, text []rune, budget int) []int {
	if s.embedder == nil {
		return (recursiveSplitter{}).cuts(ctx, text, budget)
	}

	sentences := sentenceSpans(text)
	if len(sentences) < 3 {
		return (recursiveSplitter{}).cuts(ctx, text, budget)
	}

	texts := make([]string, len(sentences))
	for i, sp := range sentences {
		texts[i] = string(text[sp.start:sp.end])
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vectors) != len(sentences) {
		return (recursiveSplitter{}).cuts(ctx, text, budget)
	}

	// similarity[i] compares sentence i to i+1; a low value marks a
	// candidate boundary after sentence i.
	similarity := make([]float64, len(sentences)-1)
	for i := 0; i < len(sentences)-1; i++ {
		similarity[i] = cosine(vectors[i], vectors[i+1])
	}

	var out []int
	prev := 0
	for len(text)-prev > budget {
		cut := s.bestValley(sentences, similarity, prev, prev+budget)
		if cut <= prev {
			cut = prev + budget
		}
		out = append(out, cut)
		prev = cut
	}
	return append(out, len(text))
}

// bestValley returns the sentence boundary with the lowest neighbour
// similarity whose position falls inside (lo, hi], or -1.
func (s *semanticSplitter) bestValley(sentences []span, similarity []float64, lo, hi int) int {
	best, bestScore := -1, math.Inf(1)
	for i, sim := range similarity {
		boundary := sentences[i].end
		if boundary <= lo || boundary > hi {
			continue
		}
		if sim < bestScore {
			best, bestScore = boundary, sim
		}
	}
	return best
}

type span struct{ start, end int }

// sentenceSpans performs cheap sentence segmentation on '.', '!', '?'
// followed by whitespace, plus paragraph breaks.
func sentenceSpans(text []rune) []span {
	var spans []span
	start := 0
	for i := 0; i < len(text); i++ {
		r := text[i]
		terminal := (r == '.' || r == '!' || r == '?') &&
			i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n')
		paragraph := r == '\n' && i+1 < len(text) && text[i+1] == '\n'
		if terminal || paragraph || i == len(text)-1 {
			end := i + 1
			if end > start {
				spans = append(spans, span{start: start, end: end})
			}
			start = end
		}
	}
	return spans
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
