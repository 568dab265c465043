package chunking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
)

// reassemble drops each chunk's leading overlap and concatenates.
func reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		runes := []rune(c.Text)
		b.WriteString(string(runes[c.Overlap:]))
	}
	return b.String()
}

func sampleText() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Paragraph %d has a few sentences. Here is another sentence about the court. And a closing thought.\n\n", i)
	}
	return strings.TrimSuffix(b.String(), "\n\n")
}

func TestRoundTripAllStrategies(t *testing.T) {
	text := sampleText()
	est := tokenizer.New(4.0)

	for _, name := range []string{StrategyFixed, StrategyRecursive, StrategyStructure, StrategySemantic} {
		t.Run(name, func(t *testing.T) {
			eng, err := NewEngine(name, 500, 50, est, nil)
			require.NoError(t, err)
			chunks, err := eng.Split(context.Background(), text)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			assert.Equal(t, text, reassemble(chunks), "round trip must be byte exact")

			for i, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c.Text)), 500, "chunk %d exceeds max size", i)
				assert.Equal(t, i, c.Index)
				assert.Positive(t, c.TokenCount)
				if i == 0 {
					assert.Zero(t, c.Overlap)
				} else {
					assert.Equal(t, 50, c.Overlap)
					// Overlap bytes must match the tail of the previous chunk.
					prev := []rune(chunks[i-1].Text)
					cur := []rune(c.Text)
					assert.Equal(t, string(prev[len(prev)-50:]), string(cur[:50]))
				}
			}

			// Offsets are consistent with the source text.
			runes := []rune(text)
			for _, c := range chunks {
				assert.Equal(t, string(runes[c.Start:c.End]), c.Text)
			}
		})
	}
}

func TestSingleChunkWhenTextFits(t *testing.T) {
	eng, err := NewEngine(StrategyRecursive, 1000, 100, nil, nil)
	require.NoError(t, err)
	chunks, err := eng.Split(context.Background(), "short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Zero(t, chunks[0].Overlap)
	assert.Equal(t, "short text", chunks[0].Text)
}

func TestEmptyTextYieldsNoChunks(t *testing.T) {
	eng, err := NewEngine(StrategyFixed, 100, 10, nil, nil)
	require.NoError(t, err)
	chunks, err := eng.Split(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(StrategyFixed, 0, 0, nil, nil)
	require.Error(t, err)
	_, err = NewEngine(StrategyFixed, 100, 100, nil, nil)
	require.Error(t, err)
	_, err = NewEngine("bogus", 100, 10, nil, nil)
	require.Error(t, err)
}

func TestRecursivePrefersParagraphBoundaries(t *testing.T) {
	text := strings.Repeat("alpha beta gamma.\n\n", 100)
	text = strings.TrimSuffix(text, "\n\n")
	eng, err := NewEngine(StrategyRecursive, 200, 20, nil, nil)
	require.NoError(t, err)
	chunks, err := eng.Split(context.Background(), text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Non-final chunks should end on a paragraph break, not mid-word.
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Text, "\n") || strings.HasSuffix(c.Text, " ") || strings.HasSuffix(c.Text, "."),
			"chunk ends mid-word: %q", c.Text[len(c.Text)-10:])
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestStructureAvoidsCrossingSections(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "Section %d\n%s\n", i, strings.Repeat("body text sentence. ", 10))
	}
	text := strings.TrimSpace(b.String())

	eng, err := NewEngine(StrategyStructure, 400, 40, nil, nil)
	require.NoError(t, err)
	chunks, err := eng.Split(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, text, reassemble(chunks))

	// Most cut points should fall at section starts: the text after a
	// chunk boundary (past the overlap) begins a new section.
	aligned := 0
	for _, c := range chunks[1:] {
		rest := string([]rune(c.Text)[c.Overlap:])
		if strings.HasPrefix(rest, "Section ") {
			aligned++
		}
	}
	assert.Greater(t, aligned, 0, "no chunk boundary aligned with a section heading")
}

// stubEmbedder returns vectors engineered so similarity collapses at
// every "TOPIC SHIFT" sentence.
type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "quantum") {
			out[i] = []float32{0, 1}
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func TestSemanticCutsAtTopicValleys(t *testing.T) {
	legal := strings.Repeat("The court considered the statute carefully. ", 12)
	physics := strings.Repeat("The quantum state decoheres rapidly here. ", 12)
	text := strings.TrimSpace(legal + physics)

	eng, err := NewEngine(StrategySemantic, 600, 50, nil, stubEmbedder{})
	require.NoError(t, err)
	chunks, err := eng.Split(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, text, reassemble(chunks))
	require.Greater(t, len(chunks), 1)

	// No chunk body (ignoring overlap seams) should mix both topics
	// heavily; at least one boundary should separate them.
	var boundaryFound bool
	for i := 1; i < len(chunks); i++ {
		before := chunks[i-1].Text
		after := string([]rune(chunks[i].Text)[chunks[i].Overlap:])
		if strings.Contains(before, "court") && strings.Contains(after, "quantum") {
			boundaryFound = true
		}
	}
	assert.True(t, boundaryFound)
}

func TestSemanticFallsBackWithoutEmbedder(t *testing.T) {
	eng, err := NewEngine(StrategySemantic, 200, 20, nil, nil)
	require.NoError(t, err)
	text := sampleText()
	chunks, err := eng.Split(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, text, reassemble(chunks))
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1_chunk_0", ChunkID("doc-1", 0))
	assert.Equal(t, "doc-1_chunk_12", ChunkID("doc-1", 12))
}

func TestNormalizeCutsHardSplitsOversizedSegments(t *testing.T) {
	// A strategy returning no useful cuts still may not produce an
	// oversized chunk. The first segment has no overlap prefix, so its
	// limit is budget+overlap; every later segment is capped at budget.
	cuts := normalizeCuts([]int{1000}, 1000, 300, 30)
	prev := 0
	for i, c := range cuts {
		limit := 300
		if i == 0 {
			limit = 330
		}
		assert.LessOrEqual(t, c-prev, limit)
		prev = c
	}
	assert.Equal(t, 1000, cuts[len(cuts)-1])
}

func TestSplitOverlapBeyondHalfChunkSize(t *testing.T) {
	// overlap > maxSize/2 leaves the per-segment budget below the
	// overlap width; cut placement must still keep every chunk start
	// inside the text.
	text := sampleText()[:200]

	for _, name := range []string{StrategyFixed, StrategyRecursive, StrategyStructure} {
		t.Run(name, func(t *testing.T) {
			eng, err := NewEngine(name, 100, 60, nil, nil)
			require.NoError(t, err)
			chunks, err := eng.Split(context.Background(), text)
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)

			assert.Equal(t, text, reassemble(chunks))
			for i, c := range chunks {
				assert.GreaterOrEqual(t, c.Start, 0, "chunk %d starts before the text", i)
				assert.LessOrEqual(t, len([]rune(c.Text)), 100, "chunk %d exceeds max size", i)
				if i > 0 {
					assert.Equal(t, 60, c.Overlap)
				}
			}
		})
	}
}
