package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Extracta/internal/models"
)

type fakeEmbedder struct {
	texts []string
	vec   []float32
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func TestSearchChunksEmbedsQueryAndDelegates(t *testing.T) {
	database := newFakeDB()
	database.searchResult = []models.DocumentChunk{
		{ID: "doc-1_chunk_2", DocumentID: "doc-1", Position: 2, Text: "the court held"},
	}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	svc := NewDocumentService(database, &fakeStorage{}, embedder)

	chunks, err := svc.SearchChunks(t.Context(), "doc-1", "what did the court hold", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1_chunk_2", chunks[0].ID)

	assert.Equal(t, []string{"what did the court hold"}, embedder.texts)
	assert.Equal(t, "doc-1", database.searchDocID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, database.searchVec)
	assert.Equal(t, 5, database.searchLimit, "zero limit falls back to the default")
}

func TestSearchChunksWithoutEmbedder(t *testing.T) {
	svc := NewDocumentService(newFakeDB(), &fakeStorage{}, nil)
	_, err := svc.SearchChunks(t.Context(), "doc-1", "anything", 3)
	require.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestSearchChunksEmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	svc := NewDocumentService(newFakeDB(), &fakeStorage{}, embedder)
	_, err := svc.SearchChunks(t.Context(), "doc-1", "anything", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}
