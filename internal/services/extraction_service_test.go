package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Extracta/internal/core/extraction"
	"github.com/markdave123-py/Extracta/internal/core/ingest"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	"github.com/markdave123-py/Extracta/internal/core/router"
	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
	"github.com/markdave123-py/Extracta/internal/models"
)

type fakeDB struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	statuses []string

	storedChunks   []models.DocumentChunk
	storedEntities []models.Entity
	storedRels     []models.Relationship
	storeErr       error

	searchDocID  string
	searchVec    []float32
	searchLimit  int
	searchResult []models.DocumentChunk
}

func newFakeDB(docs ...*models.Document) *fakeDB {
	f := &fakeDB{docs: map[string]*models.Document{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDB) CreateUser(context.Context, *models.User) error               { return nil }
func (f *fakeDB) GetUserByEmail(context.Context, string) (*models.User, error) { return nil, nil }
func (f *fakeDB) CreateDocument(_ context.Context, d *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[d.ID] = d
	return nil
}
func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}
func (f *fakeDB) ListDocumentsByUser(context.Context, string) ([]models.Document, error) {
	return nil, nil
}
func (f *fakeDB) UpdateDocumentStatus(_ context.Context, _ string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}
func (f *fakeDB) StoreExtraction(_ context.Context, _ string,
	chunks []models.DocumentChunk, entities []models.Entity, rels []models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.storedChunks = chunks
	f.storedEntities = entities
	f.storedRels = rels
	return nil
}
func (f *fakeDB) GetChunksByDocument(context.Context, string) ([]models.DocumentChunk, error) {
	return nil, nil
}
func (f *fakeDB) SearchDocumentChunks(_ context.Context, docID string, vec []float32, limit int) ([]models.DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchDocID = docID
	f.searchVec = vec
	f.searchLimit = limit
	return f.searchResult, nil
}
func (f *fakeDB) GetEntityByID(context.Context, string) (*models.Entity, error) { return nil, nil }
func (f *fakeDB) GetEntitiesByDocument(context.Context, string) ([]models.Entity, error) {
	return nil, nil
}
func (f *fakeDB) GetRelationshipsByDocument(context.Context, string) ([]models.Relationship, error) {
	return nil, nil
}
func (f *fakeDB) Close() error { return nil }

type fakeStorage struct {
	data map[string][]byte
	err  error
}

func (s *fakeStorage) UploadFile(context.Context, string, []byte, string) (string, error) {
	return "", nil
}
func (s *fakeStorage) DeleteFile(context.Context, string) error { return nil }
func (s *fakeStorage) GetFile(_ context.Context, key string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data[key], nil
}
func (s *fakeStorage) GetObjectReader(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type stubLLM struct {
	content string
}

func (c *stubLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: c.content}, nil
}
func (c *stubLLM) CompleteBatch(ctx context.Context, reqs []llm.Request) ([]*llm.Response, error) {
	out := make([]*llm.Response, len(reqs))
	for i := range reqs {
		out[i] = &llm.Response{Content: c.content}
	}
	return out, nil
}
func (c *stubLLM) Close() error { return nil }

func testOrchestrator(content string) *extraction.Orchestrator {
	r := router.New(router.Thresholds{VerySmall: 2000, Small: 8000, Large: 20000}, 0.002, nil, tokenizer.New(4))
	return extraction.NewOrchestrator(&stubLLM{content: content}, r, nil, nil, nil, nil, extraction.Options{})
}

func testService(database *fakeDB, storage *fakeStorage, content string) *ExtractionService {
	return NewExtractionService(database, storage,
		ingest.NewDocconvExtractor(false), testOrchestrator(content), nil, nil)
}

func testDoc() *models.Document {
	return &models.Document{
		ID:          "doc-1",
		UserID:      "user-1",
		FileName:    "brief.txt",
		StorageURL:  "https://extracta-docs.s3.us-east-2.amazonaws.com/users/user-1/documents/doc-1/brief.txt",
		ContentType: "text/plain",
		Status:      "uploaded",
	}
}

func TestProcessOnePersistsAndMarksReady(t *testing.T) {
	database := newFakeDB(testDoc())
	storage := &fakeStorage{data: map[string][]byte{
		"users/user-1/documents/doc-1/brief.txt": []byte("The plaintiff filed suit against the defendant."),
	}}
	svc := testService(database, storage,
		`{"entities":[{"type":"actor","text":"the plaintiff","confidence":0.9}]}`)

	err := svc.ProcessOne(t.Context(), ExtractionJob{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"processing", "ready"}, database.statuses)
	require.Len(t, database.storedEntities, 1)
	e := database.storedEntities[0]
	assert.Equal(t, "the plaintiff", e.NormalizedText)
	assert.Equal(t, extraction.EntityID("actor", "the plaintiff"), e.ID)
}

func TestProcessOneMarksFailedWhenStorageErrors(t *testing.T) {
	database := newFakeDB(testDoc())
	storage := &fakeStorage{err: errors.New("object gone")}
	svc := testService(database, storage, `{"entities":[]}`)

	err := svc.ProcessOne(t.Context(), ExtractionJob{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Equal(t, []string{"processing", "failed"}, database.statuses)
}

func TestProcessOneMarksFailedWhenStoreErrors(t *testing.T) {
	database := newFakeDB(testDoc())
	database.storeErr = errors.New("db down")
	storage := &fakeStorage{data: map[string][]byte{
		"users/user-1/documents/doc-1/brief.txt": []byte("text"),
	}}
	svc := testService(database, storage, `{"entities":[]}`)

	err := svc.ProcessOne(t.Context(), ExtractionJob{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Equal(t, []string{"processing", "failed"}, database.statuses)
}

func TestProcessOneUnknownDocument(t *testing.T) {
	svc := testService(newFakeDB(), &fakeStorage{}, `{"entities":[]}`)
	err := svc.ProcessOne(t.Context(), ExtractionJob{DocumentID: "missing"})
	require.Error(t, err)
}

func TestObjectKeyFromURL(t *testing.T) {
	assert.Equal(t, "users/u/documents/d/file.pdf",
		objectKeyFromURL("https://bucket.s3.us-east-2.amazonaws.com/users/u/documents/d/file.pdf"))
	assert.Equal(t, "", objectKeyFromURL("not a url"))
}
