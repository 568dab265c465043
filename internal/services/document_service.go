package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	"github.com/markdave123-py/Extracta/internal/core/objectstore"
	"github.com/markdave123-py/Extracta/internal/models"
)

// ErrSearchUnavailable means chunk search cannot run because no
// embedding backend is configured.
var ErrSearchUnavailable = errors.New("chunk search unavailable: no embedding backend configured")

type DocumentService struct {
	db       db.DbClient
	storage  objectstore.ObjectClient
	embedder llm.EmbeddingProvider
}

func NewDocumentService(database db.DbClient, storage objectstore.ObjectClient, embedder llm.EmbeddingProvider) *DocumentService {
	return &DocumentService{db: database, storage: storage, embedder: embedder}
}

// UploadAndCreate stores the raw file in object storage and records the
// document row. Extraction runs later, in the background workers.
func (s *DocumentService) UploadAndCreate(ctx context.Context, userID, filename, contentType string, data []byte, sourceType string) (*models.Document, error) {
	docID := uuid.NewString()
	key := s.objectKey(userID, docID, filename)

	url, err := s.storage.UploadFile(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    filename,
		StorageURL:  url,
		SourceType:  sourceType, // "upload" or "url"
		ContentType: contentType,
		CharCount:   len(data),
		Status:      "uploaded",
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

func (s *DocumentService) SetStatus(ctx context.Context, docID string, status string) error {
	return s.db.UpdateDocumentStatus(ctx, docID, status)
}

func (s *DocumentService) Chunks(ctx context.Context, docID string) ([]models.DocumentChunk, error) {
	return s.db.GetChunksByDocument(ctx, docID)
}

func (s *DocumentService) Entities(ctx context.Context, docID string) ([]models.Entity, error) {
	return s.db.GetEntitiesByDocument(ctx, docID)
}

func (s *DocumentService) Relationships(ctx context.Context, docID string) ([]models.Relationship, error) {
	return s.db.GetRelationshipsByDocument(ctx, docID)
}

func (s *DocumentService) Entity(ctx context.Context, entityID string) (*models.Entity, error) {
	return s.db.GetEntityByID(ctx, entityID)
}

// SearchChunks embeds the query and ranks the document's stored chunk
// vectors by distance. Chunks persisted without an embedding never rank.
func (s *DocumentService) SearchChunks(ctx context.Context, docID, query string, limit int) ([]models.DocumentChunk, error) {
	if s.embedder == nil {
		return nil, ErrSearchUnavailable
	}
	if limit <= 0 {
		limit = 5
	}
	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding backend returned no vector for query")
	}
	return s.db.SearchDocumentChunks(ctx, docID, vecs[0], limit)
}

// objectKey creates a consistent storage key layout.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "documents", docID, filename)
}
