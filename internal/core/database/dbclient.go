package db

import (
	"context"

	"github.com/markdave123-py/Extracta/internal/models"
)

// DbClient defines all persistence operations the services need. It
// abstracts Postgres/pgvector so higher layers never depend on a
// specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	// StoreExtraction persists one document's extraction output in a
	// single transaction: chunks are replaced, entities are upserted
	// across documents, relationships are replaced for the document.
	// Either everything lands or nothing does.
	StoreExtraction(ctx context.Context, documentID string,
		chunks []models.DocumentChunk, entities []models.Entity, relationships []models.Relationship) error

	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	SearchDocumentChunks(ctx context.Context, docID string, queryVec []float32, limit int) ([]models.DocumentChunk, error)

	GetEntityByID(ctx context.Context, id string) (*models.Entity, error)
	GetEntitiesByDocument(ctx context.Context, documentID string) ([]models.Entity, error)
	GetRelationshipsByDocument(ctx context.Context, documentID string) ([]models.Relationship, error)

	Close() error
}
