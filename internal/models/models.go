package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents a user-uploaded document awaiting or finished extraction.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageURL  string    `db:"storage_url" json:"storage_url"` // S3 URL or original link
	SourceType  string    `db:"source_type" json:"source_type"` // "upload" or "url"
	ContentType string    `db:"content_type" json:"content_type"`
	CharCount   int       `db:"char_count" json:"char_count"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document.
// The ID is deterministic ("{document_id}_chunk_{index}") so re-processing
// a document overwrites its chunks instead of duplicating them.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Position   int       `db:"position" json:"position"`
	Text       string    `db:"text" json:"text"`
	StartChar  int       `db:"start_char" json:"start_char"`
	EndChar    int       `db:"end_char" json:"end_char"`
	TokenCount int       `db:"token_count" json:"token_count"`
	Overlap    int       `db:"overlap" json:"overlap"`
	Strategy   string    `db:"strategy" json:"strategy"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column, optional
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Entity is a persisted extracted entity. Its ID is a content hash of
// (Type, NormalizedText), so the same real-world item discovered in two
// documents collapses onto one row with both documents in DocumentIDs.
type Entity struct {
	ID             string    `db:"id" json:"id"`
	Type           string    `db:"type" json:"type"`
	Text           string    `db:"text" json:"text"` // display form, first seen
	NormalizedText string    `db:"normalized_text" json:"normalized_text"`
	Confidence     float64   `db:"confidence" json:"confidence"`
	DocumentIDs    []string  `db:"document_ids" json:"document_ids"`
	DocumentCount  int       `db:"document_count" json:"document_count"`
	ChunkRefs      []string  `db:"chunk_refs" json:"chunk_refs"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Relationship links two entities by their content-derived IDs, so it
// stays valid regardless of chunk boundaries or extraction order.
type Relationship struct {
	ID         string    `db:"id" json:"id"`
	SourceID   string    `db:"source_id" json:"source_id"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Label      string    `db:"label" json:"label"`
	Confidence float64   `db:"confidence" json:"confidence"`
	DocumentID string    `db:"document_id" json:"document_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
