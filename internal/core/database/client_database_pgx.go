package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/Extracta/internal/config"
	"github.com/markdave123-py/Extracta/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: sqlDB}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, storage_url, source_type, content_type, char_count, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.StorageURL, doc.SourceType,
		doc.ContentType, doc.CharCount, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, user_id, file_name, storage_url, source_type, content_type, char_count, status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType,
		&d.ContentType, &d.CharCount, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const q = `
		SELECT id, user_id, file_name, storage_url, source_type, content_type, char_count, status, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType,
			&d.ContentType, &d.CharCount, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// StoreExtraction replaces the document's chunks and relationships and
// upserts its entities, all in one transaction. Chunk IDs are
// deterministic per (document, position), so replacing rather than
// appending makes re-processing idempotent.
func (c *DatabaseClient) StoreExtraction(ctx context.Context, documentID string,
	chunks []models.DocumentChunk, entities []models.Entity, relationships []models.Relationship) error {

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	for i := range entities {
		if err := upsertEntity(ctx, tx, documentID, &entities[i]); err != nil {
			return fmt.Errorf("upsert entity %s: %w", entities[i].ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}
	if err := insertRelationships(ctx, tx, relationships); err != nil {
		return fmt.Errorf("insert relationships: %w", err)
	}

	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	const q = `
		INSERT INTO document_chunks
			(id, document_id, position, text, start_char, end_char, token_count, overlap, strategy, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		var vec any
		if len(ch.Embedding) > 0 {
			vec = pgvector.NewVector(ch.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.Position, ch.Text, ch.StartChar, ch.EndChar,
			ch.TokenCount, ch.Overlap, ch.Strategy, vec, ch.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// upsertEntity is the cross-document merge point. On conflict the row
// keeps the highest confidence seen so far and the document is appended
// to document_ids only if it is not already a member, so concurrent
// writers of different documents converge and re-processing the same
// document does not inflate the count.
func upsertEntity(ctx context.Context, tx *sql.Tx, documentID string, e *models.Entity) error {
	const q = `
		INSERT INTO entities
			(id, type, text, normalized_text, confidence, document_ids, document_count, chunk_refs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, ARRAY[$6]::text[], 1, COALESCE($7, '{}'::text[]), now(), now())
		ON CONFLICT (id) DO UPDATE SET
			confidence = GREATEST(entities.confidence, EXCLUDED.confidence),
			document_ids = CASE
				WHEN $6 = ANY(entities.document_ids) THEN entities.document_ids
				ELSE array_append(entities.document_ids, $6)
			END,
			document_count = CASE
				WHEN $6 = ANY(entities.document_ids) THEN entities.document_count
				ELSE entities.document_count + 1
			END,
			chunk_refs = (
				SELECT COALESCE(array_agg(DISTINCT r ORDER BY r), '{}')
				FROM unnest(entities.chunk_refs || EXCLUDED.chunk_refs) AS r
			),
			updated_at = now()
	`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.Type, e.Text, e.NormalizedText, e.Confidence, documentID, e.ChunkRefs)
	return err
}

func insertRelationships(ctx context.Context, tx *sql.Tx, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	const q = `
		INSERT INTO relationships (id, source_id, target_id, label, confidence, document_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range rels {
		r := &rels[i]
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.SourceID, r.TargetID, r.Label, r.Confidence, r.DocumentID,
		); err != nil {
			return err
		}
	}
	return nil
}

// Implementing the db interface for Document Chunks

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, position, text, start_char, end_char, token_count, overlap, strategy, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &ch.StartChar, &ch.EndChar,
			&ch.TokenCount, &ch.Overlap, &ch.Strategy, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchDocumentChunks finds top-k similar chunks within a document for a query embedding.
func (c *DatabaseClient) SearchDocumentChunks(ctx context.Context, docID string, queryVec []float32, limit int) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, position, text, embedding, token_count
		FROM document_chunks
		WHERE document_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, docID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &emb, &ch.TokenCount); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Implementing the db interface for Entities and Relationships

func (c *DatabaseClient) GetEntityByID(ctx context.Context, id string) (*models.Entity, error) {
	// Array columns travel as JSON text: database/sql has no native
	// text[] scan target.
	const q = `
		SELECT id, type, text, normalized_text, confidence,
			array_to_json(document_ids)::text, document_count,
			array_to_json(chunk_refs)::text, created_at, updated_at
		FROM entities WHERE id = $1
	`
	var (
		e                 models.Entity
		docIDs, chunkRefs string
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.Type, &e.Text, &e.NormalizedText, &e.Confidence,
		&docIDs, &e.DocumentCount, &chunkRefs, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeTextArrays(&e, docIDs, chunkRefs); err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeTextArrays(e *models.Entity, docIDs, chunkRefs string) error {
	if err := json.Unmarshal([]byte(docIDs), &e.DocumentIDs); err != nil {
		return fmt.Errorf("decode document_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(chunkRefs), &e.ChunkRefs); err != nil {
		return fmt.Errorf("decode chunk_refs: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetEntitiesByDocument(ctx context.Context, documentID string) ([]models.Entity, error) {
	const q = `
		SELECT id, type, text, normalized_text, confidence,
			array_to_json(document_ids)::text, document_count,
			array_to_json(chunk_refs)::text, created_at, updated_at
		FROM entities
		WHERE $1 = ANY(document_ids)
		ORDER BY confidence DESC, id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var (
			e                 models.Entity
			docIDs, chunkRefs string
		)
		if err := rows.Scan(
			&e.ID, &e.Type, &e.Text, &e.NormalizedText, &e.Confidence,
			&docIDs, &e.DocumentCount, &chunkRefs, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeTextArrays(&e, docIDs, chunkRefs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GetRelationshipsByDocument(ctx context.Context, documentID string) ([]models.Relationship, error) {
	const q = `
		SELECT id, source_id, target_id, label, confidence, document_id, created_at
		FROM relationships
		WHERE document_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(
			&r.ID, &r.SourceID, &r.TargetID, &r.Label, &r.Confidence, &r.DocumentID, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
