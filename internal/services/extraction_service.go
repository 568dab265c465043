package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Extracta/internal/core/chunking"
	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/core/extraction"
	"github.com/markdave123-py/Extracta/internal/core/ingest"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	"github.com/markdave123-py/Extracta/internal/core/objectstore"
	"github.com/markdave123-py/Extracta/internal/core/router"
	"github.com/markdave123-py/Extracta/internal/logger"
	"github.com/markdave123-py/Extracta/internal/models"
)

// ExtractionJob is one queued unit of background work.
type ExtractionJob struct {
	DocumentID string
	Options    router.Options
}

// ExtractionService runs the background workers that take uploaded
// documents through text extraction, the wave pipeline, and persistence.
type ExtractionService struct {
	db           db.DbClient
	storage      objectstore.ObjectClient
	extractor    ingest.TextExtractor
	orchestrator *extraction.Orchestrator
	embedder     llm.EmbeddingProvider
	log          logger.Logger
	jobs         chan ExtractionJob
}

// NewExtractionService constructs the service with a bounded job queue
// (64). storage and embedder may be nil in inline-text deployments.
func NewExtractionService(database db.DbClient, storage objectstore.ObjectClient,
	extractor ingest.TextExtractor, orch *extraction.Orchestrator,
	embedder llm.EmbeddingProvider, log logger.Logger) *ExtractionService {
	if log == nil {
		log = logger.Default()
	}
	return &ExtractionService{
		db:           database,
		storage:      storage,
		extractor:    extractor,
		orchestrator: orch,
		embedder:     embedder,
		log:          log,
		jobs:         make(chan ExtractionJob, 64),
	}
}

// Start launches numWorkers goroutines reading from the job queue. They
// exit when ctx is cancelled.
func (s *ExtractionService) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					s.log.Info("extraction worker shutting down", "worker", w)
					return
				case job := <-s.jobs:
					s.log.Info("processing document", "worker", w, "document", job.DocumentID)
					if err := s.ProcessOne(ctx, job); err != nil {
						s.log.Error("document processing failed", "document", job.DocumentID, "err", err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a document for extraction. Blocks when the queue is
// full.
func (s *ExtractionService) Enqueue(job ExtractionJob) {
	s.jobs <- job
}

// ProcessOne runs the full pipeline for one document: fetch, extract
// text, route and run waves, persist chunks, entities and relationships
// atomically.
func (s *ExtractionService) ProcessOne(ctx context.Context, job ExtractionJob) error {
	doc, err := s.db.GetDocumentByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", job.DocumentID)
	}

	if err := s.db.UpdateDocumentStatus(ctx, job.DocumentID, "processing"); err != nil {
		return err
	}

	text, err := s.loadText(ctx, doc)
	if err != nil {
		_ = s.db.UpdateDocumentStatus(ctx, job.DocumentID, "failed")
		return err
	}

	result, err := s.orchestrator.Extract(ctx, doc.ID, text, job.Options)
	if err != nil {
		_ = s.db.UpdateDocumentStatus(ctx, job.DocumentID, "failed")
		return fmt.Errorf("extract: %w", err)
	}
	for _, d := range result.Diagnostics {
		s.log.Warn("extraction diagnostic", "document", doc.ID, "detail", d)
	}

	chunks := s.toChunkRows(ctx, doc.ID, result.Chunks)
	entities := toEntityRows(result.Entities)
	relationships := toRelationshipRows(doc.ID, result.Relationships)

	if err := s.db.StoreExtraction(ctx, doc.ID, chunks, entities, relationships); err != nil {
		_ = s.db.UpdateDocumentStatus(ctx, job.DocumentID, "failed")
		return fmt.Errorf("store extraction: %w", err)
	}

	s.log.Info("document ready",
		"document", doc.ID,
		"strategy", result.Decision.Strategy,
		"entities", len(entities),
		"relationships", len(relationships),
		"chunks", len(chunks))
	return s.db.UpdateDocumentStatus(ctx, job.DocumentID, "ready")
}

// loadText fetches the stored object and converts it to plain text.
func (s *ExtractionService) loadText(ctx context.Context, doc *models.Document) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("no object storage configured for document %s", doc.ID)
	}
	key := objectKeyFromURL(doc.StorageURL)
	if key == "" {
		return "", fmt.Errorf("cannot derive object key from %q", doc.StorageURL)
	}
	data, err := s.storage.GetFile(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch object: %w", err)
	}
	return s.extractor.ExtractText(ctx, data, doc.ContentType)
}

// toChunkRows maps pipeline chunks to persistence rows, embedding the
// texts in one batch when an embedder is wired. Embedding failures are
// logged, not fatal: rows persist without vectors.
func (s *ExtractionService) toChunkRows(ctx context.Context, docID string, chunks []chunking.Chunk) []models.DocumentChunk {
	if len(chunks) == 0 {
		return nil
	}
	var vecs [][]float32
	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Text
		}
		v, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			s.log.Warn("chunk embedding failed", "document", docID, "err", err)
		} else if len(v) == len(chunks) {
			vecs = v
		}
	}

	rows := make([]models.DocumentChunk, len(chunks))
	now := time.Now().UTC()
	for i, c := range chunks {
		rows[i] = models.DocumentChunk{
			ID:         chunking.ChunkID(docID, c.Index),
			DocumentID: docID,
			Position:   c.Index,
			Text:       c.Text,
			StartChar:  c.Start,
			EndChar:    c.End,
			TokenCount: c.TokenCount,
			Overlap:    c.Overlap,
			Strategy:   c.Strategy,
			CreatedAt:  now,
		}
		if vecs != nil {
			rows[i].Embedding = vecs[i]
		}
	}
	return rows
}

func toEntityRows(entities []extraction.ExtractedEntity) []models.Entity {
	rows := make([]models.Entity, len(entities))
	for i, e := range entities {
		rows[i] = models.Entity{
			ID:             e.ID,
			Type:           e.Type,
			Text:           e.Text,
			NormalizedText: extraction.NormalizeText(e.Text),
			Confidence:     e.Confidence,
			ChunkRefs:      e.ChunkIDs,
		}
	}
	return rows
}

func toRelationshipRows(docID string, rels []extraction.ExtractedRelationship) []models.Relationship {
	rows := make([]models.Relationship, len(rels))
	for i, r := range rels {
		rows[i] = models.Relationship{
			ID:         uuid.NewString(),
			SourceID:   r.SourceID,
			TargetID:   r.TargetID,
			Label:      r.Label,
			Confidence: r.Confidence,
			DocumentID: docID,
		}
	}
	return rows
}

// objectKeyFromURL extracts the key from a virtual-hosted-style S3 URL.
// Example: https://bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func objectKeyFromURL(u string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
