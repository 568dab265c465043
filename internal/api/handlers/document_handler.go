package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/Extracta/internal/api/middlewares"
	"github.com/markdave123-py/Extracta/internal/core/router"
	"github.com/markdave123-py/Extracta/internal/logger"
	"github.com/markdave123-py/Extracta/internal/models"
	"github.com/markdave123-py/Extracta/internal/services"
)

type DocumentHandler struct {
	documents  *services.DocumentService
	extraction *services.ExtractionService
	log        logger.Logger
}

func NewDocumentHandler(documents *services.DocumentService, extraction *services.ExtractionService, log logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DocumentHandler{documents: documents, extraction: extraction, log: log}
}

// UploadDocument handles file upload, DB insert, and queues background
// extraction. Optional form fields tune the routing: "strategy" forces a
// processing strategy, "relationships" and "deep" are boolean flags.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(52 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}

	cleanFilename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	doc, err := h.documents.UploadAndCreate(uploadCtx, userID, cleanFilename, contentType, data, "upload")
	if err != nil {
		h.log.Error("document upload failed", "user", userID, "err", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	h.extraction.Enqueue(services.ExtractionJob{
		DocumentID: doc.ID,
		Options: router.Options{
			StrategyOverride: r.FormValue("strategy"),
			Relationships:    r.FormValue("relationships") == "true",
			Deep:             r.FormValue("deep") == "true",
		},
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	documents, err := h.documents.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(w, r)
	if doc == nil || err != nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) GetDocumentEntities(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(w, r)
	if doc == nil || err != nil {
		return
	}
	entities, err := h.documents.Entities(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entities)
}

func (h *DocumentHandler) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(w, r)
	if doc == nil || err != nil {
		return
	}
	chunks, err := h.documents.Chunks(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunks)
}

// SearchDocumentChunks ranks a document's chunks against a free-text
// query by embedding distance. Query params: q (required), limit.
func (h *DocumentHandler) SearchDocumentChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(w, r)
	if doc == nil || err != nil {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	chunks, err := h.documents.SearchChunks(r.Context(), doc.ID, query, limit)
	if errors.Is(err, services.ErrSearchUnavailable) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.log.Error("chunk search failed", "document", doc.ID, "err", err)
		http.Error(w, "chunk search failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunks)
}

func (h *DocumentHandler) GetDocumentRelationships(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(w, r)
	if doc == nil || err != nil {
		return
	}
	rels, err := h.documents.Relationships(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rels)
}

// GetEntity looks up one entity by its content-derived ID. Entities
// span documents, so there is no per-user ownership check here.
func (h *DocumentHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entity_id")
	entity, err := h.documents.Entity(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entity == nil {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entity)
}

func (h *DocumentHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ownedDocument loads the path document and enforces that it belongs to
// the authenticated user. On failure it writes the response and returns
// nil.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, error) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil, nil
	}
	docID := chi.URLParam(r, "document_id")
	doc, err := h.documents.Get(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	if doc == nil || doc.UserID != userID {
		http.Error(w, "document not found", http.StatusNotFound)
		return nil, nil
	}
	return doc, nil
}
