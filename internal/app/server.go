package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Extracta/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Extracta/internal/api/middlewares"
	"github.com/markdave123-py/Extracta/internal/config"
	"github.com/markdave123-py/Extracta/internal/logger"
	"github.com/markdave123-py/Extracta/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, users *services.UserService,
	documents *services.DocumentService, extraction *services.ExtractionService,
	log logger.Logger) *Server {

	authHandler := handlers.NewAuthHandler(users, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(documents, extraction, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/healthz", docHandler.Healthz)
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			protected.Post("/documents/upload", docHandler.UploadDocument)
			protected.Get("/documents", docHandler.GetDocuments)
			protected.Get("/documents/{document_id}", docHandler.GetDocument)
			protected.Get("/documents/{document_id}/entities", docHandler.GetDocumentEntities)
			protected.Get("/documents/{document_id}/chunks", docHandler.GetDocumentChunks)
			protected.Get("/documents/{document_id}/chunks/search", docHandler.SearchDocumentChunks)
			protected.Get("/documents/{document_id}/relationships", docHandler.GetDocumentRelationships)
			protected.Get("/entities/{entity_id}", docHandler.GetEntity)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
