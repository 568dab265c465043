package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/markdave123-py/Extracta/internal/config"
	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/core/extraction"
	"github.com/markdave123-py/Extracta/internal/core/gpu"
	"github.com/markdave123-py/Extracta/internal/core/ingest"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	"github.com/markdave123-py/Extracta/internal/core/objectstore"
	"github.com/markdave123-py/Extracta/internal/core/router"
	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
	"github.com/markdave123-py/Extracta/internal/logger"
	"github.com/markdave123-py/Extracta/internal/services"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	Log        logger.Logger
	DBClient   db.DbClient
	Storage    objectstore.ObjectClient
	Inference  llm.InferenceClient
	Embedder   *llm.GeminiEmbedder
	Monitor    *gpu.Monitor
	Extraction *services.ExtractionService
	Server     *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appLog := logger.New(os.Stderr, cfg.LogLevel)

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	appLog.Info("database initialized and ready")

	objClient, err := objectstore.NewS3Client(appCtx, cfg, appLog)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	est := tokenizer.New(cfg.CharsPerToken)
	inference := llm.NewClient(cfg, est, appLog)

	var embedder *llm.GeminiEmbedder
	if cfg.AIAPIKey != "" {
		embedder, err = llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	} else {
		appLog.Warn("no embedding API key configured, semantic chunking degrades to recursive")
	}

	monitor := gpu.NewMonitor(cfg.GPUWarnThreshold, time.Duration(cfg.GPUPollSeconds)*time.Second, appLog)

	profiles := make(router.Profiles, len(cfg.RouterProfiles))
	for name, p := range cfg.RouterProfiles {
		profiles[name] = router.Profile{
			PromptOverheadTokens: p.PromptOverheadTokens,
			ResponseTokens:       p.ResponseTokens,
			Seconds:              p.Seconds,
			Accuracy:             p.Accuracy,
		}
	}
	docRouter := router.New(router.Thresholds{
		VerySmall: cfg.VerySmallChars,
		Small:     cfg.SmallChars,
		Large:     cfg.LargeChars,
	}, cfg.PricePer1K, profiles, est)

	var chunkEmbedder llm.EmbeddingProvider
	if embedder != nil {
		chunkEmbedder = embedder
	}

	orch := extraction.NewOrchestrator(inference, docRouter, extraction.NewRuleMatcher(),
		chunkEmbedder, monitor, appLog, extraction.Options{
			ChunkStrategy:   cfg.ChunkStrategy,
			ChunkMaxSize:    cfg.ChunkMaxSize,
			ChunkOverlap:    cfg.ChunkOverlap,
			Estimator:       est,
			Concurrency:     int64(cfg.ChunkConcurrency),
			DocumentTimeout: time.Duration(cfg.DocumentTimeout) * time.Second,
		})

	extractor := ingest.NewDocconvExtractor(false)

	extractionSvc := services.NewExtractionService(dbClient, objClient, extractor, orch, chunkEmbedder, appLog)

	users := services.NewUserService(dbClient)
	documents := services.NewDocumentService(dbClient, objClient, chunkEmbedder)

	server := NewServer(cfg, users, documents, extractionSvc, appLog)

	return &App{
		Log:        appLog,
		DBClient:   dbClient,
		Storage:    objClient,
		Inference:  inference,
		Embedder:   embedder,
		Monitor:    monitor,
		Extraction: extractionSvc,
		Server:     server,
	}, nil
}

// Start launches the background workers, the accelerator watch loop and
// the HTTP server. Blocks until the server stops.
func (a *App) Start(ctx context.Context, workers int) error {
	a.Extraction.Start(ctx, workers)
	go a.Monitor.Watch(ctx)
	return a.Server.Start()
}

func (a *App) Close() {
	if a.Inference != nil {
		_ = a.Inference.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
