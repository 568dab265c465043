package llm

import (
	"time"

	"github.com/markdave123-py/Extracta/internal/config"
	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
	"github.com/markdave123-py/Extracta/internal/logger"
)

// defaultCompletionBudget caps max_tokens when the caller leaves it
// unset; extraction waves rarely need more.
const defaultCompletionBudget = 4096

// NewClient builds the inference client: the local unix-socket fast
// path when an engine socket is configured and reachable, with the HTTP
// transport behind it so a socket that dies after startup fails over per
// request instead of failing the document. Either way the result is
// wrapped with reproducibility enforcement and the context-window guard.
func NewClient(cfg *config.Config, est *tokenizer.Estimator, log logger.Logger) InferenceClient {
	if log == nil {
		log = logger.Default()
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	httpClient := NewHTTPClient(HTTPOptions{
		Backends: Targets(
			cfg.ExtractionBaseURL, cfg.ExtractionModel,
			cfg.ReasoningBaseURL, cfg.ReasoningModel,
			cfg.EmbeddingBaseURL, cfg.EmbeddingModel,
		),
		Timeout:     timeout,
		RetryBudget: cfg.RetryBudget,
		Logger:      log,
	})

	var inner InferenceClient = httpClient
	local, err := NewLocalClient(LocalOptions{
		SocketPath: cfg.LocalSocketPath,
		Models: map[string]string{
			BackendExtraction: cfg.ExtractionModel,
			BackendReasoning:  cfg.ReasoningModel,
			BackendEmbedding:  cfg.EmbeddingModel,
		},
		Timeout: timeout,
		Logger:  log,
	})
	if err == nil {
		log.Info("inference transport: local engine socket with HTTP failover", "socket", cfg.LocalSocketPath)
		inner = WithFailover(local, httpClient, log)
	} else {
		log.Info("local engine unavailable, using HTTP transport", "reason", err)
	}

	return Guard(inner, est, cfg.Seed, cfg.ContextWindow, defaultCompletionBudget)
}
