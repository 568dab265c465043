package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob, loaded once at startup and never
// mutated afterwards. Components receive it (or the slice of it they
// need) through their constructors.
type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	SslCertPath  string
	JWTSecret    string
	Port         string
	LogLevel     string

	// Inference backends. Each is an OpenAI-compatible chat-completions
	// endpoint; the local socket is the fast path when a co-located
	// engine is running on the same host.
	ExtractionBaseURL string
	ExtractionModel   string
	ReasoningBaseURL  string
	ReasoningModel    string
	EmbeddingBaseURL  string
	EmbeddingModel    string
	LocalSocketPath   string
	AIAPIKey          string
	EmbedDim          int

	// Reproducibility and window limits.
	Seed          int
	ContextWindow int
	CharsPerToken float64

	// Routing thresholds (characters) and per-strategy constants.
	// Calibrated against one model family; override per deployment.
	VerySmallChars int
	SmallChars     int
	LargeChars     int
	PricePer1K     float64
	RouterProfiles map[string]StrategyProfile

	// Chunking defaults.
	ChunkStrategy string
	ChunkMaxSize  int
	ChunkOverlap  int

	// Concurrency / retry / timeouts (seconds where noted).
	IngestWorkers    int
	ChunkConcurrency int
	RetryBudget      int
	RequestTimeout   int
	DocumentTimeout  int

	// Accelerator monitor.
	GPUWarnThreshold float64
	GPUPollSeconds   int
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "extracta-docs"),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		ExtractionBaseURL: getEnv("EXTRACTION_BASE_URL", "http://localhost:8001"),
		ExtractionModel:   getEnv("EXTRACTION_MODEL", "qwen2.5-14b-instruct"),
		ReasoningBaseURL:  getEnv("REASONING_BASE_URL", "http://localhost:8002"),
		ReasoningModel:    getEnv("REASONING_MODEL", "deepseek-r1-distill-32b"),
		EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://localhost:8003"),
		EmbeddingModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		LocalSocketPath:   getEnv("LOCAL_ENGINE_SOCKET", ""),
		AIAPIKey:          getEnv("GEMINI_API_KEY", ""),
		EmbedDim:          getEnvInt("EMBED_DIM", 768),

		Seed:          getEnvInt("INFERENCE_SEED", 42),
		ContextWindow: getEnvInt("CONTEXT_WINDOW", 32768),
		CharsPerToken: getEnvFloat("CHARS_PER_TOKEN", 4.0),

		VerySmallChars: getEnvInt("ROUTE_VERY_SMALL_CHARS", 2000),
		SmallChars:     getEnvInt("ROUTE_SMALL_CHARS", 8000),
		LargeChars:     getEnvInt("ROUTE_LARGE_CHARS", 20000),
		PricePer1K:     getEnvFloat("PRICE_PER_1K_TOKENS", 0.002),
		RouterProfiles: map[string]StrategyProfile{
			"single_pass":        getProfile("ROUTE_SINGLE_PASS", StrategyProfile{350, 800, 15, 0.78}),
			"three_wave":         getProfile("ROUTE_THREE_WAVE", StrategyProfile{1100, 2400, 60, 0.88}),
			"chunked_three_wave": getProfile("ROUTE_CHUNKED_THREE_WAVE", StrategyProfile{1100, 2400, 120, 0.90}),
			"full_graph":         getProfile("ROUTE_FULL_GRAPH", StrategyProfile{1700, 3600, 200, 0.94}),
		},

		ChunkStrategy: getEnv("CHUNK_STRATEGY", "recursive"),
		ChunkMaxSize:  getEnvInt("CHUNK_MAX_SIZE", 6000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),

		IngestWorkers:    getEnvInt("INGEST_WORKERS", 2),
		ChunkConcurrency: getEnvInt("CHUNK_CONCURRENCY", 5),
		RetryBudget:      getEnvInt("RETRY_BUDGET", 3),
		RequestTimeout:   getEnvInt("REQUEST_TIMEOUT_SECONDS", 120),
		DocumentTimeout:  getEnvInt("DOCUMENT_TIMEOUT_SECONDS", 600),

		GPUWarnThreshold: getEnvFloat("GPU_WARN_THRESHOLD", 0.90),
		GPUPollSeconds:   getEnvInt("GPU_POLL_SECONDS", 5),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// StrategyProfile carries one routing strategy's calibration constants.
type StrategyProfile struct {
	PromptOverheadTokens int
	ResponseTokens       int
	Seconds              float64
	Accuracy             float64
}

// getProfile reads one strategy's calibration from PREFIX_OVERHEAD_TOKENS,
// PREFIX_RESPONSE_TOKENS, PREFIX_SECONDS and PREFIX_ACCURACY.
func getProfile(prefix string, def StrategyProfile) StrategyProfile {
	return StrategyProfile{
		PromptOverheadTokens: getEnvInt(prefix+"_OVERHEAD_TOKENS", def.PromptOverheadTokens),
		ResponseTokens:       getEnvInt(prefix+"_RESPONSE_TOKENS", def.ResponseTokens),
		Seconds:              getEnvFloat(prefix+"_SECONDS", def.Seconds),
		Accuracy:             getEnvFloat(prefix+"_ACCURACY", def.Accuracy),
	}
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}
