package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Backend names. Each maps to a base URL + model in config; the
// extraction backend is tuned for speed, the reasoning backend for
// multi-step relationship inference.
const (
	BackendExtraction = "extraction"
	BackendReasoning  = "reasoning"
	BackendEmbedding  = "embedding"
)

// Message is one role-tagged turn of a chat-completions request.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Request is a single inference call. Temperature and Seed are
// overridden by the reproducibility wrapper unless AllowSampling is set.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Seed        int
	// Schema, when set, is attached as a structured-output constraint so
	// the backend is forced to emit JSON matching it.
	Schema json.RawMessage
	// SchemaName labels the schema in the response_format envelope.
	SchemaName string
	// Backend selects the target service; empty means extraction.
	Backend string
	// AllowSampling opts out of forced temperature 0 / fixed seed.
	AllowSampling bool
}

// Usage is the backend-reported token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response carries the generated text plus accounting.
type Response struct {
	Content string
	Usage   Usage
	Latency time.Duration
	Backend string
}

// InferenceClient abstracts over the local fast-path and the network
// transport. Implementations must be safe for concurrent use.
type InferenceClient interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	// CompleteBatch issues several requests in one backend round trip
	// where the transport supports it, sequentially otherwise. The
	// returned slice is positionally aligned with the input.
	CompleteBatch(ctx context.Context, reqs []Request) ([]*Response, error)
	Close() error
}

// PromptText concatenates message contents; used by the context guard
// to estimate prompt tokens before any I/O happens.
func (r Request) PromptText() string {
	var total int
	for _, m := range r.Messages {
		total += len(m.Content)
	}
	buf := make([]byte, 0, total+len(r.Messages))
	for _, m := range r.Messages {
		buf = append(buf, m.Content...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
