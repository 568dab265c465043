package llm

import (
	"errors"
	"fmt"
)

// ConnectionError means the transport could not reach the backend at
// all. Retryable; the factory falls back to the other transport when it
// sees one during initialization.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("backend %q unreachable: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// GenerationError means the backend answered but refused or failed the
// generation. Retried with backoff up to the configured budget.
type GenerationError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("backend %q generation failed (status %d): %s", e.Backend, e.StatusCode, e.Message)
}

// ContextOverflowError means the prompt cannot fit the context window
// even with a zero completion budget. Not retryable; the caller must
// chunk the input. RecommendedChunks tells it how finely.
type ContextOverflowError struct {
	PromptTokens      int
	Limit             int
	RecommendedChunks int
}

func (e *ContextOverflowError) Error() string {
	return fmt.Sprintf("prompt of ~%d tokens exceeds context window of %d; split into %d chunks",
		e.PromptTokens, e.Limit, e.RecommendedChunks)
}

// MemoryExhaustionError means the accelerator behind the backend ran out
// of memory. Callers should wait on the GPU monitor and retry rather
// than treating the backend as down.
type MemoryExhaustionError struct {
	Backend string
	Message string
}

func (e *MemoryExhaustionError) Error() string {
	return fmt.Sprintf("backend %q accelerator out of memory: %s", e.Backend, e.Message)
}

// IsRetryable reports whether the error class permits another attempt on
// the same transport.
func IsRetryable(err error) bool {
	var gen *GenerationError
	var conn *ConnectionError
	return errors.As(err, &gen) || errors.As(err, &conn)
}
