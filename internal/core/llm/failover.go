package llm

import (
	"context"
	"errors"

	"github.com/markdave123-py/Extracta/internal/logger"
)

// failoverClient prefers one transport and moves a request to the other
// when the first is unreachable. The local engine can disappear after
// startup (restart, redeploy); a connection error mid-flight should cost
// one extra round trip, not the document.
type failoverClient struct {
	primary   InferenceClient
	secondary InferenceClient
	log       logger.Logger
}

// WithFailover wraps primary so that connection errors are re-issued on
// secondary. Every other error class returns unchanged: the secondary
// transport would hit the same model-side failure.
func WithFailover(primary, secondary InferenceClient, log logger.Logger) InferenceClient {
	if log == nil {
		log = logger.Default()
	}
	return &failoverClient{primary: primary, secondary: secondary, log: log}
}

func (f *failoverClient) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := f.primary.Complete(ctx, req)
	if err == nil || !isConnection(err) {
		return resp, err
	}
	f.log.Warn("primary transport unreachable, failing over", "backend", req.Backend, "err", err)
	return f.secondary.Complete(ctx, req)
}

func (f *failoverClient) CompleteBatch(ctx context.Context, reqs []Request) ([]*Response, error) {
	resps, err := f.primary.CompleteBatch(ctx, reqs)
	if err == nil || !isConnection(err) {
		return resps, err
	}
	f.log.Warn("primary transport unreachable, failing over batch", "requests", len(reqs), "err", err)
	return f.secondary.CompleteBatch(ctx, reqs)
}

func (f *failoverClient) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

func isConnection(err error) bool {
	var conn *ConnectionError
	return errors.As(err, &conn)
}
