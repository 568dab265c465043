package llm

import (
	"context"

	"github.com/markdave123-py/Extracta/internal/core/tokenizer"
)

// guardedClient wraps a transport with the two request-side policies
// every call must pass through:
//
//  1. Reproducibility: temperature forced to 0 and the configured seed
//     applied, unless the request explicitly opts into sampling.
//  2. Context-window guard: prompt tokens are estimated before any I/O;
//     when prompt + completion would overflow the window the completion
//     budget is shrunk into the remaining slack, and when no slack
//     remains a ContextOverflowError is returned. The prompt itself is
//     never truncated.
type guardedClient struct {
	inner            InferenceClient
	est              *tokenizer.Estimator
	seed             int
	window           int
	completionBudget int
}

// Guard wraps inner with reproducibility enforcement and the context
// window check. completionBudget is the default max_tokens applied when
// the request leaves it zero.
func Guard(inner InferenceClient, est *tokenizer.Estimator, seed, window, completionBudget int) InferenceClient {
	return &guardedClient{
		inner:            inner,
		est:              est,
		seed:             seed,
		window:           window,
		completionBudget: completionBudget,
	}
}

func (g *guardedClient) prepare(req Request) (Request, error) {
	if !req.AllowSampling {
		req.Temperature = 0
		req.Seed = g.seed
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.completionBudget
	}

	promptTokens := g.est.Count(req.PromptText())
	if promptTokens >= g.window {
		return req, &ContextOverflowError{
			PromptTokens:      promptTokens,
			Limit:             g.window,
			RecommendedChunks: g.est.RecommendedChunks(promptTokens, g.window, req.MaxTokens),
		}
	}
	if slack := g.window - promptTokens; req.MaxTokens > slack {
		// Shrink the completion budget to fit rather than failing.
		req.MaxTokens = slack
	}
	return req, nil
}

func (g *guardedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	prepared, err := g.prepare(req)
	if err != nil {
		return nil, err
	}
	return g.inner.Complete(ctx, prepared)
}

func (g *guardedClient) CompleteBatch(ctx context.Context, reqs []Request) ([]*Response, error) {
	prepared := make([]Request, len(reqs))
	for i, req := range reqs {
		p, err := g.prepare(req)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}
	return g.inner.CompleteBatch(ctx, prepared)
}

func (g *guardedClient) Close() error { return g.inner.Close() }
