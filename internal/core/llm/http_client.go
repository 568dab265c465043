package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/markdave123-py/Extracta/internal/logger"
)

// backendTarget is one named inference service.
type backendTarget struct {
	BaseURL string
	Model   string
}

// chatRequest is the OpenAI-compatible wire format both transports speak.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Seed           int             `json:"seed,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type batchRequest struct {
	Requests []chatRequest `json:"requests"`
}

type batchResponse struct {
	Responses []chatResponse `json:"responses"`
}

// HTTPClient talks to the named backends over TCP with resty. It is the
// fallback transport when no local engine socket is configured.
type HTTPClient struct {
	rc          *resty.Client
	backends    map[string]backendTarget
	retryBudget int
	log         logger.Logger
}

// HTTPOptions configures the network transport.
type HTTPOptions struct {
	Backends    map[string]backendTarget
	Timeout     time.Duration
	RetryBudget int
	Logger      logger.Logger
}

// Targets builds the backend map from base URLs and model names.
func Targets(extractionURL, extractionModel, reasoningURL, reasoningModel, embeddingURL, embeddingModel string) map[string]backendTarget {
	return map[string]backendTarget{
		BackendExtraction: {BaseURL: extractionURL, Model: extractionModel},
		BackendReasoning:  {BaseURL: reasoningURL, Model: reasoningModel},
		BackendEmbedding:  {BaseURL: embeddingURL, Model: embeddingModel},
	}
}

// NewHTTPClient builds the network transport. It does not dial eagerly;
// connection failures surface per request.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPClient{
		rc:          rc,
		backends:    opts.Backends,
		retryBudget: opts.RetryBudget,
		log:         opts.Logger,
	}
}

func (c *HTTPClient) target(name string) (backendTarget, error) {
	if name == "" {
		name = BackendExtraction
	}
	t, ok := c.backends[name]
	if !ok || t.BaseURL == "" {
		return backendTarget{}, fmt.Errorf("no backend configured for %q", name)
	}
	return t, nil
}

func buildWireRequest(req Request, model string) chatRequest {
	wire := chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Seed:        req.Seed,
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "result"
		}
		wire.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaSpec{Name: name, Schema: req.Schema, Strict: true},
		}
	}
	return wire
}

// Complete issues one chat completion, retrying transient failures
// (unreachable backend, server-side generation errors) with exponential
// backoff up to the configured budget.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	t, err := c.target(req.Backend)
	if err != nil {
		return nil, err
	}
	wire := buildWireRequest(req, t.Model)

	var resp *Response
	backoff := retry.WithMaxRetries(uint64(c.retryBudget), retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, callErr := c.post(ctx, t.BaseURL+"/v1/chat/completions", req.Backend, wire)
		if callErr != nil {
			if retryableAttempt(callErr) {
				c.log.Warn("attempt failed, retrying", "backend", req.Backend, "err", callErr)
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CompleteBatch has no native batch route over TCP, so it degrades to
// sequential calls. The local transport overrides this with a single
// round trip.
func (c *HTTPClient) CompleteBatch(ctx context.Context, reqs []Request) ([]*Response, error) {
	out := make([]*Response, len(reqs))
	for i, req := range reqs {
		r, err := c.Complete(ctx, req)
		if err != nil {
			return out, err
		}
		out[i] = r
	}
	return out, nil
}

func (c *HTTPClient) Close() error { return nil }

// post sends one wire request and maps transport/HTTP failures onto the
// error taxonomy.
func (c *HTTPClient) post(ctx context.Context, url, backend string, wire chatRequest) (*Response, error) {
	start := time.Now()
	httpResp, err := c.rc.R().
		SetContext(ctx).
		SetBody(wire).
		Post(url)
	if err != nil {
		return nil, &ConnectionError{Backend: backend, Err: err}
	}
	return decodeChatResponse(httpResp.Body(), httpResp.StatusCode(), backend, time.Since(start))
}

func decodeChatResponse(body []byte, status int, backend string, latency time.Duration) (*Response, error) {
	if status != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if looksLikeOOM(msg) {
			return nil, &MemoryExhaustionError{Backend: backend, Message: msg}
		}
		return nil, &GenerationError{Backend: backend, StatusCode: status, Message: msg}
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &GenerationError{Backend: backend, StatusCode: status, Message: "undecodable response body"}
	}
	if parsed.Error != nil {
		if looksLikeOOM(parsed.Error.Message) {
			return nil, &MemoryExhaustionError{Backend: backend, Message: parsed.Error.Message}
		}
		return nil, &GenerationError{Backend: backend, StatusCode: status, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &GenerationError{Backend: backend, StatusCode: status, Message: "no choices in response"}
	}
	return &Response{
		Content: parsed.Choices[0].Message.Content,
		Usage:   parsed.Usage,
		Latency: latency,
		Backend: backend,
	}, nil
}

func looksLikeOOM(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "out of memory") || strings.Contains(lower, "oom")
}

// retryableAttempt reports whether another attempt on the same transport
// can help: the backend was unreachable, or it answered with a server
// error. Client errors, overflow and memory exhaustion surface
// immediately; the latter two have dedicated recovery paths upstream.
func retryableAttempt(err error) bool {
	var conn *ConnectionError
	if errors.As(err, &conn) {
		return true
	}
	var gen *GenerationError
	return errors.As(err, &gen) && gen.StatusCode >= 500
}

// unixTransport builds an http.RoundTripper that dials a unix domain
// socket regardless of the request URL's host. Shared with LocalClient.
func unixTransport(socketPath string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
}
