package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChatResponse(t *testing.T) {
	body := []byte(`{
		"choices": [{"message": {"content": "{\"entities\":[]}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 15, "total_tokens": 135}
	}`)
	resp, err := decodeChatResponse(body, 200, BackendExtraction, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"entities":[]}`, resp.Content)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
	assert.Equal(t, 135, resp.Usage.TotalTokens)
	assert.Equal(t, BackendExtraction, resp.Backend)
}

func TestDecodeChatResponseMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			body:   `internal error`,
			status: 500,
			check: func(t *testing.T, err error) {
				var gen *GenerationError
				require.ErrorAs(t, err, &gen)
				assert.Equal(t, 500, gen.StatusCode)
			},
		},
		{
			name:   "oom is memory exhaustion, not generation",
			body:   `CUDA out of memory. Tried to allocate 2.00 GiB`,
			status: 500,
			check: func(t *testing.T, err error) {
				var oom *MemoryExhaustionError
				require.ErrorAs(t, err, &oom)
			},
		},
		{
			name:   "error envelope in 200 body",
			body:   `{"error": {"message": "model not loaded", "type": "invalid_request_error"}}`,
			status: 200,
			check: func(t *testing.T, err error) {
				var gen *GenerationError
				require.ErrorAs(t, err, &gen)
				assert.Contains(t, gen.Message, "model not loaded")
			},
		},
		{
			name:   "empty choices",
			body:   `{"choices": [], "usage": {}}`,
			status: 200,
			check: func(t *testing.T, err error) {
				var gen *GenerationError
				require.ErrorAs(t, err, &gen)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeChatResponse([]byte(tt.body), tt.status, BackendExtraction, 0)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

// stubPayload is named because jsonschema's ExpandedStruct reflection only
// registers named types; an anonymous struct panics the library.
type stubPayload struct{ Name string }

func TestHTTPClientCompleteAgainstStub(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "hi"}}},
			"usage":   Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{
		Backends:    Targets(srv.URL, "extract-model", srv.URL, "reason-model", srv.URL, "embed-model"),
		Timeout:     5 * time.Second,
		RetryBudget: 1,
	})
	defer c.Close()

	resp, err := c.Complete(t.Context(), Request{
		Messages:   []Message{{Role: "user", Content: "hello"}},
		Backend:    BackendReasoning,
		MaxTokens:  64,
		Schema:     MustSchemaFor(stubPayload{}),
		SchemaName: "payload",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, "reason-model", gotReq.Model)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_schema", gotReq.ResponseFormat.Type)
	assert.Equal(t, "payload", gotReq.ResponseFormat.JSONSchema.Name)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "transient failure", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "recovered"}}},
			"usage":   Usage{},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{
		Backends:    Targets(srv.URL, "m", srv.URL, "m", srv.URL, "m"),
		Timeout:     5 * time.Second,
		RetryBudget: 3,
	})
	resp, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, attempts)
}

func TestHTTPClientConnectionError(t *testing.T) {
	c := NewHTTPClient(HTTPOptions{
		Backends:    Targets("http://127.0.0.1:1", "m", "http://127.0.0.1:1", "m", "http://127.0.0.1:1", "m"),
		Timeout:     time.Second,
		RetryBudget: 0,
	})
	_, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	var conn *ConnectionError
	require.ErrorAs(t, err, &conn)
	assert.True(t, IsRetryable(err))
}

func TestRetryableAttempt(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection error", &ConnectionError{Backend: BackendExtraction, Err: errors.New("dial refused")}, true},
		{"server error", &GenerationError{StatusCode: 502}, true},
		{"client error", &GenerationError{StatusCode: 400}, false},
		{"memory exhaustion", &MemoryExhaustionError{Message: "oom"}, false},
		{"plain error", errors.New("nope"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableAttempt(tt.err))
		})
	}
}

func TestNewLocalClientRequiresSocket(t *testing.T) {
	_, err := NewLocalClient(LocalOptions{SocketPath: ""})
	require.Error(t, err)
	_, err = NewLocalClient(LocalOptions{SocketPath: "/nonexistent/engine.sock"})
	require.Error(t, err)
}
