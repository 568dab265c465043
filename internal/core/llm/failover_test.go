package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedClient answers every call with a fixed outcome and counts calls.
type cannedClient struct {
	resp  *Response
	err   error
	calls int
}

func (c *cannedClient) Complete(context.Context, Request) (*Response, error) {
	c.calls++
	return c.resp, c.err
}

func (c *cannedClient) CompleteBatch(_ context.Context, reqs []Request) ([]*Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*Response, len(reqs))
	for i := range out {
		out[i] = c.resp
	}
	return out, nil
}

func (c *cannedClient) Close() error { return nil }

func TestFailoverMovesConnectionErrorsToSecondary(t *testing.T) {
	primary := &cannedClient{err: &ConnectionError{Backend: "local:" + BackendExtraction}}
	secondary := &cannedClient{resp: &Response{Content: "via network"}}
	client := WithFailover(primary, secondary, nil)

	resp, err := client.Complete(t.Context(), Request{Backend: BackendExtraction})
	require.NoError(t, err)
	assert.Equal(t, "via network", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFailoverLeavesOtherErrorsAlone(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"generation", &GenerationError{Backend: BackendExtraction, StatusCode: 400, Message: "bad schema"}},
		{"memory exhaustion", &MemoryExhaustionError{Backend: BackendExtraction, Message: "oom"}},
		{"context overflow", &ContextOverflowError{PromptTokens: 50000, Limit: 32768, RecommendedChunks: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &cannedClient{err: tt.err}
			secondary := &cannedClient{resp: &Response{Content: "never used"}}
			client := WithFailover(primary, secondary, nil)

			_, err := client.Complete(t.Context(), Request{})
			require.ErrorIs(t, err, tt.err)
			assert.Zero(t, secondary.calls, "secondary must not see non-connection failures")
		})
	}
}

func TestFailoverSkipsSecondaryOnSuccess(t *testing.T) {
	primary := &cannedClient{resp: &Response{Content: "via socket"}}
	secondary := &cannedClient{}
	client := WithFailover(primary, secondary, nil)

	resp, err := client.Complete(t.Context(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "via socket", resp.Content)
	assert.Zero(t, secondary.calls)
}

func TestFailoverBatch(t *testing.T) {
	primary := &cannedClient{err: &ConnectionError{Backend: "local:batch"}}
	secondary := &cannedClient{resp: &Response{Content: "batched"}}
	client := WithFailover(primary, secondary, nil)

	resps, err := client.CompleteBatch(t.Context(), []Request{{}, {}})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, "batched", resps[0].Content)
	assert.Equal(t, 1, secondary.calls)
}
