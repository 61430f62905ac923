package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/models"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(ClientConfig{
		Endpoint:   url,
		Model:      "test-model",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	})
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Tools, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "test-123",
			"model": "test-model",
			"choices": [{
				"message": {"role": "assistant", "content": "{\"signal\": \"BUY\"}"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	resp, err := client.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "analyze AAPL"},
	}, []Tool{
		{Type: "function", Function: ToolFunction{Name: "get_stock_price"}},
	})

	require.NoError(t, err)
	msg := resp.FirstMessage()
	require.NotNil(t, msg)
	assert.Contains(t, msg.Content, "BUY")
}

func TestClient_Complete_ToolCallsDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "calculate_technicals", "arguments": "{\"ticker\":\"AAPL\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	resp, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)

	require.NoError(t, err)
	msg := resp.FirstMessage()
	require.NotNil(t, msg)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "calculate_technicals", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, msg.ToolCalls[0].Function.Arguments)
}

func TestClient_Complete_RateLimitNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstreamRateLimit)
	assert.Equal(t, 1, calls, "rate limiting must surface immediately, not retry")
}

func TestClient_Complete_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	resp, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "ok", resp.FirstMessage().Content)
}

func TestClient_Complete_EmptyChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	assert.Error(t, err)
}

func TestClient_BreakerOpensAfterSustainedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "down", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	ctx := context.Background()
	messages := []Message{{Role: RoleUser, Content: "go"}}

	for i := 0; i < 10; i++ {
		_, err := client.Complete(ctx, messages, nil)
		require.Error(t, err)
	}

	// Once open, calls fail fast without reaching the provider.
	_, err := client.Complete(ctx, messages, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}
