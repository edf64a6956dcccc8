package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/config"
)

// fakeChatServer answers /v1/chat/completions with content, or with status
// when it is not 200.
func fakeChatServer(t *testing.T, status int, content string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unhappy","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{BaseURL: baseURL + "/v1", Model: "test-model", Timeout: 5 * time.Second, MaxAttempts: 2}
}

func TestChatClient_Complete(t *testing.T) {
	srv, calls := fakeChatServer(t, http.StatusOK, "hello")
	client := NewChatClient(testLLMConfig(srv.URL))

	text, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestChatClient_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeChatServer(t, http.StatusBadGateway, "")
	cfg := testLLMConfig(srv.URL)
	client := NewChatClient(cfg)
	client.policy.Delay = time.Millisecond
	client.policy.MaxDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.Contains(t, serr.Message, "502")
	assert.EqualValues(t, cfg.MaxAttempts, atomic.LoadInt32(calls))
}

func TestChatClient_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := fakeChatServer(t, http.StatusUnauthorized, "")
	client := NewChatClient(testLLMConfig(srv.URL))

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestResolveLLMConfig(t *testing.T) {
	base := config.LLMConfig{BaseURL: "http://env.local/v1", APIKey: "env-key"}

	resolved := ResolveLLMConfig(base, LLMOverride{})
	assert.Equal(t, "http://env.local/v1", resolved.BaseURL)
	assert.Equal(t, DefaultLLMModel, resolved.Model)

	resolved = ResolveLLMConfig(base, LLMOverride{URL: "http://override.local/v1/", Model: "llama3", Key: " k "})
	assert.Equal(t, "http://override.local/v1", resolved.BaseURL)
	assert.Equal(t, "llama3", resolved.Model)
	assert.Equal(t, "k", resolved.APIKey)

	assert.False(t, ResolveLLMConfig(config.LLMConfig{}, LLMOverride{}).Configured())
}
