package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, finishReason, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-test",
			"model": Model,
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": finishReason,
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 34,
				"total_tokens":      46,
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteReturnsContentAndUsage(t *testing.T) {
	srv := stubServer(t, "stop", "hello world")
	client := New("test-key", srv.URL, nil)

	result, err := client.Complete(context.Background(), "say hello", CallOptions{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Content)
	assert.Equal(t, "stop", result.FinishReason)
	assert.EqualValues(t, 12, result.InputTokens)
	assert.EqualValues(t, 34, result.OutputTokens)
}

func TestCompleteReportsTruncationOnLengthFinish(t *testing.T) {
	srv := stubServer(t, "length", "partial respo")
	client := New("test-key", srv.URL, nil)

	result, err := client.Complete(context.Background(), "say something long", CallOptions{MaxTokens: 10})
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
	require.NotNil(t, result)
	assert.Equal(t, "partial respo", result.Content, "truncated content is still returned for salvage attempts")
}

func TestDefaultCallOptions(t *testing.T) {
	opts := DefaultCallOptions()
	assert.Nil(t, opts.Temperature, "provider-default temperature is omitted, not pinned")
	assert.EqualValues(t, 4096, opts.MaxTokens)
}

func TestCompleteOmitsTemperatureWhenUnset(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-test",
			"model":   Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "ok"}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	client := New("test-key", srv.URL, nil)

	_, err := client.Complete(context.Background(), "hi", CallOptions{MaxTokens: 10})
	require.NoError(t, err)
	_, present := gotBody["temperature"]
	assert.False(t, present, "temperature must be omitted from the request when CallOptions.Temperature is nil")
}
