package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexxia-ai/pentagon/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "deepseek-chat",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "<think>weighing</think>The facts are clear."}
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenAIGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	model := NewModel("deepseek-chat", "test-key", srv.URL).WithTemperature(0.2)

	resp, err := model.Call(context.Background(), ai.Prompt("You are an analyst.", "Task: x"))
	require.NoError(t, err)

	assert.Equal(t, "The facts are clear.", resp.Content)
	assert.Equal(t, "weighing", resp.Think)
	assert.Equal(t, 15, resp.Response.Usage.TotalTokens)

	assert.Equal(t, "deepseek-chat", gotBody["model"])
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestOpenAIRateLimitIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	model := NewModel("deepseek-chat", "test-key", srv.URL).WithMaxAttempts(3)
	model.InitialBackoff = time.Millisecond

	resp, err := model.Call(context.Background(), ai.Prompt("s", "u"))
	require.NoError(t, err)
	assert.Equal(t, "The facts are clear.", resp.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"auth"}}`)
	}))
	defer srv.Close()

	model := NewModel("deepseek-chat", "bad", srv.URL).WithMaxAttempts(3)
	model.InitialBackoff = time.Millisecond

	_, err := model.Call(context.Background(), ai.Prompt("s", "u"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ai.ErrTemporary))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStandardProvidersRegistered(t *testing.T) {
	for _, name := range []string{"openai", "deepseek", "openrouter"} {
		info, ok := ai.Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, info.DefaultModel)
	}

	model, err := ai.New("deepseek", "", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", model.Provider)
	assert.Equal(t, DeepSeekBaseURL, model.BaseURL)
	assert.Equal(t, "deepseek-chat", model.ModelName)
}

func TestExtractThinkTags(t *testing.T) {
	content, think := extractThinkTags("no tags here")
	assert.Equal(t, "no tags here", content)
	assert.Empty(t, think)

	content, think = extractThinkTags("<think>unfinished")
	assert.Equal(t, "<think>unfinished", content)
	assert.Empty(t, think)
}
