package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

func newOpenAITestServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIService_Chat(t *testing.T) {
	var seen map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, "Halt.", &seen)
	service := NewOpenAIService("test-key", "chat-model", "backend-model", testLogger(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "You are a guard."},
		{Role: chat.ChatRoleUser, Content: "Hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Halt.", resp.Message)
	assert.Equal(t, "chat-model", seen["model"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIService_CompleteUsesBackendModel(t *testing.T) {
	var seen map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, `{"emotion":"calm"}`, &seen)
	service := NewOpenAIService("test-key", "chat-model", "backend-model", testLogger(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	out, err := service.Complete(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"emotion":"calm"}`, out)
	assert.Equal(t, "backend-model", seen["model"])
	assert.EqualValues(t, 0, seen["temperature"])
}

func TestOpenAIService_Error(t *testing.T) {
	srv := newOpenAITestServer(t, http.StatusBadRequest, "", nil)
	service := NewOpenAIService("test-key", "", "", testLogger(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	_, err := service.Complete(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}})
	assert.Error(t, err)
	assert.Equal(t, DefaultOpenAIModel, service.modelName)
}
