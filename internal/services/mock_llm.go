package services

import (
	"context"
	"strings"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	ChatFunc      func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
	CompleteFunc  func(ctx context.Context, messages []chat.ChatMessage) (string, error)

	// Replies maps a system prompt prefix to the Complete reply for it.
	// Checked before CompleteFunc.
	Replies map[string]string

	// Track calls for testing
	InitModelCalls []string
	ChatCalls      []MessagesCall
	CompleteCalls  []MessagesCall

	mu sync.Mutex // protects all fields above
}

type MessagesCall struct {
	Messages []chat.ChatMessage
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		Replies: make(map[string]string),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Chat mocks dialogue generation
func (m *MockLLMAPI) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, MessagesCall{Messages: messages})
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return &chat.ChatResponse{Message: "Mock response"}, nil
}

// Complete mocks backend completions
func (m *MockLLMAPI) Complete(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, MessagesCall{Messages: messages})
	fn := m.CompleteFunc
	if len(messages) > 0 && messages[0].Role == chat.ChatRoleSystem {
		for prefix, reply := range m.Replies {
			if strings.HasPrefix(messages[0].Content, prefix) {
				m.mu.Unlock()
				return reply, nil
			}
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return "{}", nil
}

// SetReply registers the Complete reply for requests whose system prompt
// starts with prefix.
func (m *MockLLMAPI) SetReply(prefix, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies[prefix] = reply
}

// SetCompleteError makes every unmatched Complete call fail.
func (m *MockLLMAPI) SetCompleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		return "", err
	}
}

// SetChatError makes every Chat call fail.
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = nil
	m.ChatCalls = nil
	m.CompleteCalls = nil
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []MessagesCall, []MessagesCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	chatCalls := make([]MessagesCall, len(m.ChatCalls))
	copy(chatCalls, m.ChatCalls)

	completeCalls := make([]MessagesCall, len(m.CompleteCalls))
	copy(completeCalls, m.CompleteCalls)

	return initCalls, chatCalls, completeCalls
}
