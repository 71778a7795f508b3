package services

import (
	"context"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// LLMService defines the interface for interacting with the LLM API.
type LLMService interface {
	// InitModel prepares the model on startup.
	InitModel(ctx context.Context, modelName string) error

	// Chat generates an in-character reply with the dialogue model.
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)

	// Complete runs a deterministic completion on the backend model, used for
	// classification, extraction and memory consolidation.
	Complete(ctx context.Context, messages []chat.ChatMessage) (string, error)
}
