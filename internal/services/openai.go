package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

const (
	DefaultOpenAIModel       = string(openai.ChatModelGPT4oMini)
	DefaultOpenAITemperature = 0.7
)

// OpenAIService implements LLMService on the OpenAI chat completions API.
type OpenAIService struct {
	client           openai.Client
	modelName        string
	backendModelName string
	logger           *slog.Logger
}

// NewOpenAIService creates the service. Extra request options (base URL,
// retries) are passed through to the client.
func NewOpenAIService(apiKey, modelName, backendModelName string, logger *slog.Logger, opts ...option.RequestOption) *OpenAIService {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIService{
		client:           openai.NewClient(opts...),
		modelName:        modelName,
		backendModelName: backendModelName,
		logger:           logger,
	}
}

func (o *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func convertOpenAIMessages(messages []chat.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.ChatRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.ChatRoleAgent:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (o *OpenAIService) chatCompletion(ctx context.Context, messages []chat.ChatMessage, modelName string, temperature float64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelName),
		Messages:    convertOpenAIMessages(messages),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	o.logger.Debug("OpenAI completion",
		"model", modelName,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	content, err := o.chatCompletion(ctx, messages, o.modelName, DefaultOpenAITemperature)
	if err != nil {
		return nil, err
	}
	return &chat.ChatResponse{Message: content}, nil
}

// Complete uses the backend model when one is configured, at temperature 0.
func (o *OpenAIService) Complete(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	modelToUse := o.modelName
	if o.backendModelName != "" {
		modelToUse = o.backendModelName
	}
	return o.chatCompletion(ctx, messages, modelToUse, 0)
}
