package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

// ErrDisabled is returned by NewResponder when no provider is configured.
var ErrDisabled = errors.New("no ai provider configured")

// Responder produces the assistant's next turn for a conversation.
type Responder interface {
	Reply(ctx context.Context, history []chat.Record) (string, error)
}

// NewResponder picks the configured provider.
func NewResponder(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (Responder, error) {
	switch cfg.ResolvedProvider() {
	case config.ProviderOpenAI:
		logger.Info("ai responder ready", zap.String("provider", config.ProviderOpenAI), zap.String("model", cfg.OpenAIModel))
		return NewOpenAIResponder(cfg), nil
	case config.ProviderArk:
		responder, err := NewArkResponder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("ai responder ready", zap.String("provider", config.ProviderArk), zap.String("model", cfg.ArkModel))
		return responder, nil
	default:
		return nil, ErrDisabled
	}
}

// ChainResponder runs the conversation through an eino chain ending in a chat model.
type ChainResponder struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	historyLimit int
}

// NewArkResponder builds a ChainResponder around an Ark chat model.
func NewArkResponder(ctx context.Context, cfg config.AIConfig) (*ChainResponder, error) {
	chatModel, err := cfg.NewArkChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChainResponder(ctx, chatModel, cfg)
}

// NewChainResponder compiles a template -> model chain around chatModel.
func NewChainResponder(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*ChainResponder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainResponder{
		chain:        runnable,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// Reply invokes the chain with the mapped history.
func (r *ChainResponder) Reply(ctx context.Context, history []chat.Record) (string, error) {
	input := map[string]any{
		"history": buildSchemaMessages(r.systemPrompt, limitHistory(history, r.historyLimit)),
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

func buildSchemaMessages(systemPrompt string, history []chat.Record) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	for _, record := range history {
		if record.FromAssistant() {
			messages = append(messages, schema.AssistantMessage(record.Message, nil))
		} else {
			messages = append(messages, schema.UserMessage(record.Message))
		}
	}
	return messages
}

// limitHistory keeps the last limit records; limit <= 0 keeps all of them.
func limitHistory(history []chat.Record, limit int) []chat.Record {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
