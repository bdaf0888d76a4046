package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

// OpenAIResponder asks an OpenAI-compatible chat completions endpoint.
type OpenAIResponder struct {
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
	historyLimit int
}

// NewOpenAIResponder creates a responder from configuration.
func NewOpenAIResponder(cfg config.AIConfig) *OpenAIResponder {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	var temperature float32
	if cfg.Temperature != nil {
		temperature = float32(*cfg.Temperature)
	}

	return &OpenAIResponder{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.OpenAIModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  temperature,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
	}
}

// Reply requests a single completion and returns the first choice.
func (r *OpenAIResponder) Reply(ctx context.Context, history []chat.Record) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    buildOpenAIMessages(r.systemPrompt, limitHistory(history, r.historyLimit)),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildOpenAIMessages(systemPrompt string, history []chat.Record) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, record := range history {
		role := openai.ChatMessageRoleUser
		if record.FromAssistant() {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: record.Message})
	}
	return messages
}
