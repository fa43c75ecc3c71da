package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/juanmh10/RAG-AWS/internal/config"
)

// ErrCompletionUnavailable marks a failed call to the chat model backend.
var ErrCompletionUnavailable = errors.New("ai: completion backend unavailable")

// Completer turns a prompt exchange into a model answer.
type Completer interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

type chatCompleter struct {
	chatModel model.BaseChatModel
}

// NewCompleter builds the chat model for the configured provider.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)

	switch cfg.Provider {
	case "openai":
		maxTokens := cfg.MaxOutputTokens
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.ChatModel,
			APIKey:    cfg.APIKey,
			MaxTokens: &maxTokens,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.ChatModel,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.ChatModel,
			BaseURL:   baseURLPtr,
			MaxTokens: cfg.MaxOutputTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}
	return &chatCompleter{chatModel: chatModel}, nil
}

func (c *chatCompleter) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	out, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}
	return out.Content, nil
}
