package gateway

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"voicebot/internal/model/chat"
)

// ArkConfig carries the Ark model settings. Either APIKey or the AK/SK pair
// must be set.
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	MaxTokens   *int
	Temperature *float32
}

// Enabled reports whether the required credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// ArkCompletion adapts an eino chat model to the Completion interface. It is
// the alternative completion provider selected with AI_PROVIDER=ark.
type ArkCompletion struct {
	chatModel model.ChatModel
}

// NewArkCompletion constructs the underlying Ark chat model.
func NewArkCompletion(ctx context.Context, cfg ArkConfig) (*ArkCompletion, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}

	return &ArkCompletion{chatModel: chatModel}, nil
}

// Complete converts the turns into eino schema messages and generates once.
func (g *ArkCompletion) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", upstream(StageCompletion, err)
	}
	return resp.Content, nil
}
