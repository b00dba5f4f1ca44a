package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LovationAdmin/finance-assistant/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	claudeModel     = "claude-3-5-sonnet-latest"
	claudeMaxTokens = 2000
)

var errEmptyClaudeResponse = errors.New("empty response from Claude")

// ClaudeLLM completes prompts with the Anthropic messages API.
type ClaudeLLM struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClaudeLLM builds the client. Extra options go to the SDK, the tests
// use them to point it at a local server.
func NewClaudeLLM(apiKey string, opts ...option.RequestOption) *ClaudeLLM {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeLLM{
		client:    anthropic.NewClient(opts...),
		model:     claudeModel,
		maxTokens: claudeMaxTokens,
	}
}

func (s *ClaudeLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(float64(temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude completion: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errEmptyClaudeResponse
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", string(msg.Model)).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("Claude completion")

	return text.String(), nil
}
