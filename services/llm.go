package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/LovationAdmin/finance-assistant/config"
)

// ErrLLMNotConfigured is returned when the selected provider has no API key.
var ErrLLMNotConfigured = errors.New("language model not configured")

// LLM is a hosted chat model. Every prompt the backend sends goes through it.
type LLM interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

// NewLLM picks the provider named by LLM_PROVIDER.
func NewLLM(ctx context.Context, cfg *config.Config) (LLM, error) {
	switch cfg.LLMProvider {
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("%w: GROQ_API_KEY not set", ErrLLMNotConfigured)
		}
		return NewGroqLLM(cfg.GroqAPIKey, cfg.GroqModel, ""), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrLLMNotConfigured)
		}
		return NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
	case "anthropic", "claude":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrLLMNotConfigured)
		}
		return NewClaudeLLM(cfg.AnthropicAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// DisabledLLM fails every completion with Reason. It keeps the API serving
// bank and forecast routes when no provider key is set.
type DisabledLLM struct {
	Reason error
}

func (d DisabledLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	if d.Reason == nil {
		return "", ErrLLMNotConfigured
	}
	return "", d.Reason
}
