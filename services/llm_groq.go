package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqLLM talks to Groq through its OpenAI-compatible endpoint.
type GroqLLM struct {
	client *openai.Client
	model  string
}

// NewGroqLLM builds the client. An empty baseURL means the public Groq API.
func NewGroqLLM(apiKey, model, baseURL string) *GroqLLM {
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &GroqLLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *GroqLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
