package chat

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

const defaultSystemPrompt = "You are a helpful assistant."

// Bot is the baseline chatbot: one system prompt, one user turn, one model
// call. No tools, no memory.
type Bot struct {
	LLM          llms.Model
	SystemPrompt string
	Temperature  float64
}

func NewBot(llm llms.Model) *Bot {
	return &Bot{
		LLM:          llm,
		SystemPrompt: defaultSystemPrompt,
	}
}

// Reply sends the user message to the model and returns the text response.
func (b *Bot) Reply(ctx context.Context, userMessage string) (string, error) {
	resp, err := b.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, b.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userMessage),
	}, llms.WithTemperature(b.Temperature))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
