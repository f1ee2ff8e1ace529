// Package llmtest provides a scripted llms.Model fake for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Turn is one scripted model response: either content (with optional tool
// calls) or an error.
type Turn struct {
	Content   string
	ToolCalls []llms.ToolCall
	Err       error
}

// Model replays scripted turns in order. It records every message batch it
// receives so tests can assert on prompts.
type Model struct {
	mu    sync.Mutex
	turns []Turn
	next  int

	// Calls holds the message batches passed to GenerateContent.
	Calls [][]llms.MessageContent
	// Opts holds the resolved call options for each call, in order.
	Opts []llms.CallOptions
}

func NewModel(turns ...Turn) *Model {
	return &Model{turns: turns}
}

// Text is shorthand for a plain text turn.
func Text(content string) Turn {
	return Turn{Content: content}
}

// Fail is shorthand for an error turn.
func Fail(err error) Turn {
	return Turn{Err: err}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, messages)

	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.Opts = append(m.Opts, opts)

	if m.next >= len(m.turns) {
		return nil, fmt.Errorf("fake model: no scripted turn for call %d", m.next+1)
	}
	turn := m.turns[m.next]
	m.next++

	if turn.Err != nil {
		return nil, turn.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:   turn.Content,
				ToolCalls: turn.ToolCalls,
			},
		},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}
