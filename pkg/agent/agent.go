// Package agent implements the course's hand-rolled tool-calling agent:
// one model call with tool descriptors, dispatch of any requested tool
// calls through the closed registry, then one final model call to phrase
// the answer. The memory variant threads a caller-owned conversation
// history through the same loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/agent-lab/pkg/tools"
)

const defaultSystemPrompt = "You are a helpful assistant with access to tools. Use them when needed."

const memorySystemPrompt = `You are an intelligent assistant that can:
1. Use tools when needed
2. Explain your reasoning
3. Ask for clarification if needed
4. Remember previous context

Before using a tool, briefly explain why you're using it.
If you cannot complete a task, explain what's missing.`

// Action records a single executed tool call.
type Action struct {
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input"`
	Output string          `json:"output"`
}

// Result is the memory agent's answer together with its working.
// History carries the full conversation, including tool exchanges, and is
// meant to be passed back in on the next turn.
type Result struct {
	Response  string
	Reasoning string
	Actions   []Action
	History   []llms.MessageContent
}

type Agent struct {
	LLM          llms.Model
	Tools        *tools.Registry
	Logger       *slog.Logger
	SystemPrompt string
	Temperature  float64
}

func New(llm llms.Model, registry *tools.Registry, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		LLM:          llm,
		Tools:        registry,
		Logger:       logger,
		SystemPrompt: defaultSystemPrompt,
	}
}

// Run answers a single message, using tools when the model asks for them.
func (a *Agent) Run(ctx context.Context, userMessage string) (string, error) {
	result, err := a.run(ctx, userMessage, nil, a.SystemPrompt)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// RunWithHistory is the memory-augmented variant: the caller owns the
// conversation history and passes the returned History back on the next
// turn.
func (a *Agent) RunWithHistory(ctx context.Context, userMessage string, history []llms.MessageContent) (*Result, error) {
	return a.run(ctx, userMessage, history, memorySystemPrompt)
}

func (a *Agent) run(ctx context.Context, userMessage string, history []llms.MessageContent, systemPrompt string) (*Result, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, userMessage))

	resp, err := a.LLM.GenerateContent(ctx, messages,
		llms.WithTools(a.Tools.Descriptors()), llms.WithTemperature(a.Temperature))
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	choice := resp.Choices[0]

	if len(choice.ToolCalls) == 0 {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, choice.Content))
		return &Result{
			Response:  choice.Content,
			Reasoning: "No tools needed",
			History:   messages[1:], // drop the system prompt
		}, nil
	}

	reasoning := choice.Content
	if reasoning == "" {
		reasoning = "Using tools to help..."
	}

	// Echo the assistant turn (including its tool call requests) back into
	// the conversation before appending observations.
	assistantParts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if choice.Content != "" {
		assistantParts = append(assistantParts, llms.TextPart(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		assistantParts = append(assistantParts, tc)
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: assistantParts,
	})

	var actions []Action
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		name := tc.FunctionCall.Name
		args := json.RawMessage(tc.FunctionCall.Arguments)

		a.Logger.Info("[AGENT REASONING]", "reasoning", reasoning)
		a.Logger.Info("[AGENT ACTION]", "tool", name, "args", string(args))

		observation := a.Tools.Dispatch(ctx, name, args)
		actions = append(actions, Action{Tool: name, Input: args, Output: observation})

		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       name,
					Content:    observation,
				},
			},
		})
	}

	final, err := a.LLM.GenerateContent(ctx, messages, llms.WithTemperature(a.Temperature))
	if err != nil {
		return nil, fmt.Errorf("final model call failed: %w", err)
	}
	if len(final.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	answer := final.Choices[0].Content
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, answer))

	return &Result{
		Response:  answer,
		Reasoning: reasoning,
		Actions:   actions,
		History:   messages[1:],
	}, nil
}
