package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/agent-lab/internal/llmtest"
	"github.com/mikeboe/agent-lab/pkg/tools"
)

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func newAgent(model llms.Model) *Agent {
	return New(model, tools.NewRegistry(nil, slog.Default()), slog.Default())
}

func TestRunWithoutTools(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("Hello there"))
	a := newAgent(model)

	got, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "Hello there" {
		t.Errorf("Run() = %q", got)
	}
	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.Calls))
	}
}

func TestRunDispatchesToolCall(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Turn{
			Content:   "I'll use the calculator.",
			ToolCalls: []llms.ToolCall{toolCall("call-1", "calculator", `{"operation":"multiply","x":25,"y":17}`)},
		},
		llmtest.Text("25 * 17 is 425."),
	)
	a := newAgent(model)

	result, err := a.RunWithHistory(context.Background(), "What's 25 * 17?", nil)
	if err != nil {
		t.Fatalf("RunWithHistory() error = %v", err)
	}

	if result.Response != "25 * 17 is 425." {
		t.Errorf("Response = %q", result.Response)
	}
	if result.Reasoning != "I'll use the calculator." {
		t.Errorf("Reasoning = %q", result.Reasoning)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(result.Actions))
	}
	if result.Actions[0].Tool != "calculator" || result.Actions[0].Output != "425.0" {
		t.Errorf("Action = %+v", result.Actions[0])
	}
	if len(model.Calls) != 2 {
		t.Errorf("model called %d times, want 2", len(model.Calls))
	}

	// The second model call must include the tool observation.
	second := model.Calls[1]
	foundObservation := false
	for _, msg := range second {
		if msg.Role != llms.ChatMessageTypeTool {
			continue
		}
		for _, part := range msg.Parts {
			if r, ok := part.(llms.ToolCallResponse); ok && r.Content == "425.0" {
				foundObservation = true
			}
		}
	}
	if !foundObservation {
		t.Error("final model call is missing the tool observation")
	}
}

func TestRunToolFailureBecomesObservation(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Turn{
			ToolCalls: []llms.ToolCall{toolCall("call-1", "calculator", `{"operation":"divide","x":1,"y":0}`)},
		},
		llmtest.Text("That division is undefined."),
	)
	a := newAgent(model)

	result, err := a.RunWithHistory(context.Background(), "What's 1/0?", nil)
	if err != nil {
		t.Fatalf("RunWithHistory() error = %v", err)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(result.Actions))
	}
	if !strings.HasPrefix(result.Actions[0].Output, "Error:") {
		t.Errorf("Output = %q, want error observation", result.Actions[0].Output)
	}
	// The loop continued to a final answer despite the tool failure.
	if result.Response != "That division is undefined." {
		t.Errorf("Response = %q", result.Response)
	}
}

func TestRunWithHistoryCarriesContext(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text("Nice to meet you, Alice."),
		llmtest.Text("Your name is Alice."),
	)
	a := newAgent(model)
	ctx := context.Background()

	first, err := a.RunWithHistory(ctx, "My name is Alice", nil)
	if err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	second, err := a.RunWithHistory(ctx, "What was my name again?", first.History)
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if second.Response != "Your name is Alice." {
		t.Errorf("Response = %q", second.Response)
	}

	// Turn 2's prompt must contain turn 1's user message.
	sawFirstTurn := false
	for _, msg := range model.Calls[1] {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok && strings.Contains(text.Text, "My name is Alice") {
				sawFirstTurn = true
			}
		}
	}
	if !sawFirstTurn {
		t.Error("second call does not carry the first turn's history")
	}
}

func TestRunUsesConfiguredTemperature(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Turn{
			ToolCalls: []llms.ToolCall{toolCall("call-1", "calculator", `{"operation":"add","x":1,"y":2}`)},
		},
		llmtest.Text("3"),
	)
	a := newAgent(model)
	a.Temperature = 0.6

	if _, err := a.Run(context.Background(), "What's 1 + 2?"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Both the tool-selection call and the final call carry it.
	for i, opts := range model.Opts {
		if opts.Temperature != 0.6 {
			t.Errorf("call %d temperature = %v, want 0.6", i, opts.Temperature)
		}
	}
}

func TestRunModelFailure(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(errors.New("connection refused")))
	a := newAgent(model)

	_, err := a.Run(context.Background(), "hi")
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
}
