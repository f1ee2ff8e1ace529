package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/agent-lab/pkg/weather"
)

// Definition binds a tool name to its model-facing JSON schema and the
// function that executes it. The set of tools is closed and enumerated at
// startup; there is no reflective lookup.
type Definition struct {
	Schema llms.Tool
	Invoke func(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry maps tool names to definitions and dispatches model tool calls.
type Registry struct {
	defs   map[string]Definition
	order  []string
	logger *slog.Logger
}

func NewRegistry(weatherClient *weather.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		defs:   make(map[string]Definition),
		logger: logger,
	}
	r.register(calculatorDefinition())
	r.register(weatherDefinition(weatherClient))
	r.register(emailDefinition(logger))
	return r
}

func (r *Registry) register(d Definition) {
	name := d.Schema.Function.Name
	r.defs[name] = d
	r.order = append(r.order, name)
}

// Descriptors returns the tool schemas in registration order, ready to be
// passed to the model via llms.WithTools.
func (r *Registry) Descriptors() []llms.Tool {
	out := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].Schema)
	}
	return out
}

// Dispatch executes a tool call and returns the observation string. Tool
// failures are folded into the observation rather than propagated so the
// calling agent can keep going.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	def, ok := r.defs[name]
	if !ok {
		r.logger.Warn("Unknown tool requested", "tool", name)
		return fmt.Sprintf("Error: unknown tool: %s", name)
	}

	observation, err := def.Invoke(ctx, args)
	if err != nil {
		r.logger.Warn("Tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return observation
}

func calculatorDefinition() Definition {
	return Definition{
		Schema: llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "calculator",
				Description: "Perform basic math operations",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"operation": map[string]any{
							"type": "string",
							"enum": []string{"add", "subtract", "multiply", "divide"},
						},
						"x": map[string]any{"type": "number"},
						"y": map[string]any{"type": "number"},
					},
					"required": []string{"operation", "x", "y"},
				},
			},
		},
		Invoke: func(_ context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Operation string  `json:"operation"`
				X         float64 `json:"x"`
				Y         float64 `json:"y"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid calculator arguments: %w", err)
			}
			v, err := Calculate(in.Operation, in.X, in.Y)
			if err != nil {
				return "", err
			}
			return FormatNumber(v), nil
		},
	}
}

func weatherDefinition(client *weather.Client) Definition {
	return Definition{
		Schema: llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "get_weather",
				Description: "Get current weather for a city",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"city": map[string]any{"type": "string"},
					},
					"required": []string{"city"},
				},
			},
		},
		Invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				City string `json:"city"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid weather arguments: %w", err)
			}
			if client == nil {
				return "", fmt.Errorf("weather client not configured")
			}
			obs, err := client.Current(ctx, in.City)
			if err != nil {
				return "", err
			}
			payload, err := json.Marshal(obs)
			if err != nil {
				return "", fmt.Errorf("failed to encode weather observation: %w", err)
			}
			return string(payload), nil
		},
	}
}

func emailDefinition(logger *slog.Logger) Definition {
	return Definition{
		Schema: llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "send_email",
				Description: "Send an email",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to":      map[string]any{"type": "string"},
						"subject": map[string]any{"type": "string"},
						"body":    map[string]any{"type": "string"},
					},
					"required": []string{"to", "subject", "body"},
				},
			},
		},
		Invoke: func(_ context.Context, args json.RawMessage) (string, error) {
			var in struct {
				To      string `json:"to"`
				Subject string `json:"subject"`
				Body    string `json:"body"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid email arguments: %w", err)
			}
			return SendEmail(logger, in.To, in.Subject, in.Body), nil
		},
	}
}
