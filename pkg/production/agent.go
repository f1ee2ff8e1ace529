// Package production wraps a third-party agent framework (the langchaingo
// agent executor) behind the course's "production agent" surface: tool
// calling, conversation memory, execution tracking, and graceful failures.
// The hard parts (tool selection, the reasoning loop, iteration limits)
// belong to the framework, not this package.
package production

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
	lctools "github.com/tmc/langchaingo/tools"

	"github.com/mikeboe/agent-lab/pkg/tools"
)

const defaultMaxIterations = 10

// RunResult is what a single Run returns to the caller.
type RunResult struct {
	Answer   string        `json:"answer"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Err      string        `json:"error,omitempty"`
}

// ExecutionRecord tracks one run for the stats endpoint.
type ExecutionRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
}

// Stats aggregates the execution log.
type Stats struct {
	TotalExecutions int           `json:"total_executions"`
	Successful      int           `json:"successful"`
	SuccessRate     float64       `json:"success_rate"`
	AvgDuration     time.Duration `json:"avg_duration"`
}

type Agent struct {
	logger *slog.Logger
	memory *memory.ConversationBuffer

	// run executes one input through the framework. Split out so tests can
	// substitute the executor.
	run func(ctx context.Context, input string) (string, error)

	mu  sync.Mutex
	log []ExecutionRecord
}

// New builds a production agent on the given model with the module-02 tool
// set: expression calculator, mock web search, mock weather.
func New(llm llms.Model, maxIterations int, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	agentTools := []lctools.Tool{
		tools.CalculatorTool{},
		tools.WebSearchTool{},
		tools.RandomWeatherTool{},
	}

	buf := memory.NewConversationBuffer()
	conversational := agents.NewConversationalAgent(llm, agentTools)
	executor := agents.NewExecutor(
		conversational,
		agents.WithMemory(buf),
		agents.WithMaxIterations(maxIterations),
	)

	return &Agent{
		logger: logger,
		memory: buf,
		run: func(ctx context.Context, input string) (string, error) {
			return chains.Run(ctx, executor, input)
		},
	}, nil
}

// Run executes one user input through the agent framework. Framework and
// model failures are reported in the result, never panicked or propagated.
func (a *Agent) Run(ctx context.Context, input string) RunResult {
	start := time.Now()
	a.logger.Info("Running agent", "input", input)

	answer, err := a.run(ctx, input)
	duration := time.Since(start)

	record := ExecutionRecord{
		Timestamp: start,
		Input:     input,
		Duration:  duration,
	}

	if err != nil {
		a.logger.Error("Agent run failed", "error", err, "duration", duration)
		a.appendRecord(record)
		return RunResult{
			Answer:   fmt.Sprintf("I encountered an error: %v", err),
			Duration: duration,
			Success:  false,
			Err:      err.Error(),
		}
	}

	record.Output = answer
	record.Success = true
	a.appendRecord(record)

	a.logger.Info("Agent run complete", "duration", duration)
	return RunResult{
		Answer:   answer,
		Duration: duration,
		Success:  true,
	}
}

func (a *Agent) appendRecord(r ExecutionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, r)
}

// Reset clears the conversation memory and keeps the execution log.
func (a *Agent) Reset(ctx context.Context) error {
	if err := a.memory.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear memory: %w", err)
	}
	a.logger.Info("Conversation history reset")
	return nil
}

// ExecutionLog returns a copy of the run history.
func (a *Agent) ExecutionLog() []ExecutionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ExecutionRecord, len(a.log))
	copy(out, a.log)
	return out
}

// Stats aggregates the execution log so far.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{TotalExecutions: len(a.log)}
	if s.TotalExecutions == 0 {
		return s
	}

	var total time.Duration
	for _, r := range a.log {
		if r.Success {
			s.Successful++
		}
		total += r.Duration
	}
	s.SuccessRate = float64(s.Successful) / float64(s.TotalExecutions)
	s.AvgDuration = total / time.Duration(s.TotalExecutions)
	return s
}
