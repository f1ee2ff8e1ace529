package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mikeboe/agent-lab/internal/llmtest"
)

const (
	processResponse = "- Finding one\n- Finding two\n- Finding three"
	reportResponse  = "## Executive Summary\nQuantum computing is advancing.\n\n## Conclusion\nMore research needed."
)

func newTestPipeline(t *testing.T, model *llmtest.Model, searcher Searcher, opts ...PipelineOption) *Pipeline {
	t.Helper()
	e := NewEngine(model, searcher, DefaultConfig(), slog.Default())
	p, err := NewPipeline(e, opts...)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func TestRunCompletes(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text(planResponse),
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)
	p := newTestPipeline(t, model, MockSearcher{})

	s := p.Run(context.Background(), "quantum computing", "run-1")

	if s.Stage != StageComplete {
		t.Fatalf("Stage = %q, want complete (error: %s)", s.Stage, s.ErrorMessage)
	}
	if s.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", s.RetryCount)
	}
	if s.Report == "" {
		t.Error("Report is empty")
	}
	if len(s.KeyFindings) != 3 {
		t.Errorf("got %d findings, want 3", len(s.KeyFindings))
	}
	if got := len(s.ValidResults()); got != 3 {
		t.Errorf("valid results = %d, want 3", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestRunExhaustsRetries(t *testing.T) {
	// Only the planning call reaches the model; the retry loop is pure
	// search and validation.
	model := llmtest.NewModel(llmtest.Text(planResponse))
	p := newTestPipeline(t, model, emptySearcher{})

	s := p.Run(context.Background(), "quantum computing", "run-2")

	if s.Stage != StageError {
		t.Fatalf("Stage = %q, want error", s.Stage)
	}
	if s.ErrorMessage != "max retries exceeded" {
		t.Errorf("ErrorMessage = %q, want max retries exceeded", s.ErrorMessage)
	}
	if s.Report != "" {
		t.Errorf("Report = %q, want empty on failure", s.Report)
	}
	if s.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", s.RetryCount)
	}
	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.Calls))
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestRunRecoversAfterRetry(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text(planResponse),
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)

	// First search batch comes back empty, every later batch succeeds.
	var calls int
	searcher := SearcherFunc(func(_ context.Context, query string) (string, error) {
		calls++
		if calls <= 3 {
			return "", nil
		}
		return "snippet for " + query, nil
	})
	p := newTestPipeline(t, model, searcher)

	s := p.Run(context.Background(), "quantum computing", "run-3")

	if s.Stage != StageComplete {
		t.Fatalf("Stage = %q, want complete (error: %s)", s.Stage, s.ErrorMessage)
	}
	if s.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", s.RetryCount)
	}
	if s.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared after recovery", s.ErrorMessage)
	}
	// The retry batch replaced the empty one.
	if got := len(s.SearchResults); got != 3 {
		t.Errorf("got %d results, want 3", got)
	}
}

func TestRunNotifiesObserver(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text(planResponse),
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)
	p := newTestPipeline(t, model, MockSearcher{})

	var stages []Stage
	lastRetry := 0
	p.engine.OnStateUpdate = func(s PipelineState) {
		stages = append(stages, s.Stage)
		if s.RetryCount < lastRetry {
			t.Errorf("retry count went backwards: %d -> %d", lastRetry, s.RetryCount)
		}
		lastRetry = s.RetryCount
	}

	p.Run(context.Background(), "quantum computing", "run-4")

	want := []Stage{StageSearching, StageValidating, StageProcessing, StageGenerating, StageComplete}
	if len(stages) != len(want) {
		t.Fatalf("observed stages %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], want[i])
		}
	}
}

func TestRunModelFailureTerminatesInErrorStage(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(errors.New("connection refused")))
	p := newTestPipeline(t, model, MockSearcher{})

	s := p.Run(context.Background(), "quantum computing", "run-5")

	if s.Stage != StageError {
		t.Fatalf("Stage = %q, want error", s.Stage)
	}
	if !strings.Contains(s.ErrorMessage, "connection refused") {
		t.Errorf("ErrorMessage = %q", s.ErrorMessage)
	}
	if s.Report != "" {
		t.Errorf("Report = %q, want empty", s.Report)
	}
}

func TestResumeFromStateContinuesInterruptedRun(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text(planResponse),
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)
	p := newTestPipeline(t, model, MockSearcher{})

	// Capture the snapshot written after the search stage, then stop
	// caring about the rest of the first run.
	var snapshot *PipelineState
	p.engine.OnStateUpdate = func(s PipelineState) {
		if s.Stage == StageValidating && snapshot == nil {
			snap := s
			snapshot = &snap
		}
	}
	p.Run(context.Background(), "quantum computing", "run-7")
	if snapshot == nil {
		t.Fatal("no snapshot captured at the validating stage")
	}

	// A fresh process: new pipeline, new model scripted with only the
	// turns the remaining stages need.
	model2 := llmtest.NewModel(
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)
	p2 := newTestPipeline(t, model2, MockSearcher{})

	s := p2.ResumeFromState(context.Background(), snapshot)

	if s.Stage != StageComplete {
		t.Fatalf("Stage = %q, want complete (error: %s)", s.Stage, s.ErrorMessage)
	}
	if s.Report == "" {
		t.Error("Report is empty")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
	// Planning and searching were not repeated.
	if len(model2.Calls) != 2 {
		t.Errorf("resumed run called the model %d times, want 2", len(model2.Calls))
	}
	if s.Plan != planResponse {
		t.Errorf("Plan = %q, want carried over from the snapshot", s.Plan)
	}
}

func TestResumeFromStateTerminalSnapshots(t *testing.T) {
	p := newTestPipeline(t, llmtest.NewModel(), MockSearcher{})

	done := &PipelineState{Query: "q", Stage: StageComplete, Report: "report", MaxRetries: 2}
	if s := p.ResumeFromState(context.Background(), done); s.Stage != StageComplete || s.Report != "report" {
		t.Errorf("completed snapshot changed on resume: %+v", s)
	}

	failed := &PipelineState{Query: "q", Stage: StageError, ErrorMessage: "max retries exceeded", MaxRetries: 2, RetryCount: 2}
	s := p.ResumeFromState(context.Background(), failed)
	if s.Stage != StageError || s.ErrorMessage != "max retries exceeded" {
		t.Errorf("failed snapshot changed on resume: %+v", s)
	}
	if s.Report != "" {
		t.Errorf("Report = %q, want empty", s.Report)
	}
}

func TestResumeFromStateRespectsRetryBudget(t *testing.T) {
	// Snapshot interrupted mid-retry: one retry already spent, results
	// still empty. The resumed run gets one more loop-back, then errors.
	model := llmtest.NewModel()
	p := newTestPipeline(t, model, emptySearcher{})

	snapshot := NewPipelineState("quantum computing", 2)
	snapshot.Plan = planResponse
	snapshot.SearchQueries = []string{"a", "b", "c"}
	snapshot.Stage = StageSearching
	snapshot.RetryCount = 1
	snapshot.ErrorMessage = "insufficient search results"

	s := p.ResumeFromState(context.Background(), snapshot)

	if s.Stage != StageError {
		t.Fatalf("Stage = %q, want error", s.Stage)
	}
	if s.ErrorMessage != "max retries exceeded" {
		t.Errorf("ErrorMessage = %q", s.ErrorMessage)
	}
	if s.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", s.RetryCount)
	}
	if len(model.Calls) != 0 {
		t.Errorf("model called %d times, want 0", len(model.Calls))
	}
}

func TestRunWithCheckpoints(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text(planResponse),
		llmtest.Text(processResponse),
		llmtest.Text(reportResponse),
	)
	p := newTestPipeline(t, model, MockSearcher{}, WithMemoryCheckpoints())

	s := p.Run(context.Background(), "quantum computing", "run-6")

	if s.Stage != StageComplete {
		t.Fatalf("Stage = %q, want complete (error: %s)", s.Stage, s.ErrorMessage)
	}
}
