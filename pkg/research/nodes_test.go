package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mikeboe/agent-lab/internal/llmtest"
)

const planResponse = "quantum computing fundamentals\nquantum hardware progress 2025\nquantum algorithms overview"

func testEngine(model *llmtest.Model, searcher Searcher) *Engine {
	return NewEngine(model, searcher, DefaultConfig(), slog.Default())
}

// emptySearcher simulates a search backend that never finds anything.
type emptySearcher struct{}

func (emptySearcher) Search(context.Context, string) (string, error) {
	return "", nil
}

func TestPlan(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(planResponse))
	e := testEngine(model, nil)
	s := NewPipelineState("quantum computing", 2)

	u, err := e.Plan(context.Background(), s)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	u.Apply(s)

	if s.Plan != planResponse {
		t.Errorf("Plan = %q", s.Plan)
	}
	if len(s.SearchQueries) != 3 {
		t.Errorf("got %d search queries, want 3", len(s.SearchQueries))
	}
	if s.Stage != StageSearching {
		t.Errorf("Stage = %q, want searching", s.Stage)
	}
	if len(s.Conversation) != 1 || s.Conversation[0].Role != "assistant" {
		t.Errorf("Conversation = %+v", s.Conversation)
	}
}

func TestPlanUsesConfiguredTemperature(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(planResponse))
	cfg := DefaultConfig()
	cfg.Temperature = 0.7
	e := NewEngine(model, nil, cfg, slog.Default())

	if _, err := e.Plan(context.Background(), NewPipelineState("q", 2)); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := model.Opts[0].Temperature; got != 0.7 {
		t.Errorf("model temperature = %v, want 0.7", got)
	}
}

func TestPlanModelFailure(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(errors.New("connection refused")))
	e := testEngine(model, nil)

	_, err := e.Plan(context.Background(), NewPipelineState("q", 2))
	if err == nil {
		t.Fatal("Plan() error = nil, want failure")
	}
}

func TestExecuteSearchRecordsPerQueryFailures(t *testing.T) {
	calls := 0
	searcher := SearcherFunc(func(_ context.Context, query string) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("lookup timed out")
		}
		return "snippet for " + query, nil
	})
	e := testEngine(llmtest.NewModel(), searcher)

	s := NewPipelineState("q", 2)
	s.SearchQueries = []string{"a", "b", "c", "d"}

	u, err := e.ExecuteSearch(context.Background(), s)
	if err != nil {
		t.Fatalf("ExecuteSearch() error = %v", err)
	}
	u.Apply(s)

	// Capped at the search limit.
	if len(s.SearchResults) != 3 {
		t.Fatalf("got %d results, want 3", len(s.SearchResults))
	}
	if s.SearchResults[1].Err == "" {
		t.Error("second result should record the lookup failure")
	}
	if got := len(s.ValidResults()); got != 2 {
		t.Errorf("valid results = %d, want 2", got)
	}
	if s.Stage != StageValidating {
		t.Errorf("Stage = %q, want validating", s.Stage)
	}
}

func TestExecuteSearchReplacesPreviousBatch(t *testing.T) {
	e := testEngine(llmtest.NewModel(), MockSearcher{})
	s := NewPipelineState("q", 2)
	s.SearchQueries = []string{"a", "b"}
	s.SearchResults = []SearchResult{{Query: "stale", Err: "old failure"}}

	u, err := e.ExecuteSearch(context.Background(), s)
	if err != nil {
		t.Fatalf("ExecuteSearch() error = %v", err)
	}
	u.Apply(s)

	if len(s.SearchResults) != 2 {
		t.Fatalf("got %d results, want 2 (stale batch dropped)", len(s.SearchResults))
	}
	for _, r := range s.SearchResults {
		if r.Query == "stale" {
			t.Error("stale result survived the retry batch")
		}
	}
}

func TestValidateSufficient(t *testing.T) {
	e := testEngine(llmtest.NewModel(), nil)
	s := NewPipelineState("q", 2)
	s.ErrorMessage = "insufficient search results" // from a previous loop
	s.SearchResults = []SearchResult{
		{Query: "a", Result: "x"},
		{Query: "b", Result: "y"},
	}

	u, err := e.Validate(context.Background(), s)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	u.Apply(s)

	if s.Stage != StageProcessing {
		t.Errorf("Stage = %q, want processing", s.Stage)
	}
	if s.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared on successful retry", s.ErrorMessage)
	}
	if s.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", s.RetryCount)
	}
}

func TestValidateRetryThenExhaustion(t *testing.T) {
	e := testEngine(llmtest.NewModel(), nil)
	s := NewPipelineState("q", 2)
	ctx := context.Background()

	// Insufficient results every time.
	for i := 1; i <= 2; i++ {
		u, err := e.Validate(ctx, s)
		if err != nil {
			t.Fatalf("Validate() #%d error = %v", i, err)
		}
		u.Apply(s)
		if s.Stage != StageSearching {
			t.Fatalf("attempt %d: Stage = %q, want searching", i, s.Stage)
		}
		if s.RetryCount != i {
			t.Fatalf("attempt %d: RetryCount = %d, want %d", i, s.RetryCount, i)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("attempt %d: invariant violated: %v", i, err)
		}
	}

	// The (max_retries+1)-th insufficiency routes to error, never back to
	// search, and the counter stays within its ceiling.
	u, err := e.Validate(ctx, s)
	if err != nil {
		t.Fatalf("final Validate() error = %v", err)
	}
	u.Apply(s)

	if s.Stage != StageError {
		t.Errorf("Stage = %q, want error", s.Stage)
	}
	if s.ErrorMessage != "max retries exceeded" {
		t.Errorf("ErrorMessage = %q, want max retries exceeded", s.ErrorMessage)
	}
	if s.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", s.RetryCount)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestProcessExtractsFindings(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(
		"Here are the findings:\n- First fact\n- Second fact\n* Third fact\nnot a bullet\n- Fourth\n- Fifth\n- Sixth"))
	e := testEngine(model, nil)

	s := NewPipelineState("q", 2)
	s.SearchResults = []SearchResult{{Query: "a", Result: "x"}}

	u, err := e.Process(context.Background(), s)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	u.Apply(s)

	if len(s.KeyFindings) != 5 {
		t.Fatalf("got %d findings, want 5 (capped)", len(s.KeyFindings))
	}
	if s.KeyFindings[0] != "First fact" {
		t.Errorf("first finding = %q", s.KeyFindings[0])
	}
	if s.Stage != StageGenerating {
		t.Errorf("Stage = %q, want generating", s.Stage)
	}
}

func TestGenerate(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("## Executive Summary\nAll good."))
	e := testEngine(model, nil)

	s := NewPipelineState("q", 2)
	s.Plan = "the plan"
	s.KeyFindings = []string{"one", "two"}

	u, err := e.Generate(context.Background(), s)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	u.Apply(s)

	if s.Report == "" {
		t.Error("Report is empty")
	}
	if s.Stage != StageComplete {
		t.Errorf("Stage = %q, want complete", s.Stage)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}

	// The prompt must carry plan and findings.
	prompt := fmt.Sprintf("%v", model.Calls[0])
	if !strings.Contains(prompt, "the plan") || !strings.Contains(prompt, "- one") {
		t.Error("generation prompt is missing plan or findings")
	}
}

func TestHandleErrorKeepsReportEmpty(t *testing.T) {
	e := testEngine(llmtest.NewModel(), nil)

	s := NewPipelineState("q", 2)
	s.Stage = StageError
	s.ErrorMessage = "max retries exceeded"

	u, err := e.HandleError(context.Background(), s)
	if err != nil {
		t.Fatalf("HandleError() error = %v", err)
	}
	u.Apply(s)

	if s.Report != "" {
		t.Errorf("Report = %q, want empty", s.Report)
	}
	if s.Stage != StageError || s.ErrorMessage != "max retries exceeded" {
		t.Errorf("state = %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestRouters(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageSearching, "search"},
		{StageProcessing, "process"},
		{StageError, "handle_error"},
	}
	for _, tt := range tests {
		s := &PipelineState{Stage: tt.stage}
		if got := RouteAfterValidation(s); got != tt.want {
			t.Errorf("RouteAfterValidation(%s) = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestExtractQueries(t *testing.T) {
	content := "# Plan\nfirst query\n\nsecond query\nthird\nfourth\nfifth\nsixth"
	got := extractQueries(content, 5)
	if len(got) != 5 {
		t.Fatalf("got %d queries, want 5", len(got))
	}
	if got[0] != "first query" {
		t.Errorf("first query = %q", got[0])
	}
}
