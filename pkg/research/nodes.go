package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	appconfig "github.com/mikeboe/agent-lab/pkg/config"
)

// Config bounds the pipeline's behavior. MaxRetries caps validation
// loop-backs; SearchLimit caps lookups per search stage; MinValidResults
// is the sufficiency threshold.
type Config struct {
	MaxRetries      int
	SearchLimit     int
	MinValidResults int
	Temperature     float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      2,
		SearchLimit:     3,
		MinValidResults: 2,
		Temperature:     0.0,
	}
}

// ConfigFromEnv derives the pipeline config from the shared app config.
func ConfigFromEnv(cfg *appconfig.Config) Config {
	return Config{
		MaxRetries:      cfg.MaxRetries,
		SearchLimit:     cfg.SearchLimit,
		MinValidResults: cfg.MinValidResults,
		Temperature:     cfg.LLMTemperature,
	}
}

// Engine holds the collaborators the stage functions need. The stages
// themselves are pure transforms over PipelineState; traversal belongs to
// the graph engine, not to this type.
type Engine struct {
	LLM    llms.Model
	Search Searcher
	Cfg    Config
	Logger *slog.Logger

	// OnStateUpdate, when set, observes the state after every stage.
	OnStateUpdate func(state PipelineState)
}

func NewEngine(llm llms.Model, searcher Searcher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if searcher == nil {
		searcher = MockSearcher{}
	}
	return &Engine{
		LLM:    llm,
		Search: searcher,
		Cfg:    cfg,
		Logger: logger,
	}
}

func (e *Engine) generate(ctx context.Context, system, human string) (string, error) {
	resp, err := e.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}, llms.WithTemperature(e.Cfg.Temperature))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Plan creates the research plan and search queries from the query. It
// fails only if the model call itself fails.
func (e *Engine) Plan(ctx context.Context, s *PipelineState) (Update, error) {
	e.Logger.Info("Planning research", "query", s.Query)

	prompt := fmt.Sprintf(`Create a research plan for: %s

Output:
1. List of 3-5 specific search queries
2. Key aspects to investigate

Be specific and focused.`, s.Query)

	content, err := e.generate(ctx, "You are a research planning assistant.", prompt)
	if err != nil {
		return Update{}, fmt.Errorf("planning failed: %w", err)
	}

	queries := extractQueries(content, 5)
	e.Logger.Info("Generated search queries", "count", len(queries))

	return Update{
		Plan:          content,
		SearchQueries: queries,
		Stage:         StageSearching,
		Messages:      []Message{{Role: "assistant", Content: content}},
	}, nil
}

// ExecuteSearch runs one lookup per query, in order, up to the search
// limit. Lookup failures are recorded per entry and never abort the stage.
func (e *Engine) ExecuteSearch(ctx context.Context, s *PipelineState) (Update, error) {
	queries := s.SearchQueries
	if len(queries) > e.Cfg.SearchLimit {
		queries = queries[:e.Cfg.SearchLimit]
	}
	e.Logger.Info("Executing searches", "count", len(queries))

	results := make([]SearchResult, 0, len(queries))
	for _, q := range queries {
		result, err := e.Search.Search(ctx, q)
		if err != nil {
			e.Logger.Warn("Search failed", "query", q, "error", err)
			results = append(results, SearchResult{Query: q, Err: err.Error()})
			continue
		}
		results = append(results, SearchResult{Query: q, Result: result})
	}

	valid := 0
	for _, r := range results {
		if r.OK() {
			valid++
		}
	}
	e.Logger.Info("Completed searches", "successful", valid, "total", len(results))

	return Update{
		SearchResults: results,
		ResetResults:  true, // each search stage produces a fresh batch
		Stage:         StageValidating,
	}, nil
}

// Validate checks result sufficiency and makes the retry decision: loop
// back to searching while retries remain, otherwise give up with an error.
func (e *Engine) Validate(_ context.Context, s *PipelineState) (Update, error) {
	valid := len(s.ValidResults())
	e.Logger.Info("Validating results", "valid", valid, "total", len(s.SearchResults),
		"required", e.Cfg.MinValidResults)

	if valid >= e.Cfg.MinValidResults {
		e.Logger.Info("Validation passed")
		return Update{Stage: StageProcessing, ClearError: true}, nil
	}

	if s.RetryCount < s.MaxRetries {
		e.Logger.Warn("Validation failed, retrying search",
			"retry", s.RetryCount+1, "max_retries", s.MaxRetries)
		return Update{
			Stage:        StageSearching,
			RetryDelta:   1,
			ErrorMessage: "insufficient search results",
		}, nil
	}

	e.Logger.Error("Validation failed, retries exhausted", "retry_count", s.RetryCount)
	return Update{
		Stage:        StageError,
		ErrorMessage: "max retries exceeded",
	}, nil
}

// Process extracts key findings from the valid search results.
func (e *Engine) Process(ctx context.Context, s *PipelineState) (Update, error) {
	valid := s.ValidResults()
	e.Logger.Info("Processing search results", "valid", len(valid))

	var resultsText strings.Builder
	for _, r := range valid {
		fmt.Fprintf(&resultsText, "Query: %s\nResults: %s\n\n", r.Query, r.Result)
	}

	prompt := fmt.Sprintf(`Based on these search results, identify 5 key findings related to: %s

Search Results:
%s
Extract concise, factual key findings (one sentence each).
Format each finding as a bullet point starting with a dash (-).`, s.Query, resultsText.String())

	content, err := e.generate(ctx, "You are a research analyst.", prompt)
	if err != nil {
		return Update{}, fmt.Errorf("processing failed: %w", err)
	}

	findings := extractBullets(content, 5)
	e.Logger.Info("Extracted key findings", "count", len(findings))

	return Update{
		KeyFindings: findings,
		Stage:       StageGenerating,
		Messages:    []Message{{Role: "assistant", Content: content}},
	}, nil
}

// Generate synthesizes the final report from the plan and key findings.
func (e *Engine) Generate(ctx context.Context, s *PipelineState) (Update, error) {
	e.Logger.Info("Generating final report")

	var findings strings.Builder
	for _, f := range s.KeyFindings {
		fmt.Fprintf(&findings, "- %s\n", f)
	}

	prompt := fmt.Sprintf(`Create a concise research report on: %s

Research Plan:
%s

Key Findings:
%s
Structure:
1. Executive Summary (2-3 sentences)
2. Key Findings (bullet points)
3. Conclusion (1-2 sentences)

Keep it professional and factual.`, s.Query, s.Plan, findings.String())

	content, err := e.generate(ctx, "You are a research report writer.", prompt)
	if err != nil {
		return Update{}, fmt.Errorf("report generation failed: %w", err)
	}
	if content == "" {
		return Update{}, fmt.Errorf("report generation returned empty content")
	}

	e.Logger.Info("Report generated", "length", len(content))

	return Update{
		Report:   content,
		Stage:    StageComplete,
		Messages: []Message{{Role: "assistant", Content: content}},
	}, nil
}

// HandleError is the terminal sink for failed runs. The report stays
// empty; the error message is what the caller sees.
func (e *Engine) HandleError(_ context.Context, s *PipelineState) (Update, error) {
	e.Logger.Error("Research failed", "error", s.ErrorMessage,
		"retry_count", s.RetryCount, "max_retries", s.MaxRetries)

	msg := s.ErrorMessage
	if msg == "" {
		msg = "unknown error"
	}
	return Update{
		Stage:        StageError,
		ErrorMessage: msg,
	}, nil
}

// extractQueries pulls non-empty, non-heading lines out of a planning
// response, up to limit.
func extractQueries(content string, limit int) []string {
	var queries []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
		if len(queries) == limit {
			break
		}
	}
	return queries
}

// extractBullets pulls bullet-formatted lines out of a model response, up
// to limit.
func extractBullets(content string, limit int) []string {
	var findings []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") && !strings.HasPrefix(line, "•") {
			continue
		}
		finding := strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if finding == "" {
			continue
		}
		findings = append(findings, finding)
		if len(findings) == limit {
			break
		}
	}
	return findings
}
