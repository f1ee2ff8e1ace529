package research

import "fmt"

// Stage names the pipeline's position. Routing decisions read this field
// and nothing else (plus the retry counters).
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageSearching  Stage = "searching"
	StageValidating Stage = "validating"
	StageProcessing Stage = "processing"
	StageGenerating Stage = "generating"
	StageError      Stage = "error"
	StageComplete   Stage = "complete"
)

// Message is one role-tagged conversation entry. The conversation is
// append-only within a run.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchResult is one raw lookup outcome. Failed lookups carry Err and an
// empty Result; they count against validation but never abort the search
// stage.
type SearchResult struct {
	Query  string `json:"query"`
	Result string `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

func (r SearchResult) OK() bool {
	return r.Err == "" && r.Result != ""
}

// PipelineState is the single record threaded through every stage. Each
// run owns exactly one instance; nothing is shared across runs.
type PipelineState struct {
	Conversation  []Message      `json:"conversation"`
	Query         string         `json:"query"`
	Plan          string         `json:"plan"`
	SearchQueries []string       `json:"search_queries"`
	SearchResults []SearchResult `json:"search_results"`
	KeyFindings   []string       `json:"key_findings"`
	Report        string         `json:"report"`
	Stage         Stage          `json:"stage"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// NewPipelineState creates the initial state for a research query.
func NewPipelineState(query string, maxRetries int) *PipelineState {
	return &PipelineState{
		Query:         query,
		Conversation:  []Message{},
		SearchQueries: []string{},
		SearchResults: []SearchResult{},
		KeyFindings:   []string{},
		Stage:         StagePlanning,
		MaxRetries:    maxRetries,
	}
}

// Terminal reports whether the run has reached a terminal stage.
func (s *PipelineState) Terminal() bool {
	return s.Stage == StageComplete || s.Stage == StageError
}

// ValidResults returns the search results that actually carry content.
func (s *PipelineState) ValidResults() []SearchResult {
	out := make([]SearchResult, 0, len(s.SearchResults))
	for _, r := range s.SearchResults {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the state invariants. It is used by tests and by the job
// server before persisting a snapshot.
func (s *PipelineState) Validate() error {
	if s.RetryCount > s.MaxRetries {
		return fmt.Errorf("retry_count %d exceeds max_retries %d", s.RetryCount, s.MaxRetries)
	}
	if (s.Stage == StageComplete) != (s.Report != "") {
		return fmt.Errorf("report must be non-empty exactly when stage is complete (stage=%s)", s.Stage)
	}
	if s.Stage == StageError && s.ErrorMessage == "" {
		return fmt.Errorf("error stage requires an error message")
	}
	return nil
}

// Update is a partial-field update produced by a stage function. Zero
// fields are left untouched; slices append. The graph engine is handed the
// merge, not the stages themselves.
type Update struct {
	Stage         Stage
	Plan          string
	SearchQueries []string
	SearchResults []SearchResult
	ResetResults  bool // drop accumulated results before appending (retry path)
	KeyFindings   []string
	Report        string
	RetryDelta    int
	ErrorMessage  string
	ClearError    bool
	Messages      []Message
}

// Apply merges the update into the state.
func (u Update) Apply(s *PipelineState) {
	if u.Stage != "" {
		s.Stage = u.Stage
	}
	if u.Plan != "" {
		s.Plan = u.Plan
	}
	if len(u.SearchQueries) > 0 {
		s.SearchQueries = u.SearchQueries
	}
	if u.ResetResults {
		s.SearchResults = s.SearchResults[:0]
	}
	if len(u.SearchResults) > 0 {
		s.SearchResults = append(s.SearchResults, u.SearchResults...)
	}
	if len(u.KeyFindings) > 0 {
		s.KeyFindings = u.KeyFindings
	}
	if u.Report != "" {
		s.Report = u.Report
	}
	s.RetryCount += u.RetryDelta
	if u.ClearError {
		s.ErrorMessage = ""
	} else if u.ErrorMessage != "" {
		s.ErrorMessage = u.ErrorMessage
	}
	s.Conversation = append(s.Conversation, u.Messages...)
}
