package research

import (
	"context"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"
)

// Node names as wired into the graph.
const (
	nodePlan        = "plan"
	nodeSearch      = "search"
	nodeValidate    = "validate"
	nodeProcess     = "process"
	nodeGenerate    = "generate"
	nodeHandleError = "handle_error"
)

// RouteAfterValidation selects the node that follows validation: loop back
// to search, continue to processing, or fail over to the error handler.
// It is pure over the state the validate stage just wrote.
func RouteAfterValidation(s *PipelineState) string {
	switch s.Stage {
	case StageSearching:
		return nodeSearch
	case StageError:
		return nodeHandleError
	default:
		return nodeProcess
	}
}

// RouteAfterError selects the failure-side exit. The error handler is a
// terminal sink, so the only destination is the graph's end.
func RouteAfterError(s *PipelineState) string {
	return graph.END
}

// Pipeline is the compiled research workflow. Construction declares the
// node set and edge set as data; traversal, per-node snapshotting and
// resumption belong to the graph engine.
type Pipeline struct {
	engine   *Engine
	runnable *graph.StateRunnable[*PipelineState]
}

// PipelineOption customizes graph compilation.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	checkpoints *graph.CheckpointConfig
}

// WithCheckpointStore enables per-node state snapshots in the given store,
// keyed by execution ID.
func WithCheckpointStore(store graph.CheckpointStore) PipelineOption {
	return func(o *pipelineOptions) {
		o.checkpoints = &graph.CheckpointConfig{Store: store}
	}
}

// WithMemoryCheckpoints enables snapshots in an in-memory store, for
// development and tests.
func WithMemoryCheckpoints() PipelineOption {
	return WithCheckpointStore(graph.NewMemoryCheckpointStore())
}

// NewPipeline wires the six stage functions and two routers into the
// engine's state graph and compiles it.
func NewPipeline(e *Engine, opts ...PipelineOption) (*Pipeline, error) {
	var options pipelineOptions
	for _, opt := range opts {
		opt(&options)
	}

	p := &Pipeline{engine: e}

	workflow := graph.NewStateGraph[*PipelineState]()

	workflow.AddNode(nodePlan, "Create research plan and search queries", p.node(e.Plan))
	workflow.AddNode(nodeSearch, "Execute one lookup per search query", p.node(e.ExecuteSearch))
	workflow.AddNode(nodeValidate, "Check result sufficiency and retry budget", p.node(e.Validate))
	workflow.AddNode(nodeProcess, "Extract key findings from results", p.node(e.Process))
	workflow.AddNode(nodeGenerate, "Synthesize the final report", p.node(e.Generate))
	workflow.AddNode(nodeHandleError, "Terminal sink for failed runs", p.node(e.HandleError))

	workflow.SetEntryPoint(nodePlan)

	workflow.AddEdge(nodePlan, nodeSearch)
	workflow.AddEdge(nodeSearch, nodeValidate)
	workflow.AddEdge(nodeProcess, nodeGenerate)
	workflow.AddEdge(nodeGenerate, graph.END)

	workflow.AddConditionalEdge(nodeValidate, func(_ context.Context, s *PipelineState) string {
		return RouteAfterValidation(s)
	})
	workflow.AddConditionalEdge(nodeHandleError, func(_ context.Context, s *PipelineState) string {
		return RouteAfterError(s)
	})

	if options.checkpoints != nil {
		workflow.WithCheckpointing(*options.checkpoints)
	}

	runnable, err := workflow.Compile()
	if err != nil {
		return nil, err
	}
	p.runnable = runnable
	return p, nil
}

// node adapts a stage function to the engine's node contract: run the
// transform, merge its partial update into the state, notify observers.
func (p *Pipeline) node(fn func(context.Context, *PipelineState) (Update, error)) func(context.Context, *PipelineState) (*PipelineState, error) {
	return func(ctx context.Context, s *PipelineState) (*PipelineState, error) {
		update, err := fn(ctx, s)
		if err != nil {
			return s, err
		}
		update.Apply(s)
		if p.engine.OnStateUpdate != nil {
			p.engine.OnStateUpdate(*s)
		}
		return s, nil
	}
}

// Run executes a fresh pipeline for the query under the given run ID.
// Collaborator failures inside a stage terminate the run in the error
// stage with an empty report; Run itself does not propagate them.
func (p *Pipeline) Run(ctx context.Context, query, runID string) *PipelineState {
	state := NewPipelineState(query, p.engine.Cfg.MaxRetries)

	final, err := p.runnable.Invoke(ctx, state, graph.WithExecutionID(runID))
	if err != nil {
		p.engine.Logger.Error("Pipeline aborted", "run_id", runID, "error", err)
		state.Stage = StageError
		state.ErrorMessage = err.Error()
		state.Report = ""
		if p.engine.OnStateUpdate != nil {
			p.engine.OnStateUpdate(*state)
		}
		return state
	}
	return final
}

// Resume continues a run from a checkpoint in the graph engine's store.
// It only works against a store shared with the original execution, so it
// suits long-lived processes with a durable store attached.
func (p *Pipeline) Resume(ctx context.Context, runID, checkpointID string) (*PipelineState, error) {
	return p.runnable.Resume(ctx, runID, checkpointID)
}

// ResumeFromState re-enters the pipeline from a persisted state snapshot
// and drives it to a terminal stage. The snapshot's stage field decides
// where the run picks up, exactly as the routers would. This is the
// resumption path for callers that persist PipelineState themselves, such
// as the job server's JSONB snapshots or the CLI's state file.
func (p *Pipeline) ResumeFromState(ctx context.Context, snapshot *PipelineState) *PipelineState {
	s := snapshot
	for !s.Terminal() {
		var fn func(context.Context, *PipelineState) (Update, error)
		switch s.Stage {
		case StagePlanning:
			fn = p.engine.Plan
		case StageSearching:
			fn = p.engine.ExecuteSearch
		case StageValidating:
			fn = p.engine.Validate
		case StageProcessing:
			fn = p.engine.Process
		case StageGenerating:
			fn = p.engine.Generate
		default:
			msg := fmt.Sprintf("cannot resume from unknown stage %q", s.Stage)
			s.Stage = StageError
			s.ErrorMessage = msg
		}
		if fn == nil {
			break
		}

		next, err := p.node(fn)(ctx, s)
		if err != nil {
			p.engine.Logger.Error("Resume aborted", "stage", s.Stage, "error", err)
			s.Stage = StageError
			s.ErrorMessage = err.Error()
			s.Report = ""
			if p.engine.OnStateUpdate != nil {
				p.engine.OnStateUpdate(*s)
			}
			return s
		}
		s = next
	}

	// Failed runs pass through the terminal sink, as in the graph.
	if s.Stage == StageError {
		s, _ = p.node(p.engine.HandleError)(ctx, s)
	}
	return s
}
