package research

import (
	"context"
	"fmt"
)

// Searcher is the external search collaborator. One call per query; the
// pipeline records per-query failures in the state instead of aborting.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// MockSearcher returns canned snippets. It stands in for a real web search
// API the way the course material's simulated search does.
type MockSearcher struct{}

func (MockSearcher) Search(_ context.Context, query string) (string, error) {
	return fmt.Sprintf(
		"1. Overview of %[1]s: background, terminology and current state of the art.\n"+
			"2. Recent developments in %[1]s reported by industry and academia.\n"+
			"3. Open challenges and future directions for %[1]s.",
		query,
	), nil
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string) (string, error)

func (f SearcherFunc) Search(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
