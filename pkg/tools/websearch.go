package tools

import (
	"fmt"
	"strings"
)

// WebSearch simulates a web search. Real deployments would swap this for a
// search API; the course modules only need deterministic, well-formed
// output for the model to read.
func WebSearch(query string, maxResults int) string {
	if maxResults <= 0 || maxResults > 3 {
		maxResults = 3
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n\n", query)
	for i := 1; i <= maxResults; i++ {
		fmt.Fprintf(&b, "%d. Result %d for '%s'\n", i, i, query)
		fmt.Fprintf(&b, "   This is a simulated search result about %s...\n", query)
		fmt.Fprintf(&b, "   https://example.com/result%d\n\n", i)
	}
	return b.String()
}
