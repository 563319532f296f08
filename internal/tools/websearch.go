package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

// SearchResult is one hit from a SearchProvider, enough to canonicalize,
// score, and summarize without the caller knowing which backend answered.
type SearchResult struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	Score       float64   `json:"score,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// SearchProvider is the substrate's web-search backend. Weaver ships no
// concrete implementation (live web search is out of scope, same standing
// as browser automation and sandboxed execution); callers wire in whatever
// search API they have access to.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// WebSearchArgs is the input schema for the built-in "web_search" tool.
type WebSearchArgs struct {
	Query      string `json:"query" jsonschema:"required,description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"minimum=1,description=Maximum results to return"`
}

// RegisterWebSearch registers a "web_search" tool backed by provider, so
// agent_node's tool loop and the deep-research engine's fan-out can share
// one search backend and one descriptor.
func RegisterWebSearch(r *Registry, provider SearchProvider) error {
	schema, err := GenerateSchema(WebSearchArgs{})
	if err != nil {
		return fmt.Errorf("tools: generate schema for web_search: %w", err)
	}
	descriptor := models.ToolDescriptor{
		Name:        "web_search",
		Description: "Search the web and return matching pages with title, url, and snippet.",
		InputSchema: schema,
		Source:      "builtin",
	}
	return r.Register(descriptor, webSearchHandler(provider))
}

func webSearchHandler(provider SearchProvider) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args WebSearchArgs
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Query == "" {
			return "", fmt.Errorf("query is required")
		}
		maxResults := args.MaxResults
		if maxResults <= 0 {
			maxResults = 10
		}
		results, err := provider.Search(ctx, args.Query, maxResults)
		if err != nil {
			return "", err
		}
		payload, err := json.Marshal(map[string]any{"results": results})
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
}
