// Package research implements the deep-research engine deep_node delegates
// to: decompose a query into sub-queries, fan out web searches, dedupe and
// summarize sources, score quality, and either iterate another epoch or
// synthesize a cited report. The epoch loop generalizes the teacher's
// multiagent.Swarm stage-based fan-out/join (internal/multiagent/swarm.go)
// from "N agents split by role" to "N sub-queries split by search, then by
// summarize", with a bounded worker count at each stage instead of one
// goroutine per agent.
package research

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weaver-ai/weaver/internal/cache"
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/internal/net/ssrf"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/pkg/models"
)

// Config wires an Engine's model, search backend, and epoch limits.
type Config struct {
	Client   llm.Client
	Model    string
	Provider tools.SearchProvider

	// MaxEpochs caps how many decompose/search/summarize/evaluate rounds a
	// single Run performs. Zero picks 3.
	MaxEpochs int

	// MaxSourcesPerEpoch caps how many newly-discovered sources are
	// summarized per epoch, by provider score. Zero picks 8.
	MaxSourcesPerEpoch int

	// SearchConcurrency bounds parallel sub-query searches. Zero picks 5.
	SearchConcurrency int

	// SummarizeConcurrency bounds parallel source summarizations. Zero
	// picks 3.
	SummarizeConcurrency int

	// DedupeTTL bounds how long a seen URL is remembered across Run calls
	// sharing an Engine. Zero disables expiry (URLs are remembered for the
	// Engine's lifetime).
	DedupeTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEpochs <= 0 {
		c.MaxEpochs = 3
	}
	if c.MaxSourcesPerEpoch <= 0 {
		c.MaxSourcesPerEpoch = 8
	}
	if c.SearchConcurrency <= 0 {
		c.SearchConcurrency = 5
	}
	if c.SummarizeConcurrency <= 0 {
		c.SummarizeConcurrency = 3
	}
	return c
}

// Engine runs the decompose -> search -> dedupe -> summarize -> evaluate ->
// decide -> synthesize loop. An Engine is safe for concurrent Run calls;
// the seen-URL cache is shared and keyed per canonical URL only, so two
// concurrent Run calls for different queries will dedupe against each
// other's sources. Callers running unrelated queries concurrently should
// use separate Engines.
type Engine struct {
	cfg  Config
	seen *cache.DedupeCache
}

// New builds an Engine.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:  cfg,
		seen: cache.NewDedupeCache(cache.DedupeCacheOptions{TTL: cfg.DedupeTTL, MaxSize: 10000}),
	}
}

// Run executes the full epoch loop for query and returns the terminal
// research state: always populated with a Report and Citations, even if
// the quality thresholds were never met by MaxEpochs.
func (e *Engine) Run(ctx context.Context, query string) (*models.DeepResearchState, error) {
	state := &models.DeepResearchState{
		Query:     query,
		MaxEpochs: e.cfg.MaxEpochs,
		SeenURLs:  make(map[string]struct{}),
		StartedAt: time.Now(),
	}

	subQueries := []string{query}
	answered := make(map[string]bool, 1)

	for {
		state.Epoch++

		if state.Epoch == 1 {
			if decomposed, err := e.decompose(ctx, query); err == nil && len(decomposed) > 0 {
				subQueries = decomposed
			}
			state.SubQueries = subQueries
			for _, q := range subQueries {
				answered[q] = false
			}
		}

		candidates := e.search(ctx, subQueries, state, answered)
		fresh := e.summarize(ctx, candidates)
		state.Sources = append(state.Sources, fresh...)

		quality := e.evaluate(ctx, state, answered)
		state.Quality = quality
		state.UpdatedAt = time.Now()

		if !e.shouldContinue(state, quality, answered) {
			break
		}
	}

	report, citations, err := e.synthesize(ctx, state)
	if err != nil {
		return nil, err
	}
	state.Report = report
	state.Citations = citations
	state.Done = true
	state.UpdatedAt = time.Now()
	return state, nil
}

func (e *Engine) shouldContinue(state *models.DeepResearchState, quality *models.ResearchQualityScore, answered map[string]bool) bool {
	if state.Epoch >= state.MaxEpochs {
		return false
	}
	if quality.Coverage < 0.8 || quality.Citation < 0.7 {
		return true
	}
	for _, done := range answered {
		if !done {
			return true
		}
	}
	return false
}

// searchCandidate is a deduped, still-unsummarized search hit.
type searchCandidate struct {
	subQuery string
	tools.SearchResult
}

// search fans out one search per sub-query (bounded concurrency), drops
// results whose canonical URL was already seen or that fail the SSRF
// public-hostname check, and keeps the top MaxSourcesPerEpoch survivors by
// provider score.
func (e *Engine) search(ctx context.Context, subQueries []string, state *models.DeepResearchState, answered map[string]bool) []searchCandidate {
	if e.cfg.Provider == nil {
		return nil
	}

	type hit struct {
		subQuery string
		results  []tools.SearchResult
		err      error
	}
	hits := make([]hit, len(subQueries))
	sem := make(chan struct{}, e.cfg.SearchConcurrency)
	var wg sync.WaitGroup
	for i, q := range subQueries {
		wg.Add(1)
		go func(idx int, subQuery string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				hits[idx] = hit{subQuery: subQuery, err: ctx.Err()}
				return
			}
			results, err := e.cfg.Provider.Search(ctx, subQuery, e.cfg.MaxSourcesPerEpoch)
			hits[idx] = hit{subQuery: subQuery, results: results, err: err}
		}(i, q)
	}
	wg.Wait()

	var candidates []searchCandidate
	for _, h := range hits {
		if h.err != nil {
			continue
		}
		for _, r := range h.results {
			canonical, err := canonicalizeURL(r.URL)
			if err != nil {
				continue
			}
			if err := ssrf.ValidatePublicHostname(hostOf(canonical)); err != nil {
				continue
			}
			if _, dup := state.SeenURLs[canonical]; dup {
				continue
			}
			if e.seen.Check(canonical) {
				continue
			}
			r.URL = canonical
			answered[h.subQuery] = true
			candidates = append(candidates, searchCandidate{subQuery: h.subQuery, SearchResult: r})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > e.cfg.MaxSourcesPerEpoch {
		candidates = candidates[:e.cfg.MaxSourcesPerEpoch]
	}
	for _, c := range candidates {
		state.SeenURLs[c.URL] = struct{}{}
	}
	return candidates
}

// summarize produces a grounded, ~300-token summary per candidate with
// bounded concurrency. A candidate whose summarization fails is dropped
// rather than failing the whole epoch.
func (e *Engine) summarize(ctx context.Context, candidates []searchCandidate) []models.ResearchSource {
	sources := make([]*models.ResearchSource, len(candidates))
	sem := make(chan struct{}, e.cfg.SummarizeConcurrency)
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, cand searchCandidate) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			summary, err := e.summarizeOne(ctx, cand)
			if err != nil {
				return
			}
			sources[idx] = &models.ResearchSource{
				URL:         cand.URL,
				Title:       cand.Title,
				Summary:     summary,
				PublishedAt: cand.PublishedAt,
				FetchedAt:   time.Now(),
			}
		}(i, c)
	}
	wg.Wait()

	out := make([]models.ResearchSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (e *Engine) summarizeOne(ctx context.Context, cand searchCandidate) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following source in under 300 tokens, grounded only in the snippet below. "+
			"Be factual; do not speculate beyond what the snippet states.\n\nTitle: %s\nURL: %s\nSnippet: %s",
		cand.Title, cand.URL, cand.Snippet,
	)
	return collectText(ctx, e.cfg.Client, e.cfg.Model, "You summarize web sources for a research report.", prompt)
}

func hostOf(rawURL string) string {
	host, err := parseURL(rawURL)
	if err != nil {
		return rawURL
	}
	return host
}
