package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

const consistencyPrompt = `Rate how consistent these source summaries are with each other on a scale from 0 (flatly contradictory) to 1 (fully consistent). Respond with only the number.

Summaries:
%s`

// evaluate scores the accumulated state across five dimensions. Citation,
// coverage, query_coverage, and freshness are pure functions of the
// sources gathered so far; consistency is the one dimension that needs a
// model's judgment, scored the same tolerant way rag/eval.LLMJudge scores
// free-text answers (internal/rag/eval/judge.go): ask for a single number,
// extract it with a regex rather than demanding strict JSON.
func (e *Engine) evaluate(ctx context.Context, state *models.DeepResearchState, answered map[string]bool) *models.ResearchQualityScore {
	return &models.ResearchQualityScore{
		Citation:      citationScore(state, len(answered)),
		Coverage:      coverageScore(state.Sources),
		Consistency:   e.consistencyScore(ctx, state.Sources),
		Freshness:     freshnessScore(state.Sources),
		QueryCoverage: queryCoverageScore(answered),
	}
}

// citationScore approximates "enough sources to ground a report": three
// sources per sub-query is considered fully cited.
func citationScore(state *models.DeepResearchState, subQueryCount int) float64 {
	if subQueryCount == 0 || len(state.Sources) == 0 {
		return 0
	}
	target := float64(3 * subQueryCount)
	score := float64(len(state.Sources)) / target
	if score > 1 {
		score = 1
	}
	return score
}

// coverageScore rewards sourcing from distinct domains over many pages of
// the same site.
func coverageScore(sources []models.ResearchSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	domains := make(map[string]struct{})
	for _, s := range sources {
		if u, err := url.Parse(s.URL); err == nil {
			domains[u.Hostname()] = struct{}{}
		}
	}
	score := float64(len(domains)) / float64(len(sources))
	// A single domain covering every source still counts as some coverage;
	// scale so 1 distinct domain per 2 sources already reaches full credit.
	score *= 2
	if score > 1 {
		score = 1
	}
	return score
}

func queryCoverageScore(answered map[string]bool) float64 {
	if len(answered) == 0 {
		return 0
	}
	done := 0
	for _, ok := range answered {
		if ok {
			done++
		}
	}
	return float64(done) / float64(len(answered))
}

// freshnessScore rewards sources published within the last 90 days;
// sources with no publish date are treated as neutral, not stale.
func freshnessScore(sources []models.ResearchSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var total float64
	now := time.Now()
	for _, s := range sources {
		if s.PublishedAt.IsZero() {
			total += 0.5
			continue
		}
		age := now.Sub(s.PublishedAt)
		switch {
		case age <= 30*24*time.Hour:
			total += 1.0
		case age <= 90*24*time.Hour:
			total += 0.75
		case age <= 365*24*time.Hour:
			total += 0.4
		default:
			total += 0.1
		}
	}
	return total / float64(len(sources))
}

func (e *Engine) consistencyScore(ctx context.Context, sources []models.ResearchSource) float64 {
	if len(sources) < 2 {
		return 1
	}
	sample := sources
	if len(sample) > 8 {
		sample = sample[len(sample)-8:]
	}
	var sb strings.Builder
	for i, s := range sample {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.Summary)
	}
	raw, err := collectText(ctx, e.cfg.Client, e.cfg.Model, "You judge research summaries for mutual consistency.", fmt.Sprintf(consistencyPrompt, sb.String()))
	if err != nil {
		return 0.5
	}
	return extractScore(raw)
}
