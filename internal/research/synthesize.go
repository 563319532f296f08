package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/weaver-ai/weaver/pkg/models"
)

const synthesisPrompt = `Write a research report answering the query below, grounded only in the numbered sources. Cite sources inline using their number in square brackets, e.g. [1]. Do not invent sources or facts not present below.

Query: %s

Sources:
%s`

// synthesize writes the final report. Citation indices are assigned by
// first-appearance order in state.Sources, which is already
// discovery-stable (search dedupes against SeenURLs, so a URL is
// summarized at most once across every epoch) -- the model is simply told
// which index names which source, rather than asked to invent numbering.
func (e *Engine) synthesize(ctx context.Context, state *models.DeepResearchState) (string, []models.Citation, error) {
	if len(state.Sources) == 0 {
		return fmt.Sprintf("No sources were found for %q within the epoch budget.", state.Query), nil, nil
	}

	citations := make([]models.Citation, len(state.Sources))
	var sb strings.Builder
	for i, s := range state.Sources {
		citations[i] = models.Citation{Index: i + 1, URL: s.URL}
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, s.Title, s.URL, s.Summary)
	}

	report, err := collectText(ctx, e.cfg.Client, e.cfg.Model, "You write grounded, cited research reports.", fmt.Sprintf(synthesisPrompt, state.Query, sb.String()))
	if err != nil {
		return "", nil, err
	}
	return report, citations, nil
}
