package research

import (
	"context"
	"encoding/json"
	"fmt"
)

const decomposePrompt = `Break the following research query into 2-5 focused sub-queries that together cover it. Respond with only a JSON array of strings, no other text.

Query: %s`

// decompose asks the model for a sub-query list. Epoch 1 only, per the
// engine's loop; a malformed or empty answer falls back to the original
// query as its own sole sub-query so a single epoch still makes progress.
func (e *Engine) decompose(ctx context.Context, query string) ([]string, error) {
	raw, err := collectText(ctx, e.cfg.Client, e.cfg.Model, "You decompose research questions into sub-queries.", fmt.Sprintf(decomposePrompt, query))
	if err != nil {
		return nil, err
	}
	arr := extractJSONArray(raw)
	if arr == "" {
		return nil, fmt.Errorf("research: no JSON array in decomposition response")
	}
	var subQueries []string
	if err := json.Unmarshal([]byte(arr), &subQueries); err != nil {
		return nil, fmt.Errorf("research: malformed decomposition JSON: %w", err)
	}
	var cleaned []string
	for _, q := range subQueries {
		if q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("research: decomposition produced no sub-queries")
	}
	return cleaned, nil
}
