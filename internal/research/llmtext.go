package research

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/weaver-ai/weaver/internal/llm"
)

// collectText runs a single non-streaming completion and returns its full
// text, draining the delta channel the way router.LLMClassifier does
// (internal/router/classifier.go).
func collectText(ctx context.Context, client llm.Client, model, system, user string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("research: no LLM client configured")
	}
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	deltas, err := client.Chat(ctx, model, messages, nil)
	if err != nil {
		return "", fmt.Errorf("research: completion call: %w", err)
	}
	var text strings.Builder
	for delta := range deltas {
		switch delta.Type {
		case llm.DeltaText:
			text.WriteString(delta.Text)
		case llm.DeltaFinishReason:
			if delta.Finish == llm.FinishError {
				return "", fmt.Errorf("research: completion stream: %w", delta.Err)
			}
		}
	}
	return text.String(), nil
}

var jsonArrayRegex = regexp.MustCompile(`(?s)\[.*\]`)

// extractJSONArray strips markdown fencing or leading/trailing prose around
// a model's JSON-array answer, the array counterpart to
// router.extractJSONObject (internal/router/router.go).
func extractJSONArray(raw string) string {
	return jsonArrayRegex.FindString(raw)
}

var scorePattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)

// extractScore pulls the first number out of free text and clamps it to
// [0,1], the same tolerant-extraction idiom as rag/eval.LLMJudge's
// scorePattern (internal/rag/eval/judge.go) rather than demanding strict
// JSON from a model asked for a single score.
func extractScore(raw string) float64 {
	match := scorePattern.FindString(raw)
	if match == "" {
		return 0
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
