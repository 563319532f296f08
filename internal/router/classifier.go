package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/pkg/models"
)

// LLMClassifier asks the model itself to classify a turn, via a compact
// prompt constraining the answer to a JSON object.
type LLMClassifier struct {
	client llm.Client
	model  string
}

const classificationPrompt = `Classify the user's latest message into exactly one of these execution modes:

- direct: a question answerable directly, no tools or research needed.
- web: the message references a URL or needs a live web lookup.
- agent: the message asks for code to be written, fixed, or refactored, or otherwise needs tool use.
- deep: the message asks for a comparison, analysis, or research report spanning multiple sources.

Respond with only a JSON object of the form {"mode": "<one of the above>", "confidence": <0..1>, "rationale": "<short reason>"}. No other text.`

// Classify sends the classification prompt plus recent history to the
// model and parses its JSON answer. An error here means the LLM call or
// parse failed outright; Router treats that the same as low confidence.
func (c *LLMClassifier) Classify(ctx context.Context, content string, history []models.Message) (Decision, error) {
	messages := []llm.Message{
		{Role: "system", Content: classificationPrompt},
		{Role: "user", Content: content},
	}

	deltas, err := c.client.Chat(ctx, c.model, messages, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("router: classification call: %w", err)
	}

	var text strings.Builder
	for delta := range deltas {
		switch delta.Type {
		case llm.DeltaText:
			text.WriteString(delta.Text)
		case llm.DeltaFinishReason:
			if delta.Finish == llm.FinishError {
				return Decision{}, fmt.Errorf("router: classification stream: %w", delta.Err)
			}
		}
	}

	return parseClassification(text.String())
}

var (
	urlRegex  = regexp.MustCompile(`https?://\S+`)
	codeRegex = regexp.MustCompile("(?i)```|\\b(func|class|def|package|import|SELECT|INSERT|UPDATE|DELETE)\\b")
)

var deepKeywords = []string{"compare", "analyze", "deep", "research", "report"}

// HeuristicClassifier is the router's last resort when neither an explicit
// override nor a confident LLM classification is available: cheap,
// deterministic content rules.
type HeuristicClassifier struct{}

// Classify never errors; every content string resolves to some mode.
func (c *HeuristicClassifier) Classify(_ context.Context, content string, _ []models.Message) (Decision, error) {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)

	if urlRegex.MatchString(trimmed) {
		return Decision{Mode: ModeWeb, Confidence: 0.4, Rationale: "message contains a URL"}, nil
	}

	if codeRegex.MatchString(lower) || strings.HasPrefix(lower, "fix") || strings.HasPrefix(lower, "refactor") {
		return Decision{Mode: ModeAgent, Confidence: 0.4, Rationale: "message looks like a code task"}, nil
	}

	if matches := countKeywords(lower, deepKeywords); matches >= 2 {
		return Decision{Mode: ModeDeep, Confidence: 0.4, Rationale: "message requests comparison or research"}, nil
	}

	return Decision{Mode: ModeDirect, Confidence: 0.4, Rationale: "no routing signal matched"}, nil
}

func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
