// Package tokencount estimates token usage for conversation messages and
// truncates a message list to fit a model's context budget while preserving
// tool_call/tool_result pairing, generalizing the teacher's
// internal/context.Window/Truncator (character-ratio estimation, pinned
// first/last messages, oldest/middle strategies) from a single fixed ratio
// to a per-model-family tokenizer and from a Truncator-local Message type to
// pkg/models.Message.
package tokencount

import (
	"unicode/utf8"

	"github.com/weaver-ai/weaver/pkg/models"
)

// Strategy selects how CountTokens over-budget messages are reduced.
type Strategy string

const (
	StrategySmart  Strategy = "smart"
	StrategyFIFO   Strategy = "fifo"
	StrategyMiddle Strategy = "middle"
)

// Family maps a model ID prefix to a chars-per-token ratio. Longest matching
// prefix wins, matching the teacher's NewWindowForModel resolution.
type Family struct {
	Prefix        string
	CharsPerToken float64
}

// Families are consulted in order; DefaultFamily applies when nothing
// matches. CJK-heavy model families get a lower ratio since a rune there is
// closer to a full token than four Latin characters are.
var Families = []Family{
	{Prefix: "gemini", CharsPerToken: 4.0},
	{Prefix: "gpt", CharsPerToken: 4.0},
	{Prefix: "o1", CharsPerToken: 4.0},
	{Prefix: "o3", CharsPerToken: 4.0},
	{Prefix: "claude", CharsPerToken: 3.8},
}

// DefaultFamily is used when no registered prefix matches the model ID.
var DefaultFamily = Family{Prefix: "", CharsPerToken: 4.0}

// perMessageOverhead approximates the token cost of role/formatting wrapper
// tokens the raw content estimate does not capture.
const perMessageOverhead = 4

// ReportedUsage is a provider-reported token count for a prior call against a
// given model, used by CountTokens in preference to the heuristic when
// present. Callers populate this from the LLM adapter's last usage reply.
type ReportedUsage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

func familyFor(model string) Family {
	best := DefaultFamily
	for _, f := range Families {
		if len(f.Prefix) > 0 && len(f.Prefix) > len(best.Prefix) && hasPrefix(model, f.Prefix) {
			best = f
		}
	}
	return best
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// EstimateTokens returns a codepoint-based heuristic token count for text
// under the given model's family ratio.
func EstimateTokens(text string, model string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	ratio := familyFor(model).CharsPerToken
	tokens := int(float64(runes) / ratio)
	if tokens == 0 {
		return 1
	}
	return tokens
}

// CountMessageTokens estimates the token cost of a single message, including
// serialized tool call/result overhead.
func CountMessageTokens(msg models.Message, model string) int {
	total := EstimateTokens(msg.Content, model) + perMessageOverhead
	for _, tc := range msg.ToolCalls {
		total += EstimateTokens(string(tc.Input), model) + perMessageOverhead
	}
	for _, tr := range msg.ToolResults {
		total += EstimateTokens(tr.Content, model) + perMessageOverhead
	}
	return total
}

// CountTokens estimates total tokens for a message list against model. If
// usage is non-nil and matches model, the provider-reported count for the
// trailing messages it covers is used instead of the heuristic for those
// messages (the caller is expected to pass usage only for a full-conversation
// reply; partial replies fall back to the heuristic).
func CountTokens(messages []models.Message, model string, usage *ReportedUsage) int {
	if usage != nil && usage.Model == model {
		return usage.InputTokens + usage.OutputTokens
	}
	total := 0
	for _, m := range messages {
		total += CountMessageTokens(m, model)
	}
	return total
}
