package tokencount

import (
	"unicode/utf8"

	"github.com/weaver-ai/weaver/pkg/models"
)

// Result reports the outcome of a Truncate call.
type Result struct {
	OriginalCount int
	KeptCount     int
	RemovedCount  int
	TokensFreed   int
	Strategy      Strategy

	// Truncated is true when even the last-resort single-message truncation
	// had to run; callers should emit a context_truncated warning event.
	Truncated bool
}

// unit groups an assistant message carrying tool calls together with the
// tool-role messages that resolve them, so truncation never separates a
// tool_call from its tool_result.
type unit struct {
	messages []models.Message
	tokens   int
	pinned   bool
}

func groupUnits(messages []models.Message, model string) []unit {
	var units []unit
	i := 0
	for i < len(messages) {
		m := messages[i]
		grp := []models.Message{m}
		j := i + 1
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			for j < len(messages) && messages[j].Role == models.RoleTool {
				grp = append(grp, messages[j])
				j++
			}
		}
		tokens := 0
		for _, gm := range grp {
			tokens += CountMessageTokens(gm, model)
		}
		units = append(units, unit{
			messages: grp,
			tokens:   tokens,
			pinned:   m.Role == models.RoleSystem,
		})
		i = j
	}
	return units
}

func flatten(units []unit) []models.Message {
	var out []models.Message
	for _, u := range units {
		out = append(out, u.messages...)
	}
	return out
}

func sumUnitTokens(units []unit) int {
	total := 0
	for _, u := range units {
		total += u.tokens
	}
	return total
}

// Truncate reduces messages to fit within budget tokens for model, using
// strategy to pick which units to drop. keepLast is the number of trailing
// units (besides pinned system messages) that are never dropped — callers
// typically pass 2 to preserve the most recent exchange.
func Truncate(messages []models.Message, model string, budget int, strategy Strategy, keepLast int) ([]models.Message, Result) {
	units := groupUnits(messages, model)
	result := Result{
		OriginalCount: len(messages),
		KeptCount:     len(messages),
		Strategy:      strategy,
	}

	if sumUnitTokens(units) <= budget {
		return messages, result
	}

	if keepLast < 0 {
		keepLast = 0
	}

	switch strategy {
	case StrategyMiddle:
		units = truncateMiddle(units, budget, keepLast, &result)
	case StrategyFIFO:
		units = truncateOldest(units, budget, keepLast, &result)
	default: // StrategySmart
		units = truncateSmart(units, budget, keepLast, &result)
	}

	out := flatten(units)

	if sumUnitTokens(units) > budget && len(out) > 0 {
		out, result.Truncated = truncateLastUserMessage(out, model, budget)
	}

	result.KeptCount = len(out)
	result.RemovedCount = result.OriginalCount - result.KeptCount
	return out, result
}

// truncateOldest drops the oldest non-pinned, non-protected unit first,
// mirroring the teacher's truncateOldest.
func truncateOldest(units []unit, budget, keepLast int, result *Result) []unit {
	protected := make([]bool, len(units))
	for i := range units {
		if units[i].pinned || i >= len(units)-keepLast {
			protected[i] = true
		}
	}

	total := sumUnitTokens(units)
	for i := 0; i < len(units) && total > budget; i++ {
		if protected[i] {
			continue
		}
		total -= units[i].tokens
		result.TokensFreed += units[i].tokens
		units[i].messages = nil
		units[i].tokens = 0
	}

	return compact(units)
}

// truncateMiddle keeps the first and last keepLast+1 units, dropping from
// the middle, mirroring the teacher's truncateMiddle.
func truncateMiddle(units []unit, budget, keepLast int, result *Result) []unit {
	if len(units) <= keepLast+1 {
		return units
	}
	first := units[0]
	tail := units[len(units)-keepLast:]
	middle := units[1 : len(units)-keepLast]

	kept := first.tokens
	for _, u := range tail {
		kept += u.tokens
	}

	target := budget - kept
	var keptMiddle []unit
	middleTokens := 0
	for _, u := range middle {
		if u.pinned || (target > 0 && middleTokens+u.tokens <= target) {
			keptMiddle = append(keptMiddle, u)
			middleTokens += u.tokens
		} else {
			result.TokensFreed += u.tokens
		}
	}

	final := make([]unit, 0, 1+len(keptMiddle)+len(tail))
	final = append(final, first)
	final = append(final, keptMiddle...)
	final = append(final, tail...)
	return final
}

// truncateSmart drops low-value units first: failed tool results before
// successful ones, then falls back to oldest-first among the rest.
func truncateSmart(units []unit, budget, keepLast int, result *Result) []unit {
	protected := make([]bool, len(units))
	for i := range units {
		if units[i].pinned || i >= len(units)-keepLast {
			protected[i] = true
		}
	}

	order := make([]int, 0, len(units))
	for i, u := range units {
		if !protected[i] && unitHasToolError(u) {
			order = append(order, i)
		}
	}
	for i, u := range units {
		if !protected[i] && !unitHasToolError(u) {
			order = append(order, i)
		}
	}

	total := sumUnitTokens(units)
	for _, i := range order {
		if total <= budget {
			break
		}
		total -= units[i].tokens
		result.TokensFreed += units[i].tokens
		units[i].messages = nil
		units[i].tokens = 0
	}

	return compact(units)
}

func unitHasToolError(u unit) bool {
	for _, m := range u.messages {
		for _, tr := range m.ToolResults {
			if tr.IsError {
				return true
			}
		}
	}
	return false
}

func compact(units []unit) []unit {
	out := units[:0]
	for _, u := range units {
		if u.messages != nil {
			out = append(out, u)
		}
	}
	return out
}

// truncateLastUserMessage is the last-resort failure mode: if dropping whole
// units still doesn't fit budget, shrink the final user message content with
// a UTF-8-safe rune truncation instead of dropping any more structure.
func truncateLastUserMessage(messages []models.Message, model string, budget int) ([]models.Message, bool) {
	idx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			idx = i
			break
		}
	}
	if idx == -1 {
		return messages, false
	}

	others := 0
	for i, m := range messages {
		if i != idx {
			others += CountMessageTokens(m, model)
		}
	}
	remaining := budget - others - perMessageOverhead
	if remaining <= 0 {
		remaining = 1
	}

	ratio := familyFor(model).CharsPerToken
	maxRunes := int(float64(remaining) * ratio)

	content := messages[idx].Content
	if utf8.RuneCountInString(content) <= maxRunes {
		return messages, false
	}

	runes := []rune(content)
	if maxRunes > len(runes) {
		maxRunes = len(runes)
	}
	messages[idx].Content = string(runes[:maxRunes])
	return messages, true
}
