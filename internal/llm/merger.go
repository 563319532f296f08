package llm

import (
	"encoding/json"
	"sort"
)

// StreamMerger accumulates tool_call_delta fragments across a stream and
// assembles them into complete ToolCalls once the terminal finish delta
// arrives. Each adapter owns one merger per Chat call; it is not safe for
// concurrent use.
type StreamMerger struct {
	byIndex map[int]*pendingCall
}

type pendingCall struct {
	index int
	id    string
	name  string
	args  []byte
}

// NewStreamMerger returns an empty merger ready to accumulate fragments.
func NewStreamMerger() *StreamMerger {
	return &StreamMerger{byIndex: make(map[int]*pendingCall)}
}

// Add folds one fragment into the in-progress call at its index. The first
// fragment for an index must carry ID and Name; subsequent fragments
// append to ArgsDelta.
func (m *StreamMerger) Add(frag *ToolCallFragment) {
	if frag == nil {
		return
	}
	call, ok := m.byIndex[frag.Index]
	if !ok {
		call = &pendingCall{index: frag.Index}
		m.byIndex[frag.Index] = call
	}
	if frag.ID != "" {
		call.id = frag.ID
	}
	if frag.Name != "" {
		call.name = frag.Name
	}
	if frag.ArgsDelta != "" {
		call.args = append(call.args, frag.ArgsDelta...)
	}
}

// Finish returns the assembled tool calls in index order. A call whose
// accumulated args never parse as JSON still keeps its raw bytes under
// Input — ValidateArgs downstream surfaces the schema error, not Finish.
func (m *StreamMerger) Finish() []ToolCall {
	if len(m.byIndex) == 0 {
		return nil
	}
	indices := make([]int, 0, len(m.byIndex))
	for idx := range m.byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]ToolCall, 0, len(indices))
	for _, idx := range indices {
		pc := m.byIndex[idx]
		input := pc.args
		if len(input) == 0 {
			input = []byte("{}")
		}
		calls = append(calls, ToolCall{ID: pc.id, Name: pc.name, Input: json.RawMessage(input)})
	}
	return calls
}

// Reset clears accumulated state for reuse across a retried request.
func (m *StreamMerger) Reset() {
	m.byIndex = make(map[int]*pendingCall)
}
