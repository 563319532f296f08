package llm

import (
	"encoding/json"
	"testing"
)

func TestStreamMerger_SingleCallAcrossFragments(t *testing.T) {
	m := NewStreamMerger()
	m.Add(&ToolCallFragment{Index: 0, ID: "call_1", Name: "get_weather"})
	m.Add(&ToolCallFragment{Index: 0, ArgsDelta: `{"city":`})
	m.Add(&ToolCallFragment{Index: 0, ArgsDelta: `"London"}`})

	calls := m.Finish()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "get_weather" {
		t.Errorf("call = %+v, want ID=call_1 Name=get_weather", calls[0])
	}
	var decoded map[string]string
	if err := json.Unmarshal(calls[0].Input, &decoded); err != nil {
		t.Fatalf("input didn't parse as JSON: %v", err)
	}
	if decoded["city"] != "London" {
		t.Errorf("city = %q, want London", decoded["city"])
	}
}

func TestStreamMerger_MultipleCallsOrderedByIndex(t *testing.T) {
	m := NewStreamMerger()
	m.Add(&ToolCallFragment{Index: 1, ID: "call_b", Name: "second"})
	m.Add(&ToolCallFragment{Index: 0, ID: "call_a", Name: "first"})
	m.Add(&ToolCallFragment{Index: 1, ArgsDelta: "{}"})
	m.Add(&ToolCallFragment{Index: 0, ArgsDelta: "{}"})

	calls := m.Finish()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Name != "first" || calls[1].Name != "second" {
		t.Errorf("order = [%s, %s], want [first, second]", calls[0].Name, calls[1].Name)
	}
}

func TestStreamMerger_EmptyArgsDefaultToEmptyObject(t *testing.T) {
	m := NewStreamMerger()
	m.Add(&ToolCallFragment{Index: 0, ID: "call_1", Name: "noop"})

	calls := m.Finish()
	if string(calls[0].Input) != "{}" {
		t.Errorf("input = %s, want {}", calls[0].Input)
	}
}

func TestStreamMerger_NoFragmentsYieldsNilCalls(t *testing.T) {
	m := NewStreamMerger()
	if calls := m.Finish(); calls != nil {
		t.Errorf("calls = %v, want nil", calls)
	}
}

func TestStreamMerger_AddNilFragmentIsNoop(t *testing.T) {
	m := NewStreamMerger()
	m.Add(nil)
	if calls := m.Finish(); calls != nil {
		t.Errorf("calls = %v, want nil", calls)
	}
}

func TestStreamMerger_Reset(t *testing.T) {
	m := NewStreamMerger()
	m.Add(&ToolCallFragment{Index: 0, ID: "call_1", Name: "x"})
	m.Reset()
	if calls := m.Finish(); calls != nil {
		t.Errorf("calls after reset = %v, want nil", calls)
	}
}
