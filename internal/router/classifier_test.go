package router

import (
	"context"
	"errors"
	"testing"

	"github.com/weaver-ai/weaver/internal/llm"
)

type stubLLMClient struct {
	deltas []llm.Delta
	err    error
}

func (s *stubLLMClient) Chat(ctx context.Context, model string, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.Delta, len(s.deltas))
	for _, d := range s.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func TestLLMClassifier_ParsesJSONResponse(t *testing.T) {
	client := &stubLLMClient{deltas: []llm.Delta{
		{Type: llm.DeltaText, Text: `{"mode":"deep","confidence":0.9,`},
		{Type: llm.DeltaText, Text: `"rationale":"comparison request"}`},
		{Type: llm.DeltaFinishReason, Finish: llm.FinishStop},
	}}
	c := &LLMClassifier{client: client}

	decision, err := c.Classify(context.Background(), "compare postgres and mysql", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeDeep || decision.Confidence != 0.9 {
		t.Errorf("decision = %+v", decision)
	}
}

func TestLLMClassifier_SurfacesCallError(t *testing.T) {
	c := &LLMClassifier{client: &stubLLMClient{err: errors.New("boom")}}
	if _, err := c.Classify(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLLMClassifier_SurfacesStreamError(t *testing.T) {
	client := &stubLLMClient{deltas: []llm.Delta{
		{Type: llm.DeltaFinishReason, Finish: llm.FinishError, Err: errors.New("stream broke")},
	}}
	c := &LLMClassifier{client: client}
	if _, err := c.Classify(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseClassification_StripsMarkdownFence(t *testing.T) {
	decision, err := parseClassification("```json\n{\"mode\":\"web\",\"confidence\":0.8,\"rationale\":\"has a link\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeWeb || decision.Rationale != "has a link" {
		t.Errorf("decision = %+v", decision)
	}
}

func TestParseClassification_NoJSONErrors(t *testing.T) {
	if _, err := parseClassification("sorry, I can't help with that"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHeuristicClassifier_URL(t *testing.T) {
	c := &HeuristicClassifier{}
	decision, _ := c.Classify(context.Background(), "check https://example.com/page for pricing", nil)
	if decision.Mode != ModeWeb {
		t.Errorf("mode = %s, want web", decision.Mode)
	}
}

func TestHeuristicClassifier_Code(t *testing.T) {
	c := &HeuristicClassifier{}
	decision, _ := c.Classify(context.Background(), "fix this: func broken() {}", nil)
	if decision.Mode != ModeAgent {
		t.Errorf("mode = %s, want agent", decision.Mode)
	}
}

func TestHeuristicClassifier_Deep(t *testing.T) {
	c := &HeuristicClassifier{}
	decision, _ := c.Classify(context.Background(), "compare and analyze these two approaches", nil)
	if decision.Mode != ModeDeep {
		t.Errorf("mode = %s, want deep", decision.Mode)
	}
}

func TestHeuristicClassifier_DefaultsToDirect(t *testing.T) {
	c := &HeuristicClassifier{}
	decision, _ := c.Classify(context.Background(), "what's the weather like generally", nil)
	if decision.Mode != ModeDirect {
		t.Errorf("mode = %s, want direct", decision.Mode)
	}
}
