package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/pkg/models"
)

type stubClassifier struct {
	decision Decision
	err      error
	calls    int
}

func (s *stubClassifier) Classify(ctx context.Context, content string, history []models.Message) (Decision, error) {
	s.calls++
	return s.decision, s.err
}

func userTurn(content string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: content}}
}

func TestRouter_ExplicitOverrideWins(t *testing.T) {
	classifier := &stubClassifier{decision: Decision{Mode: ModeDirect, Confidence: 1}}
	r := New(nil, Config{Classifier: classifier}, nil)

	decision, err := r.Route(context.Background(), "t1", userTurn("anything"), "web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeWeb || decision.Confidence != 1.0 || decision.Rationale != "user override" {
		t.Errorf("decision = %+v", decision)
	}
	if classifier.calls != 0 {
		t.Error("classifier should not be consulted when override is set")
	}
}

func TestRouter_RejectsInvalidOverride(t *testing.T) {
	r := New(nil, Config{Classifier: &stubClassifier{}}, nil)
	if _, err := r.Route(context.Background(), "t1", userTurn("hi"), "bogus"); err == nil {
		t.Fatal("expected error for invalid override")
	}
}

func TestRouter_AcceptsUltraOverride(t *testing.T) {
	r := New(nil, Config{Classifier: &stubClassifier{}}, nil)
	decision, err := r.Route(context.Background(), "t1", userTurn("hi"), "ultra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeUltra {
		t.Errorf("mode = %s, want ultra", decision.Mode)
	}
}

func TestRouter_UsesConfidentLLMDecision(t *testing.T) {
	classifier := &stubClassifier{decision: Decision{Mode: ModeAgent, Confidence: 0.9, Rationale: "looks like code"}}
	r := New(nil, Config{Classifier: classifier}, nil)

	decision, err := r.Route(context.Background(), "t1", userTurn("write me a function"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeAgent || decision.Confidence != 0.9 {
		t.Errorf("decision = %+v", decision)
	}
}

func TestRouter_FallsBackToHeuristicOnLowConfidence(t *testing.T) {
	classifier := &stubClassifier{decision: Decision{Mode: ModeAgent, Confidence: 0.2}}
	r := New(nil, Config{Classifier: classifier}, nil)

	decision, err := r.Route(context.Background(), "t1", userTurn("compare and analyze these options"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeDeep {
		t.Errorf("mode = %s, want deep (heuristic fallback)", decision.Mode)
	}
}

func TestRouter_FallsBackToHeuristicOnClassifierError(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("llm unavailable")}
	r := New(nil, Config{Classifier: classifier}, nil)

	decision, err := r.Route(context.Background(), "t1", userTurn("check https://example.com"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != ModeWeb {
		t.Errorf("mode = %s, want web (heuristic fallback)", decision.Mode)
	}
}

func TestRouter_CooldownSkipsClassifierAfterFailure(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("down")}
	r := New(nil, Config{Classifier: classifier, FailureCooldown: time.Hour}, nil)

	if _, err := r.Route(context.Background(), "t1", userTurn("hello there"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Route(context.Background(), "t1", userTurn("hello again"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (second call should skip during cooldown)", classifier.calls)
	}
}

func TestRouter_PublishesStatusEvent(t *testing.T) {
	bus := eventbus.New(0, 0)
	classifier := &stubClassifier{decision: Decision{Mode: ModeDirect, Confidence: 0.9, Rationale: "simple question"}}
	r := New(nil, Config{Classifier: classifier}, bus)

	sub := bus.Subscribe("t1", 0)
	defer sub.Close()

	if _, err := r.Route(context.Background(), "t1", userTurn("hi"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-sub.Events:
		if ev.Type != models.EventStatus || ev.Status == nil || ev.Status.Mode != string(ModeDirect) {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a status event")
	}
}
