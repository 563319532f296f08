package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/pkg/models"
)

func textPatch(content string) Handler {
	return func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		return Patch{Messages: []models.Message{{Role: models.RoleAssistant, Content: content}}}, nil
	}
}

func TestGraph_LinearRunToEnd(t *testing.T) {
	g := New(Config{})
	g.Entry("a")
	g.AddNode("a", textPatch("hello"))
	g.AddEdge("a", END)

	state := &models.ConversationState{ThreadID: "t1"}
	final, err := g.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.Messages) != 1 || final.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", final.Messages)
	}
}

func TestGraph_ConditionalEdgePicksSuccessor(t *testing.T) {
	g := New(Config{})
	g.Entry("route")
	g.AddNode("route", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		mode := "b"
		return Patch{Mode: &mode}, nil
	})
	g.AddConditionalEdge("route", func(state *models.ConversationState) string {
		if state.Mode == "b" {
			return "b"
		}
		return "a"
	})
	g.AddNode("a", textPatch("wrong branch"))
	g.AddNode("b", textPatch("right branch"))
	g.AddEdge("a", END)
	g.AddEdge("b", END)

	final, err := g.Run(context.Background(), &models.ConversationState{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.Messages) != 1 || final.Messages[0].Content != "right branch" {
		t.Errorf("messages = %+v", final.Messages)
	}
}

func TestGraph_MessagesAndArtifactsAppendOnly(t *testing.T) {
	g := New(Config{})
	g.Entry("a")
	g.AddNode("a", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		return Patch{
			Messages:  []models.Message{{Role: models.RoleAssistant, Content: "one"}},
			Artifacts: []models.Artifact{{ID: "art1", Name: "x"}},
		}, nil
	})
	g.AddEdge("a", "b")
	g.AddNode("b", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		return Patch{Messages: []models.Message{{Role: models.RoleAssistant, Content: "two"}}}, nil
	})
	g.AddEdge("b", END)

	state := &models.ConversationState{
		ThreadID: "t1",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}
	final, err := g.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.Messages) != 3 {
		t.Fatalf("got %d messages, want 3 (append-only)", len(final.Messages))
	}
	if len(final.Artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(final.Artifacts))
	}
}

func TestGraph_InterruptSuspendsAndCheckpoints(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := New(Config{Checkpointer: store})
	g.Entry("approve")
	g.AddNode("approve", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		return Patch{Interrupt: &models.Interrupt{NodeName: "approve", Reason: "tool requires approval"}}, nil
	})
	g.AddEdge("approve", END)

	state := &models.ConversationState{ThreadID: "t1"}
	final, err := g.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.PendingInterrupt == nil {
		t.Fatal("expected PendingInterrupt to be set")
	}

	latest, err := store.Latest(context.Background(), "t1")
	if err != nil {
		t.Fatalf("expected a checkpoint to have been saved: %v", err)
	}
	if latest.NodeName != "approve" {
		t.Errorf("checkpoint node = %q, want approve", latest.NodeName)
	}
}

func TestGraph_ResumeClearsInterruptAndReentersNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := New(Config{Checkpointer: store})
	g.Entry("approve")
	calls := 0
	g.AddNode("approve", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		calls++
		if state.Metadata["approved"] == true {
			return Patch{Messages: []models.Message{{Role: models.RoleAssistant, Content: "done"}}}, nil
		}
		return Patch{Interrupt: &models.Interrupt{NodeName: "approve"}}, nil
	})
	g.AddEdge("approve", END)

	state := &models.ConversationState{ThreadID: "t1"}
	state, err := g.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.PendingInterrupt == nil {
		t.Fatal("expected suspension")
	}

	state, err = Resume(context.Background(), g, state, map[string]any{"approved": true})
	if err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	if state.PendingInterrupt != nil {
		t.Error("expected PendingInterrupt cleared after resume")
	}
	if calls != 2 {
		t.Errorf("approve node called %d times, want 2", calls)
	}
	if len(state.Messages) != 1 || state.Messages[0].Content != "done" {
		t.Errorf("messages = %+v", state.Messages)
	}
}

func TestGraph_CancelledContextTerminates(t *testing.T) {
	g := New(Config{})
	g.Entry("a")
	g.AddNode("a", textPatch("unreachable"))
	g.AddEdge("a", END)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Run(ctx, &models.ConversationState{ThreadID: "t1"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestGraph_MissingEdgeIsInternalError(t *testing.T) {
	g := New(Config{})
	g.Entry("a")
	g.AddNode("a", textPatch("x"))
	// no outgoing edge registered for "a"

	_, err := g.Run(context.Background(), &models.ConversationState{ThreadID: "t1"})
	if err == nil {
		t.Fatal("expected error for missing edge")
	}
}

func TestGraph_NodeHandlerErrorStopsRun(t *testing.T) {
	g := New(Config{})
	g.Entry("a")
	wantErr := errors.New("boom")
	g.AddNode("a", func(ctx context.Context, state *models.ConversationState) (Patch, error) {
		return Patch{}, wantErr
	})
	g.AddEdge("a", END)

	_, err := g.Run(context.Background(), &models.ConversationState{ThreadID: "t1"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodeDecodeState_RoundTrips(t *testing.T) {
	state := &models.ConversationState{
		ThreadID: "t1",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
		Mode:     "direct",
	}
	snapshot, err := EncodeState(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeState(snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.ThreadID != "t1" || decoded.Mode != "direct" || len(decoded.Messages) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}
