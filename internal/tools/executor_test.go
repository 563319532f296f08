package tools

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/internal/tools/policy"
	"github.com/weaver-ai/weaver/internal/werrors"
	"github.com/weaver-ai/weaver/pkg/models"
)

func newTestRegistry(t *testing.T, handlers map[string]Handler) *Registry {
	t.Helper()
	r := NewRegistry()
	for name, h := range handlers {
		if err := r.Register(models.ToolDescriptor{Name: name}, h); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	r.Freeze()
	return r
}

func TestExecutor_ExecuteConcurrently_RespectsLimit(t *testing.T) {
	var concurrent, max int32
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		n := atomic.AddInt32(&concurrent, 1)
		defer atomic.AddInt32(&concurrent, -1)
		for {
			cur := atomic.LoadInt32(&max)
			if n <= cur || atomic.CompareAndSwapInt32(&max, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return "done", nil
	}

	r := newTestRegistry(t, map[string]Handler{"slow": handler})
	exec := NewExecutor(r, nil, ExecConfig{Concurrency: 2, PerToolTimeout: time.Second, MaxAttempts: 1})

	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = Call{ToolCall: models.ToolCall{ID: "c", Name: "slow"}}
	}
	exec.ExecuteConcurrently(context.Background(), "thread", calls, nil)

	if max > 2 {
		t.Errorf("expected at most 2 concurrent executions, saw %d", max)
	}
}

func TestExecutor_UnknownToolIsValidationError(t *testing.T) {
	r := newTestRegistry(t, nil)
	exec := NewExecutor(r, nil, DefaultExecConfig())

	results := exec.ExecuteSequentially(context.Background(), "thread", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "missing"}},
	}, nil)

	if !results[0].Result.IsError {
		t.Fatal("expected unknown tool to error")
	}
}

func TestExecutor_PolicyDenyBlocksCall(t *testing.T) {
	r := newTestRegistry(t, map[string]Handler{"exec": echoHandler})
	resolver := policy.NewResolver()
	exec := NewExecutor(r, resolver, DefaultExecConfig())

	denyAll := &policy.Policy{Profile: policy.ProfileFull, Deny: []string{"exec"}}
	results := exec.ExecuteSequentially(context.Background(), "thread", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "exec", Input: json.RawMessage(`{}`)}, Policy: denyAll},
	}, nil)

	if !results[0].Result.IsError {
		t.Fatal("expected denied tool call to error")
	}
}

func TestExecutor_RetriesUpstreamError(t *testing.T) {
	var attempts int32
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return "", werrors.Upstreamf("test", "transient failure")
		}
		return "ok", nil
	}
	r := newTestRegistry(t, map[string]Handler{"flaky": handler})
	exec := NewExecutor(r, nil, ExecConfig{MaxAttempts: 3, PerToolTimeout: time.Second})

	results := exec.ExecuteSequentially(context.Background(), "thread", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "flaky", Input: json.RawMessage(`{}`)}},
	}, nil)

	if results[0].Result.IsError {
		t.Fatalf("expected eventual success, got error: %s", results[0].Result.Content)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestExecutor_NonRetriableErrorStopsImmediately(t *testing.T) {
	var attempts int32
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", werrors.Validationf("bad input")
	}
	r := newTestRegistry(t, map[string]Handler{"bad": handler})
	exec := NewExecutor(r, nil, ExecConfig{MaxAttempts: 3, PerToolTimeout: time.Second})

	exec.ExecuteSequentially(context.Background(), "thread", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "bad", Input: json.RawMessage(`{}`)}},
	}, nil)

	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected a non-retriable error to stop after 1 attempt, got %d", attempts)
	}
}

func TestExecutor_TimeoutDiscardsSlowHandler(t *testing.T) {
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		<-ctx.Done()
		return "late", nil
	}
	r := newTestRegistry(t, map[string]Handler{"slow": handler})
	exec := NewExecutor(r, nil, ExecConfig{MaxAttempts: 1, PerToolTimeout: 10 * time.Millisecond})

	start := time.Now()
	results := exec.ExecuteSequentially(context.Background(), "thread", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "slow", Input: json.RawMessage(`{}`)}},
	}, nil)

	if !results[0].Result.IsError {
		t.Fatal("expected timeout to produce an error result")
	}
	if time.Since(start) > time.Second {
		t.Error("executor took too long to return after timeout")
	}
}

func TestExecutor_EmitsLifecycleEvents(t *testing.T) {
	r := newTestRegistry(t, map[string]Handler{"ping": echoHandler})
	exec := NewExecutor(r, nil, DefaultExecConfig())

	var events []models.Event
	sink := func(e models.Event) { events = append(events, e) }

	exec.ExecuteSequentially(context.Background(), "thread-1", []Call{
		{ToolCall: models.ToolCall{ID: "c1", Name: "ping", Input: json.RawMessage(`{}`)}},
	}, sink)

	if len(events) != 2 {
		t.Fatalf("expected started + completed events, got %d", len(events))
	}
	if events[0].Type != models.EventToolStarted {
		t.Errorf("expected first event to be tool.started, got %s", events[0].Type)
	}
	if events[1].Type != models.EventToolCompleted {
		t.Errorf("expected second event to be tool.completed, got %s", events[1].Type)
	}
}
