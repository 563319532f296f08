package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/config"
	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/pkg/models"
)

func TestNewSchedule_RequiresCronOrInterval(t *testing.T) {
	if _, err := newSchedule(config.ReaperConfig{}); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}

func TestNewSchedule_Interval(t *testing.T) {
	sched, err := newSchedule(config.ReaperConfig{Interval: time.Minute})
	if err != nil {
		t.Fatalf("newSchedule() error = %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := sched.next(now)
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if !next.Equal(now.Add(time.Minute)) {
		t.Errorf("expected next = %v, got %v", now.Add(time.Minute), next)
	}
}

func TestNewSchedule_InvalidCron(t *testing.T) {
	if _, err := newSchedule(config.ReaperConfig{Cron: "not a cron expr"}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestReaper_RunOnce_PrunesCheckpointsAndForgetsIdleThreads(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()

	for i := 1; i <= 5; i++ {
		cp := &models.Checkpoint{ThreadID: "thread-1", Seq: int64(i)}
		if err := store.Save(ctx, cp); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	bus := eventbus.New(0, 0)
	bus.Publish(models.Event{ThreadID: "idle-thread"})
	time.Sleep(2 * time.Millisecond)

	cfg := config.ReaperConfig{
		Enabled:                true,
		Interval:               time.Minute,
		CheckpointKeepVersions: 2,
		EventBusIdleTimeout:    time.Millisecond,
	}

	threads := ThreadSourceFunc(func() []string { return []string{"thread-1"} })

	r, err := New(cfg, store, bus, threads)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	run, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if run.Status != RunSucceeded {
		t.Errorf("expected status succeeded, got %s", run.Status)
	}
	if run.CheckpointsPruned != 3 {
		t.Errorf("expected 3 checkpoints pruned (keep 2 of 5), got %d", run.CheckpointsPruned)
	}
	if run.ThreadsForgotten != 1 {
		t.Errorf("expected 1 idle thread forgotten, got %d", run.ThreadsForgotten)
	}
	if bus.ThreadCount() != 0 {
		t.Errorf("expected idle thread forgotten from bus, got %d threads remaining", bus.ThreadCount())
	}

	remaining, err := store.List(ctx, "thread-1", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("expected 2 checkpoints remaining, got %d", len(remaining))
	}

	runs, err := r.History().List(ctx, 10)
	if err != nil {
		t.Fatalf("History().List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(runs))
	}
}

func TestReaper_Disabled_StartIsNoop(t *testing.T) {
	cfg := config.ReaperConfig{Enabled: false, Interval: time.Minute}
	r, err := New(cfg, checkpoint.NewMemoryStore(), eventbus.New(0, 0), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
