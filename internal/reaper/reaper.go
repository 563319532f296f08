// Package reaper runs a periodic background sweep that bounds the memory
// and storage a long-running orchestration engine accumulates: old
// checkpoint versions beyond a thread's retained window, and event-bus
// state for threads nothing has touched in a while.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/config"
	"github.com/weaver-ai/weaver/internal/eventbus"
)

// ThreadSource reports the thread IDs a reaper sweep should consider for
// checkpoint pruning. turnctl supplies this from its session registry.
type ThreadSource interface {
	ThreadIDs() []string
}

// ThreadSourceFunc adapts a function to a ThreadSource.
type ThreadSourceFunc func() []string

func (f ThreadSourceFunc) ThreadIDs() []string { return f() }

// Reaper periodically prunes checkpoint history and forgets idle
// event-bus threads.
type Reaper struct {
	cfg         config.ReaperConfig
	schedule    schedule
	checkpoints checkpoint.Store
	bus         *eventbus.Bus
	threads     ThreadSource
	history     History
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithLogger overrides the reaper's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHistory overrides the sweep-history recorder. Defaults to an
// in-memory history capped at 200 runs.
func WithHistory(history History) Option {
	return func(r *Reaper) {
		if history != nil {
			r.history = history
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Reaper from config. threads may be nil, in which case
// checkpoint pruning is skipped (there is nothing to enumerate).
func New(cfg config.ReaperConfig, checkpoints checkpoint.Store, bus *eventbus.Bus, threads ThreadSource, opts ...Option) (*Reaper, error) {
	sched, err := newSchedule(cfg)
	if err != nil {
		return nil, err
	}
	r := &Reaper{
		cfg:         cfg,
		schedule:    sched,
		checkpoints: checkpoints,
		bus:         bus,
		threads:     threads,
		history:     NewMemoryHistory(200),
		logger:      slog.Default().With("component", "reaper"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start runs sweeps on the configured schedule until ctx is cancelled.
// A no-op if the reaper is disabled in config.
func (r *Reaper) Start(ctx context.Context) error {
	if r == nil || !r.cfg.Enabled {
		return nil
	}
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next, err := r.schedule.next(r.now())
			if err != nil {
				r.logger.Error("reaper schedule error", "error", err)
				return
			}
			wait := next.Sub(r.now())
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, err := r.RunOnce(ctx); err != nil {
					r.logger.Warn("reaper sweep failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// Stop waits for the sweep loop to exit.
func (r *Reaper) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single sweep immediately and records its outcome.
func (r *Reaper) RunOnce(ctx context.Context) (*Run, error) {
	if r == nil {
		return nil, nil
	}
	run := &Run{ID: uuid.NewString(), Status: RunRunning, StartedAt: r.now()}

	prunedCheckpoints, err := r.sweepCheckpoints(ctx)
	run.CheckpointsPruned = prunedCheckpoints
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	}

	forgotten := r.sweepIdleThreads()
	run.ThreadsForgotten = forgotten

	run.CompletedAt = r.now()
	run.Duration = run.CompletedAt.Sub(run.StartedAt)
	if run.Status != RunFailed {
		run.Status = RunSucceeded
	}

	if r.history != nil {
		if recErr := r.history.Record(ctx, run); recErr != nil {
			r.logger.Warn("reaper history record failed", "error", recErr)
		}
	}
	r.logger.Info("reaper sweep complete",
		"checkpoints_pruned", run.CheckpointsPruned,
		"threads_forgotten", run.ThreadsForgotten,
		"status", run.Status)

	return run, err
}

func (r *Reaper) sweepCheckpoints(ctx context.Context) (int, error) {
	if r.checkpoints == nil || r.threads == nil {
		return 0, nil
	}
	total := 0
	var firstErr error
	for _, threadID := range r.threads.ThreadIDs() {
		n, err := r.checkpoints.Prune(ctx, threadID, r.cfg.CheckpointKeepVersions)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

func (r *Reaper) sweepIdleThreads() int {
	if r.bus == nil {
		return 0
	}
	cutoff := r.now().Add(-r.cfg.EventBusIdleTimeout)
	idle := r.bus.IdleThreads(cutoff)
	for _, id := range idle {
		r.bus.Forget(id)
	}
	return len(idle)
}

// History returns the reaper's sweep-history recorder, for a status
// endpoint to list recent runs.
func (r *Reaper) History() History {
	if r == nil {
		return nil
	}
	return r.history
}
