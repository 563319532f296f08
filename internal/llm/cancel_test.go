package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchCancel_CallsCloseOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var closed atomic.Bool

	stop := watchCancel(ctx, func() { closed.Store(true) })
	defer stop()

	cancel()
	deadline := time.After(time.Second)
	for !closed.Load() {
		select {
		case <-deadline:
			t.Fatal("close was not called after context cancellation")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestWatchCancel_StopPreventsCloseAfterNormalCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var closed atomic.Bool

	stop := watchCancel(ctx, func() { closed.Store(true) })
	stop()
	cancel()

	time.Sleep(10 * time.Millisecond)
	if closed.Load() {
		t.Error("close was called even though stop() ran before cancellation")
	}
}
