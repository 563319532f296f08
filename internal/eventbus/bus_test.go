package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

func TestBus_PublishAssignsMonotonicSeq(t *testing.T) {
	b := New(0, 0)
	first := b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})
	second := b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
}

func TestBus_SubscribeReceivesLiveEvents(t *testing.T) {
	b := New(0, 0)
	sub := b.Subscribe("t1", 0)
	defer sub.Close()

	b.Publish(models.Event{ThreadID: "t1", Type: models.EventModelDelta})

	select {
	case ev := <-sub.Events:
		if ev.Type != models.EventModelDelta {
			t.Errorf("type = %v, want model.delta", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_SubscribeReplaysFromLastEventID(t *testing.T) {
	b := New(0, 0)
	for i := 0; i < 5; i++ {
		b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})
	}

	sub := b.Subscribe("t1", 3)
	defer sub.Close()

	var got []uint64
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events:
			got = append(got, ev.Seq)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for replay")
		}
	}
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("replayed seqs = %v, want [4 5]", got)
	}
}

func TestBus_RingBufferBounded(t *testing.T) {
	b := New(3, 0)
	for i := 0; i < 10; i++ {
		b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})
	}

	sub := b.Subscribe("t1", 0)
	defer sub.Close()

	var got []uint64
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.Events:
			got = append(got, ev.Seq)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
	if len(got) != 3 || got[0] != 8 || got[2] != 10 {
		t.Fatalf("replayed seqs = %v, want last 3 of 10 (8, 9, 10)", got)
	}
}

func TestBus_SlowSubscriberDropsWithoutBlockingOthers(t *testing.T) {
	b := New(0, 1)
	slow := b.Subscribe("t1", 0)
	defer slow.Close()
	fast := b.Subscribe("t1", 0)
	defer fast.Close()

	count := make(chan int, 1)
	go func() {
		n := 0
		for range fast.Events {
			n++
			if n == 5 {
				count <- n
				return
			}
		}
	}()

	// Never drain slow: its backlog (size 1) fills and the rest are
	// dropped for it, but neither Publish nor the fast subscriber is
	// affected since fast is drained concurrently.
	for i := 0; i < 5; i++ {
		b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})
	}

	select {
	case n := <-count:
		if n != 5 {
			t.Fatalf("fast subscriber got %d events, want 5", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fast subscriber to receive all events")
	}
}

func TestBus_Forget(t *testing.T) {
	b := New(0, 0)
	sub := b.Subscribe("t1", 0)
	b.Publish(models.Event{ThreadID: "t1", Type: models.EventStatus})

	b.Forget("t1")

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected channel closed after Forget")
	}
	if b.Latest("t1") != 0 {
		t.Error("expected thread state reset after Forget")
	}
}

func TestSubscribeWithKeepalive(t *testing.T) {
	b := New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.SubscribeWithKeepalive(ctx, "t1", 0)
	defer sub.Close()

	b.Publish(models.Event{ThreadID: "t1", Type: models.EventModelDelta})

	select {
	case ev := <-sub.Events:
		if ev.Type != models.EventModelDelta {
			t.Errorf("type = %v, want model.delta", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for real event through keepalive wrapper")
	}
}
