// Package eventbus fans out per-thread turn events to SSE subscribers,
// keeping a bounded replay buffer so a client reconnecting with a
// Last-Event-ID doesn't lose events it missed mid-disconnect.
package eventbus

import (
	"sync"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

const (
	// DefaultRingSize bounds how many past events a thread keeps for replay.
	DefaultRingSize = 512

	// DefaultSubscriberBacklog bounds each subscriber's undelivered queue
	// before events are dropped for that subscriber (never for others).
	DefaultSubscriberBacklog = 64

	// KeepaliveInterval is how often an idle subscriber receives a
	// synthetic keepalive event, so intermediary proxies don't time out
	// the SSE connection.
	KeepaliveInterval = 15 * time.Second
)

// Bus is a per-thread event fan-out with bounded replay. Safe for
// concurrent use by multiple publishers and subscribers.
type Bus struct {
	mu       sync.Mutex
	ringSize int
	backlog  int
	threads  map[string]*threadState
}

type threadState struct {
	mu           sync.Mutex
	seq          uint64
	ring         []models.Event // ring buffer, oldest-to-newest by Seq once full
	subs         map[*subscriber]struct{}
	lastActivity time.Time
}

type subscriber struct {
	ch     chan models.Event
	closed bool
}

// New returns a Bus with the given ring size and per-subscriber backlog.
// A zero or negative value picks the package default.
func New(ringSize, subscriberBacklog int) *Bus {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	if subscriberBacklog <= 0 {
		subscriberBacklog = DefaultSubscriberBacklog
	}
	return &Bus{ringSize: ringSize, backlog: subscriberBacklog, threads: make(map[string]*threadState)}
}

func (b *Bus) stateFor(threadID string) *threadState {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.threads[threadID]
	if !ok {
		ts = &threadState{subs: make(map[*subscriber]struct{}), lastActivity: time.Now()}
		b.threads[threadID] = ts
	}
	return ts
}

// Publish assigns the next sequence number for ev.ThreadID, records it in
// the replay ring, and fans it out to live subscribers. A slow subscriber
// whose backlog is full has the event dropped for it only.
func (b *Bus) Publish(ev models.Event) models.Event {
	ts := b.stateFor(ev.ThreadID)

	ts.mu.Lock()
	ts.seq++
	ev.Seq = ts.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ts.ring = appendRing(ts.ring, ev, b.ringSize)
	ts.lastActivity = time.Now()
	subs := make([]*subscriber, 0, len(ts.subs))
	for s := range ts.subs {
		subs = append(subs, s)
	}
	ts.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			// backlog full: drop for this subscriber, others unaffected
		}
	}
	return ev
}

func appendRing(ring []models.Event, ev models.Event, max int) []models.Event {
	ring = append(ring, ev)
	if len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}

// Subscription is a live event feed plus a one-shot Close.
type Subscription struct {
	Events <-chan models.Event
	close  func()
}

// Close stops delivery and releases the subscriber slot. Safe to call more
// than once.
func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}

// Subscribe returns a Subscription for threadID. If lastEventID is nonzero,
// any buffered events with Seq > lastEventID are replayed on the channel
// before live events start flowing — the reconnect-with-Last-Event-ID path.
func (b *Bus) Subscribe(threadID string, lastEventID uint64) *Subscription {
	ts := b.stateFor(threadID)
	ch := make(chan models.Event, b.backlog)
	sub := &subscriber{ch: ch}

	ts.mu.Lock()
	var replay []models.Event
	for _, ev := range ts.ring {
		if ev.Seq > lastEventID {
			replay = append(replay, ev)
		}
	}
	ts.subs[sub] = struct{}{}
	ts.lastActivity = time.Now()
	ts.mu.Unlock()

	for _, ev := range replay {
		select {
		case ch <- ev:
		default:
		}
	}

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			ts.mu.Lock()
			delete(ts.subs, sub)
			ts.mu.Unlock()
			close(ch)
		})
	}

	return &Subscription{Events: ch, close: closeFn}
}

// Latest returns the highest sequence number published for threadID.
func (b *Bus) Latest(threadID string) uint64 {
	ts := b.stateFor(threadID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.seq
}

// Forget drops a thread's buffer and disconnects its subscribers, used by
// the reaper once a thread is GC-eligible.
func (b *Bus) Forget(threadID string) {
	b.mu.Lock()
	ts, ok := b.threads[threadID]
	if ok {
		delete(b.threads, threadID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	ts.mu.Lock()
	subs := make([]*subscriber, 0, len(ts.subs))
	for s := range ts.subs {
		subs = append(subs, s)
	}
	ts.subs = make(map[*subscriber]struct{})
	ts.mu.Unlock()
	for _, s := range subs {
		close(s.ch)
	}
}

// ThreadCount reports how many threads currently have buffered state,
// for the reaper's GC sweep to size its work.
func (b *Bus) ThreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.threads)
}

// IdleThreads returns the IDs of threads with no Publish or Subscribe
// activity since before the cutoff, for the reaper to pass to Forget.
func (b *Bus) IdleThreads(cutoff time.Time) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var idle []string
	for id, ts := range b.threads {
		ts.mu.Lock()
		last := ts.lastActivity
		subCount := len(ts.subs)
		ts.mu.Unlock()
		if subCount == 0 && last.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}
