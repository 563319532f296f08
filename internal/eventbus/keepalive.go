package eventbus

import (
	"context"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

// SubscribeWithKeepalive wraps Subscribe, interleaving a synthetic
// EventStatus "keepalive" event on the returned channel whenever no real
// event has flowed for KeepaliveInterval, so an SSE proxy sitting between
// the server and the client doesn't time out an idle connection. Keepalive
// events carry Seq 0 and are never stored in the replay ring.
func (b *Bus) SubscribeWithKeepalive(ctx context.Context, threadID string, lastEventID uint64) *Subscription {
	inner := b.Subscribe(threadID, lastEventID)
	out := make(chan models.Event, b.backlog)

	go func() {
		defer close(out)
		ticker := time.NewTicker(KeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-inner.Events:
				if !ok {
					return
				}
				ticker.Reset(KeepaliveInterval)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				keepalive := models.Event{
					ThreadID: threadID,
					Type:     models.EventStatus,
					Time:     time.Now(),
					Status:   &models.StatusEventPayload{Message: "keepalive"},
				}
				select {
				case out <- keepalive:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription{Events: out, close: inner.Close}
}
