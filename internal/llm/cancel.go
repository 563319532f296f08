package llm

import "context"

// watchCancel spawns a goroutine that calls close as soon as ctx is done,
// so a streaming adapter's upstream connection tears down promptly instead
// of waiting for the next read to notice cancellation. The returned stop
// func must be called once the stream ends normally, to release the
// goroutine without it ever observing ctx.Done().
func watchCancel(ctx context.Context, close func()) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close()
		case <-done:
		}
	}()
	var closed bool
	return func() {
		if !closed {
			closed = true
			close1(done)
		}
	}
}

func close1(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}
