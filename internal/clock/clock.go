package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source and scheduler used by the progress engine and the poller.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// Sleep blocks for d or until the context is done.
	Sleep(ctx context.Context, d time.Duration) error
	// Every calls fn on every interval until the returned stop func is called.
	// Once stop returns no new call to fn is started, a call already running
	// is not interrupted.
	Every(interval time.Duration, fn func()) (stop func())
}

// Real is the wall clock implementation.
var Real Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (realClock) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			// Stop could have been called while we were waiting for the tick.
			select {
			case <-done:
				return
			default:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
