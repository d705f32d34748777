package crawler

import (
	"context"
	"time"
)

// Pauser waits between crawl iterations.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// PauserFunc adapts a plain function to Pauser.
type PauserFunc func(ctx context.Context, delay time.Duration)

// Pause calls f.
func (f PauserFunc) Pause(ctx context.Context, delay time.Duration) { f(ctx, delay) }

// Sleep blocks for delay or until ctx is done. Non-positive delays return
// immediately.
func Sleep(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	t := time.NewTimer(delay)
	select {
	case <-t.C:
	case <-ctx.Done():
		t.Stop()
	}
}
