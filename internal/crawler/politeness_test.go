package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Sleep(ctx, 5*time.Second)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepWaitsForDelay(t *testing.T) {
	start := time.Now()
	Sleep(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	start = time.Now()
	Sleep(context.Background(), -time.Second)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestPauserFunc(t *testing.T) {
	var got time.Duration
	var p Pauser = PauserFunc(func(_ context.Context, d time.Duration) { got = d })
	p.Pause(context.Background(), time.Second)
	assert.Equal(t, time.Second, got)
}
