package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier("a")
	require.True(t, f.Enqueue("b"))
	require.True(t, f.Enqueue("c"))
	require.Equal(t, []string{"a", "b", "c"}, f.Pending())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := f.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := f.Pop()
	require.False(t, ok)
	require.Zero(t, f.Len())
}

func TestFrontierEnqueueGuards(t *testing.T) {
	f := NewFrontier("seed")
	require.False(t, f.Enqueue("seed"), "already pending")
	require.False(t, f.Enqueue(""))

	current, _ := f.Pop()
	f.MarkVisited(current)
	require.True(t, f.Visited("seed"))
	require.False(t, f.Enqueue("seed"), "already visited")
	require.Equal(t, 1, f.VisitedCount())

	require.True(t, f.Enqueue("next"))
	require.False(t, f.Enqueue("next"))
	require.Equal(t, 1, f.Len())
}

func TestFrontierPendingIsACopy(t *testing.T) {
	f := NewFrontier("a")
	snapshot := f.Pending()
	snapshot[0] = "mutated"
	got, _ := f.Pop()
	require.Equal(t, "a", got)
}
