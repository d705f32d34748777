package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

func TestPublisherStoresPayloads(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), crawler.ArticleEvent{URL: "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	require.Len(t, pub.Payloads(), 2)
	events := pub.Events()
	require.Len(t, events, 1)
	require.Equal(t, "a", events[0].URL)

	payloads := pub.Payloads()
	payloads[0] = "modified"
	require.IsType(t, crawler.ArticleEvent{}, pub.Payloads()[0], "Payloads returns a copy")
}
