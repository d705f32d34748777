package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := crawlerPagesTotal
	Init()
	require.Same(t, first, crawlerPagesTotal)
}

func TestObservers(t *testing.T) {
	Init()
	before := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues(OutcomeCached))
	ObservePage(OutcomeCached)
	require.InDelta(t, before+1, testutil.ToFloat64(crawlerPagesTotal.WithLabelValues(OutcomeCached)), 0.001)

	hitsBefore := testutil.ToFloat64(crawlerCacheLookupsTotal.WithLabelValues("hit"))
	ObserveCacheLookup("hit")
	require.InDelta(t, hitsBefore+1, testutil.ToFloat64(crawlerCacheLookupsTotal.WithLabelValues("hit")), 0.001)

	discoveredBefore := testutil.ToFloat64(crawlerLinksDiscoveredTotal)
	ObserveLinks(3, 1)
	require.InDelta(t, discoveredBefore+3, testutil.ToFloat64(crawlerLinksDiscoveredTotal), 0.001)

	SetFrontier(7, 2)
	require.InDelta(t, 7, testutil.ToFloat64(crawlerFrontierDepth), 0.001)
	require.InDelta(t, 2, testutil.ToFloat64(crawlerVisited), 0.001)

	ObserveFetch(true, 150*time.Millisecond)
	require.Positive(t, testutil.CollectAndCount(crawlerFetchDurationSeconds))
}

func TestWriteTextfile(t *testing.T) {
	ObservePage(OutcomeFetched)
	path := filepath.Join(t.TempDir(), "newscrawler.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path) // #nosec G304 -- test temp dir.
	require.NoError(t, err)
	require.Contains(t, string(data), "newscrawler_pages_total")
}
