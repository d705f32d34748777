package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

type fakeProgress struct {
	progress crawler.Progress
}

func (f fakeProgress) Snapshot() crawler.Progress { return f.progress }

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(nil, zap.NewNop()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerReadyzAndStatusWithoutCrawl(t *testing.T) {
	t.Parallel()

	handler := NewServer(nil, nil).Handler()
	for _, path := range []string{"/readyz", "/v1/status"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	progress := crawler.Progress{
		RunID:        "run-1",
		Seed:         "https://merolagani.com/NewsDetail.aspx?newsID=114689",
		TargetDomain: "merolagani.com",
		Visited:      3,
		Pending:      7,
		WithContent:  2,
		StartedAt:    time.Unix(1700000000, 0).UTC(),
	}
	rec := httptest.NewRecorder()
	NewServer(fakeProgress{progress: progress}, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got crawler.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, progress, got)
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	handler := NewServer(nil, nil).Handler()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(panicProgress{}, nil).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicProgress struct{}

func (panicProgress) Snapshot() crawler.Progress { panic("boom") }

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
