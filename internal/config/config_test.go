package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSeedURL, cfg.Crawl.SeedURL)
	assert.Equal(t, crawler.ModeMarkdown, cfg.Crawl.Mode)
	assert.Equal(t, time.Second, cfg.Crawl.Delay)
	assert.Equal(t, "NewsDetail.aspx", cfg.Crawl.PathMarker)
	assert.Equal(t, "newsID", cfg.Crawl.QueryKey)
	assert.Equal(t, 5, cfg.Render.MinWordThreshold)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.False(t, cfg.Headless.Enabled)
	assert.Equal(t, 2048, cfg.Headless.PromotionThreshold)
	assert.Equal(t, 25*time.Second, cfg.Headless.NavigationTimeout)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "data", cfg.Storage.Root)
	assert.Equal(t, int64(1000), cfg.LLM.MaxTokens)
	assert.Equal(t, "articles", cfg.Index.Table)
	assert.Empty(t, cfg.Index.DSN)
	assert.Empty(t, cfg.Metrics.ListenAddr)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	path := writeConfig(t, `
crawl:
  seed_url: https://news.example/story.php?id=1
  mode: structured
  delay: 250ms
  path_marker: story.php
  query_key: id
render:
  min_word_threshold: 8
headless:
  enabled: true
  max_parallel: 2
  nav_timeout: 10s
storage:
  backend: gcs
  gcs_bucket: articles-bucket
llm:
  api_key: file-key
  model: claude-sonnet-4-5
index:
  dsn: postgres://localhost/news
  max_conns: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://news.example/story.php?id=1", cfg.Crawl.SeedURL)
	assert.Equal(t, crawler.ModeStructured, cfg.Crawl.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.Delay)
	assert.Equal(t, "story.php", cfg.Crawl.PathMarker)
	assert.Equal(t, "id", cfg.Crawl.QueryKey)
	assert.Equal(t, 8, cfg.Render.MinWordThreshold)
	assert.True(t, cfg.Headless.Enabled)
	assert.Equal(t, 2, cfg.Headless.MaxParallel)
	assert.Equal(t, 10*time.Second, cfg.Headless.NavigationTimeout)
	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "articles-bucket", cfg.Storage.GCSBucket)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, "postgres://localhost/news", cfg.Index.DSN)
	assert.Equal(t, int32(8), cfg.Index.MaxConns)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("NEWSCRAWLER_CRAWL_DELAY", "3s")
	t.Setenv("NEWSCRAWLER_STORAGE_ROOT", "/tmp/articles")
	t.Setenv("NEWSCRAWLER_METRICS_LISTEN_ADDR", ":9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Crawl.Delay)
	assert.Equal(t, "/tmp/articles", cfg.Storage.Root)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestLoadFallsBackToAnthropicAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("NEWSCRAWLER_CRAWL_MODE", "structured")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "bad mode", mutate: func(c *Config) { c.Crawl.Mode = "html" }, errMsg: "crawl.mode"},
		{name: "negative delay", mutate: func(c *Config) { c.Crawl.Delay = -time.Second }, errMsg: "crawl.delay"},
		{name: "no pattern", mutate: func(c *Config) { c.Crawl.QueryKey = "" }, errMsg: "crawl.path_marker"},
		{name: "negative threshold", mutate: func(c *Config) { c.Render.MinWordThreshold = -1 }, errMsg: "min_word_threshold"},
		{name: "zero timeout", mutate: func(c *Config) { c.Fetch.Timeout = 0 }, errMsg: "fetch.timeout"},
		{
			name: "headless without slots",
			mutate: func(c *Config) {
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
			},
			errMsg: "headless.max_parallel",
		},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, errMsg: "storage.backend"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = BackendGCS }, errMsg: "gcs_bucket"},
		{name: "local without root", mutate: func(c *Config) { c.Storage.Root = "" }, errMsg: "storage.root"},
		{name: "structured without key", mutate: func(c *Config) { c.Crawl.Mode = crawler.ModeStructured }, errMsg: "llm.api_key"},
		{name: "half pubsub", mutate: func(c *Config) { c.PubSub.Topic = "articles" }, errMsg: "pubsub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	require.NoError(t, base.Validate())
}

func TestValidateLeavesSeedToCrawler(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)

	// A seed without a domain is reported by the crawler, not rejected here.
	cfg.Crawl.SeedURL = "   "
	require.NoError(t, cfg.Validate())
}
