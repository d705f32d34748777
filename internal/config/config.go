// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/newscrawler/internal/crawler"
	"github.com/JakeFAU/newscrawler/internal/extract"
	collyfetcher "github.com/JakeFAU/newscrawler/internal/fetcher/colly"
	"github.com/JakeFAU/newscrawler/internal/fetcher/headless"
	"github.com/JakeFAU/newscrawler/internal/index/postgres"
	"github.com/JakeFAU/newscrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/newscrawler/internal/urlcanon"
)

// DefaultSeedURL is the article the crawl starts from unless overridden.
const DefaultSeedURL = "https://merolagani.com/NewsDetail.aspx?newsID=114689"

// EnvPrefix prefixes every environment override, e.g. NEWSCRAWLER_CRAWL_DELAY.
const EnvPrefix = "NEWSCRAWLER"

// Storage backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawl    CrawlConfig         `mapstructure:"crawl"`
	Render   RenderConfig        `mapstructure:"render"`
	Fetch    collyfetcher.Config `mapstructure:"fetch"`
	Headless HeadlessConfig      `mapstructure:"headless"`
	Storage  StorageConfig       `mapstructure:"storage"`
	LLM      extract.Config      `mapstructure:"llm"`
	Index    postgres.Config     `mapstructure:"index"`
	PubSub   pubsub.Config       `mapstructure:"pubsub"`
	Metrics  MetricsConfig       `mapstructure:"metrics"`
	Logging  LoggingConfig       `mapstructure:"logging"`
}

// CrawlConfig controls the BFS run.
type CrawlConfig struct {
	SeedURL          string        `mapstructure:"seed_url"`
	Mode             crawler.Mode  `mapstructure:"mode"`
	Delay            time.Duration `mapstructure:"delay"`
	urlcanon.Pattern `mapstructure:",squash"`
}

// RenderConfig controls markdown pruning.
type RenderConfig struct {
	MinWordThreshold int `mapstructure:"min_word_threshold"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	PromotionThreshold int  `mapstructure:"promotion_threshold"`
	headless.Config    `mapstructure:",squash"`
}

// StorageConfig selects where article files are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Root      string `mapstructure:"root"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// MetricsConfig enables the status server and the textfile export.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Textfile   string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from .env, an optional config file and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.seed_url", DefaultSeedURL)
	v.SetDefault("crawl.mode", string(crawler.ModeMarkdown))
	v.SetDefault("crawl.delay", time.Second)
	v.SetDefault("crawl.path_marker", urlcanon.DefaultPattern.PathMarker)
	v.SetDefault("crawl.query_key", urlcanon.DefaultPattern.QueryKey)
	v.SetDefault("render.min_word_threshold", 5)
	v.SetDefault("fetch.user_agent", "newscrawler/0.1")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", 25*time.Second)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.user_agent", "")
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("headless.settle", 500*time.Millisecond)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.instruction", "Extract the news data from the markdown content")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("index.dsn", "")
	v.SetDefault("index.table", "articles")
	v.SetDefault("index.run_table", "crawl_runs")
	v.SetDefault("index.max_conns", 4)
	v.SetDefault("index.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !c.Crawl.Mode.Valid() {
		return fmt.Errorf("crawl.mode must be %q or %q, got %q", crawler.ModeMarkdown, crawler.ModeStructured, c.Crawl.Mode)
	}
	if c.Crawl.Delay < 0 {
		return fmt.Errorf("crawl.delay must be >= 0")
	}
	if c.Crawl.PathMarker == "" || c.Crawl.QueryKey == "" {
		return fmt.Errorf("crawl.path_marker and crawl.query_key are required")
	}
	if c.Render.MinWordThreshold < 0 {
		return fmt.Errorf("render.min_word_threshold must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendGCS, c.Storage.Backend)
	}
	if c.Crawl.Mode == crawler.ModeStructured && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key (or ANTHROPIC_API_KEY) is required in structured mode")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}
