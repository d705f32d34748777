// Package app wires configuration into a runnable crawl and owns the
// long-lived clients (storage, Postgres, Pub/Sub, headless browser) it needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/api"
	"github.com/JakeFAU/newscrawler/internal/cache"
	"github.com/JakeFAU/newscrawler/internal/config"
	"github.com/JakeFAU/newscrawler/internal/crawler"
	"github.com/JakeFAU/newscrawler/internal/extract"
	collyfetcher "github.com/JakeFAU/newscrawler/internal/fetcher/colly"
	"github.com/JakeFAU/newscrawler/internal/fetcher/headless"
	"github.com/JakeFAU/newscrawler/internal/hash/md5"
	"github.com/JakeFAU/newscrawler/internal/headless/detector"
	"github.com/JakeFAU/newscrawler/internal/id/uuid"
	"github.com/JakeFAU/newscrawler/internal/index/postgres"
	"github.com/JakeFAU/newscrawler/internal/metrics"
	"github.com/JakeFAU/newscrawler/internal/pagefetch"
	"github.com/JakeFAU/newscrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/newscrawler/internal/render"
	"github.com/JakeFAU/newscrawler/internal/storage"
	"github.com/JakeFAU/newscrawler/internal/storage/gcs"
	"github.com/JakeFAU/newscrawler/internal/storage/local"
	"github.com/JakeFAU/newscrawler/internal/urlcanon"
)

// RunRecorder stores the start and outcome of each crawl run.
type RunRecorder interface {
	StartRun(ctx context.Context, runID, seed string, startedAt time.Time) error
	FinishRun(ctx context.Context, summary crawler.Summary, finishedAt time.Time, runErr error) error
}

// Option overrides a component that would otherwise be built from config.
type Option func(*overrides)

type overrides struct {
	store     storage.Store
	source    crawler.PageSource
	publisher crawler.Publisher
	index     crawler.ArticleIndex
	runs      RunRecorder
	ids       crawler.IDGenerator
}

// WithStore replaces the configured storage backend.
func WithStore(store storage.Store) Option {
	return func(o *overrides) { o.store = store }
}

// WithPageSource replaces the fetch/render pipeline.
func WithPageSource(source crawler.PageSource) Option {
	return func(o *overrides) { o.source = source }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(pub crawler.Publisher) Option {
	return func(o *overrides) { o.publisher = pub }
}

// WithIndex replaces the Postgres index. runs may be nil.
func WithIndex(idx crawler.ArticleIndex, runs RunRecorder) Option {
	return func(o *overrides) {
		o.index = idx
		o.runs = runs
	}
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(ids crawler.IDGenerator) Option {
	return func(o *overrides) { o.ids = ids }
}

// App holds one configured crawl run and the services it depends on.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	scheduler *crawler.Scheduler
	runs      RunRecorder
	server    *api.Server
	closers   []func() error
}

// New builds every component named by cfg. The returned error wraps
// crawler.ErrInvalidSeed when no domain can be derived from the seed URL.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	domain, err := crawler.TargetDomain(cfg.Crawl.SeedURL)
	if err != nil {
		return nil, err
	}

	ids := o.ids
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	runID, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
		runs:   o.runs,
	}
	if err := a.build(ctx, domain, o); err != nil {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, domain string, o overrides) error {
	store := o.store
	if store == nil {
		var err error
		if store, err = a.buildStore(ctx); err != nil {
			return err
		}
	}

	source := o.source
	if source == nil {
		var err error
		if source, err = a.buildSource(); err != nil {
			return err
		}
	}

	procOpts := []crawler.ProcessorOption{crawler.WithHasher(md5.New())}
	idx := o.index
	if idx == nil && a.cfg.Index.DSN != "" {
		pg, err := postgres.New(ctx, a.cfg.Index)
		if err != nil {
			return fmt.Errorf("init article index: %w", err)
		}
		a.onClose(func() error { pg.Close(); return nil })
		idx, a.runs = pg, pg
		a.logger.Info("article index enabled", zap.String("table", a.cfg.Index.Table))
	}
	if idx != nil {
		procOpts = append(procOpts, crawler.WithIndex(idx))
	}

	pub := o.publisher
	if pub == nil && a.cfg.PubSub.Topic != "" {
		ps, err := pubsub.New(ctx, a.cfg.PubSub)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		a.onClose(ps.Close)
		pub = ps
		a.logger.Info("article notifications enabled", zap.String("topic", a.cfg.PubSub.Topic))
	}
	if pub != nil {
		procOpts = append(procOpts, crawler.WithPublisher(pub))
	}

	processor := crawler.NewProcessor(crawler.ProcessorConfig{
		TargetDomain:     domain,
		Mode:             a.cfg.Crawl.Mode,
		MinWordThreshold: a.cfg.Render.MinWordThreshold,
		RunID:            a.runID,
	}, source, cache.New(store, "", a.logger), a.logger, procOpts...)

	scheduler, err := crawler.NewScheduler(crawler.SchedulerConfig{
		Seed:         a.cfg.Crawl.SeedURL,
		TargetDomain: domain,
		Delay:        a.cfg.Crawl.Delay,
		RunID:        a.runID,
	}, processor, urlcanon.NewFilter(a.cfg.Crawl.Pattern, a.logger.Named("urlcanon")), a.logger)
	if err != nil {
		return err
	}
	a.scheduler = scheduler

	if a.cfg.Metrics.ListenAddr != "" {
		a.server = api.NewServer(scheduler, a.logger)
	}
	return nil
}

func (a *App) buildStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(client.Close)
		a.logger.Info("using gcs storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Root})
	default:
		a.logger.Info("using local storage", zap.String("root", a.cfg.Storage.Root))
		return local.New(local.Config{BaseDir: a.cfg.Storage.Root})
	}
}

func (a *App) buildSource() (crawler.PageSource, error) {
	var opts []pagefetch.Option
	opts = append(opts, pagefetch.WithRetryPolicy(crawler.NewExponentialRetryPolicy()))

	if a.cfg.Headless.Enabled {
		hcfg := a.cfg.Headless.Config
		if hcfg.UserAgent == "" {
			hcfg.UserAgent = a.cfg.Fetch.UserAgent
		}
		browser, err := headless.New(hcfg)
		if err != nil {
			a.logger.Warn("headless fetcher init failed, continuing without it", zap.Error(err))
		} else {
			a.onClose(browser.Close)
			opts = append(opts, pagefetch.WithHeadless(browser, detector.NewHeuristic(a.cfg.Headless.PromotionThreshold)))
		}
	}

	if a.cfg.Crawl.Mode == crawler.ModeStructured {
		extractor, err := extract.New(a.cfg.LLM, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init extractor: %w", err)
		}
		opts = append(opts, pagefetch.WithExtractor(extractor))
	}

	return pagefetch.New(collyfetcher.New(a.cfg.Fetch), render.New(a.logger), a.logger, opts...), nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// RunID returns the identifier of this crawl run.
func (a *App) RunID() string {
	return a.runID
}

// Scheduler exposes the crawl loop, mainly for tests.
func (a *App) Scheduler() *crawler.Scheduler {
	return a.scheduler
}

// Run executes the crawl until the frontier drains or ctx is cancelled.
// The status server, run record and metrics textfile are handled around it.
func (a *App) Run(ctx context.Context) (crawler.Summary, error) {
	serverDone := make(chan struct{})
	serverCtx, stopServer := context.WithCancel(ctx)
	defer func() {
		stopServer()
		<-serverDone
	}()
	if a.server != nil {
		go func() {
			defer close(serverDone)
			if err := a.server.ListenAndServe(serverCtx, a.cfg.Metrics.ListenAddr); err != nil {
				a.logger.Error("status server stopped", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}

	// Run bookkeeping must land even when the crawl itself was interrupted.
	bookkeeping := context.WithoutCancel(ctx)
	if a.runs != nil {
		if err := a.runs.StartRun(bookkeeping, a.runID, a.cfg.Crawl.SeedURL, time.Now().UTC()); err != nil {
			a.logger.Warn("record run start failed", zap.Error(err))
		}
	}

	summary, runErr := a.scheduler.Run(ctx)

	if a.runs != nil {
		if err := a.runs.FinishRun(bookkeeping, summary, time.Now().UTC(), runErr); err != nil {
			a.logger.Warn("record run finish failed", zap.Error(err))
		}
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("write metrics textfile failed", zap.String("path", path), zap.Error(err))
		}
	}
	return summary, runErr
}

// Close releases every client opened by New, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
