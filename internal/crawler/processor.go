package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/newscrawler/internal/metrics"
	"github.com/JakeFAU/newscrawler/internal/urlcanon"
)

// ProcessorConfig holds the per-run settings of a Processor.
type ProcessorConfig struct {
	TargetDomain     string
	Mode             Mode
	MinWordThreshold int
	RunID            string
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithIndex records every stored article in idx.
func WithIndex(idx ArticleIndex) ProcessorOption {
	return func(p *Processor) { p.index = idx }
}

// WithPublisher publishes an ArticleEvent for every stored article.
func WithPublisher(pub Publisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

// WithHasher sets the hasher used for ArticleEvent.ContentHash.
func WithHasher(h Hasher) ProcessorOption {
	return func(p *Processor) { p.hasher = h }
}

// Processor produces the content of one URL, from the article cache when
// possible and from the PageSource otherwise.
type Processor struct {
	cfg       ProcessorConfig
	source    PageSource
	cache     ArticleCache
	index     ArticleIndex
	publisher Publisher
	hasher    Hasher
	logger    *zap.Logger
	group     singleflight.Group
	now       func() time.Time
}

type processed struct {
	content string
	ok      bool
}

// NewProcessor wires a Processor. Index, publisher and hasher are optional.
func NewProcessor(cfg ProcessorConfig, source PageSource, cache ArticleCache, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = ModeMarkdown
	}
	p := &Processor{
		cfg:    cfg,
		source: source,
		cache:  cache,
		logger: logger.Named("processor"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process returns the markdown for rawURL and whether there is any. Off-domain
// URLs are never fetched. Failures yield no content and are not returned as
// errors.
func (p *Processor) Process(ctx context.Context, rawURL string) (string, bool) {
	domain := urlcanon.DomainOf(rawURL)
	if domain == "" || !strings.EqualFold(domain, p.cfg.TargetDomain) {
		p.logger.Info("skipping off-domain url",
			zap.String("url", rawURL),
			zap.String("domain", domain),
			zap.String("target_domain", p.cfg.TargetDomain),
		)
		metrics.ObservePage(metrics.OutcomeOffDomain)
		return "", false
	}

	// Hosts match case-insensitively, so one spelling keys the cache.
	domain = p.cfg.TargetDomain
	fingerprint := urlcanon.Fingerprint(rawURL)
	v, _, _ := p.group.Do(domain+"/"+fingerprint, func() (any, error) {
		return p.load(ctx, rawURL, domain, fingerprint), nil
	})
	out := v.(processed)
	return out.content, out.ok
}

func (p *Processor) load(ctx context.Context, rawURL, domain, fingerprint string) processed {
	if content, ok := p.cache.Load(ctx, domain, fingerprint, p.cfg.Mode); ok {
		p.logger.Info("loaded from cache", zap.String("url", rawURL), zap.String("fingerprint", fingerprint))
		metrics.ObservePage(metrics.OutcomeCached)
		return processed{content: content, ok: true}
	}

	p.logger.Info("crawling", zap.String("url", rawURL))
	result := p.crawl(ctx, PageRequest{
		URL:              rawURL,
		MinWordThreshold: p.cfg.MinWordThreshold,
		Extract:          p.cfg.Mode == ModeStructured,
	})

	switch r := result.(type) {
	case Fetched:
		if strings.TrimSpace(r.Markdown) == "" {
			p.logger.Warn("crawl returned no content", zap.String("url", rawURL))
			metrics.ObservePage(metrics.OutcomeFailed)
			return processed{}
		}
		metrics.ObserveFetch(r.UsedHeadless, r.Duration)
		metrics.ObservePage(metrics.OutcomeFetched)
		p.persist(ctx, rawURL, domain, fingerprint, r)
		return processed{content: r.Markdown, ok: true}
	case Failed:
		p.logger.Warn("failed to crawl", zap.String("url", rawURL), zap.String("reason", r.Reason), zap.Error(r.Err))
	default:
		p.logger.Warn("failed to crawl", zap.String("url", rawURL), zap.String("reason", "no result"))
	}
	metrics.ObservePage(metrics.OutcomeFailed)
	return processed{}
}

// crawl calls the PageSource, turning a panic into a Failed result.
func (p *Processor) crawl(ctx context.Context, req PageRequest) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Failed{Reason: "page source panicked", Err: fmt.Errorf("%v", rec)}
		}
	}()
	return p.source.Crawl(ctx, req)
}

// persist writes the markdown and, in structured mode, the extracted record.
// A write failure is logged and counted; the caller still gets the content.
func (p *Processor) persist(ctx context.Context, rawURL, domain, fingerprint string, r Fetched) {
	location, err := p.cache.Store(ctx, domain, fingerprint, MarkdownFile, []byte(r.Markdown))
	if err != nil {
		p.logger.Error("failed to store markdown", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveCacheWriteFailure()
		return
	}

	event := ArticleEvent{
		RunID:       p.cfg.RunID,
		URL:         rawURL,
		Domain:      domain,
		Fingerprint: fingerprint,
		Location:    location,
	}

	if p.cfg.Mode == ModeStructured {
		if r.Article == nil {
			p.logger.Warn("no structured record extracted", zap.String("url", rawURL))
			return
		}
		record, err := json.MarshalIndent(r.Article, "", "  ")
		if err != nil {
			p.logger.Error("failed to encode record", zap.String("url", rawURL), zap.Error(err))
			metrics.ObserveCacheWriteFailure()
			return
		}
		location, err = p.cache.Store(ctx, domain, fingerprint, RecordFile, record)
		if err != nil {
			p.logger.Error("failed to store record", zap.String("url", rawURL), zap.Error(err))
			metrics.ObserveCacheWriteFailure()
			return
		}
		event.Location = location
		event.Title = r.Article.Title
		event.Published = r.Article.Date
	}

	p.logger.Info("stored article", zap.String("url", rawURL), zap.String("location", event.Location))
	p.announce(ctx, event, []byte(r.Markdown))
}

// announce records and publishes a stored article. Both are best effort.
func (p *Processor) announce(ctx context.Context, event ArticleEvent, content []byte) {
	if p.index == nil && p.publisher == nil {
		return
	}
	event.StoredAt = p.now().UTC()
	if p.hasher != nil {
		sum, err := p.hasher.Hash(content)
		if err != nil {
			p.logger.Warn("failed to hash content", zap.String("url", event.URL), zap.Error(err))
		}
		event.ContentHash = sum
	}
	if p.index != nil {
		if err := p.index.RecordArticle(ctx, event); err != nil {
			p.logger.Warn("failed to index article", zap.String("url", event.URL), zap.Error(err))
		}
	}
	if p.publisher != nil {
		id, err := p.publisher.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish article event", zap.String("url", event.URL), zap.Error(err))
			return
		}
		p.logger.Debug("published article event", zap.String("url", event.URL), zap.String("message_id", id))
	}
}
