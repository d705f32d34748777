// Package pagefetch composes fetching, headless promotion, rendering and
// optional extraction into the crawler's PageSource.
package pagefetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

// Option customizes a Source.
type Option func(*Source)

// WithHeadless promotes probes that detector flags to the headless fetcher.
func WithHeadless(fetcher crawler.Fetcher, detector crawler.HeadlessDetector) Option {
	return func(s *Source) {
		s.headless = fetcher
		s.detector = detector
	}
}

// WithExtractor enables structured extraction for requests that ask for it.
func WithExtractor(extractor crawler.Extractor) Option {
	return func(s *Source) { s.extractor = extractor }
}

// WithRetryPolicy overrides the fetch retry policy.
func WithRetryPolicy(policy crawler.RetryPolicy) Option {
	return func(s *Source) { s.retry = policy }
}

// Source implements crawler.PageSource.
type Source struct {
	probe     crawler.Fetcher
	headless  crawler.Fetcher
	detector  crawler.HeadlessDetector
	renderer  crawler.Renderer
	extractor crawler.Extractor
	retry     crawler.RetryPolicy
	logger    *zap.Logger
}

var _ crawler.PageSource = (*Source)(nil)

// New builds a Source that fetches with probe and renders with renderer.
func New(probe crawler.Fetcher, renderer crawler.Renderer, logger *zap.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{
		probe:    probe,
		renderer: renderer,
		retry:    crawler.NewExponentialRetryPolicy(),
		logger:   logger.Named("pagefetch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl fetches, renders and optionally extracts request.URL. Every failure
// is reported as crawler.Failed.
func (s *Source) Crawl(ctx context.Context, request crawler.PageRequest) crawler.Result {
	start := time.Now()

	resp, err := s.fetch(ctx, s.probe, crawler.FetchRequest{URL: request.URL})
	if err != nil {
		return crawler.Failed{Reason: "fetch failed", Err: err}
	}

	if s.headless != nil && s.detector != nil && s.detector.ShouldPromote(resp) {
		s.logger.Debug("promoting to headless", zap.String("url", request.URL))
		rendered, err := s.fetch(ctx, s.headless, crawler.FetchRequest{URL: request.URL, UseHeadless: true})
		if err != nil {
			s.logger.Warn("headless fetch failed, using probe", zap.String("url", request.URL), zap.Error(err))
		} else {
			resp = rendered
		}
	}

	pageURL := resp.URL
	if pageURL == "" {
		pageURL = request.URL
	}
	page, err := s.renderer.Render(ctx, pageURL, resp.Body, request.MinWordThreshold)
	if err != nil {
		return crawler.Failed{Reason: "render failed", Err: err}
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return crawler.Failed{Reason: "empty content"}
	}

	result := crawler.Fetched{
		Markdown:     page.Markdown,
		FitMarkdown:  page.FitMarkdown,
		UsedHeadless: resp.UsedHeadless,
	}
	if request.Extract {
		result.Article = s.extract(ctx, request.URL, page)
	}
	result.Duration = time.Since(start)
	return result
}

func (s *Source) extract(ctx context.Context, pageURL string, page crawler.Rendered) *crawler.Article {
	if s.extractor == nil {
		s.logger.Warn("extraction requested but no extractor configured", zap.String("url", pageURL))
		return nil
	}
	input := page.FitMarkdown
	if strings.TrimSpace(input) == "" {
		input = page.Markdown
	}
	article, err := s.extractor.Extract(ctx, pageURL, input)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return &article
}

// fetch runs f under the retry policy.
func (s *Source) fetch(ctx context.Context, f crawler.Fetcher, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.Fetch(ctx, request)
		if err == nil {
			return resp, nil
		}
		if !s.retry.ShouldRetry(err, attempt) {
			return crawler.FetchResponse{}, err
		}
		wait := s.retry.Backoff(attempt)
		s.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return crawler.FetchResponse{}, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
