// Package collyfetcher fetches article pages over plain HTTP with gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

const (
	defaultTimeout = 15 * time.Second
	acceptHTML     = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"
)

// Config controls the probe collector.
type Config struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// MaxBodyBytes caps a downloaded page. Zero keeps colly's default.
	MaxBodyBytes int `mapstructure:"max_body_bytes"`
}

// Fetcher implements crawler.Fetcher. Every call runs on a clone of one base
// collector, so revisits are always allowed and robots.txt is never read.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

var _ crawler.Fetcher = (*Fetcher)(nil)

// callbacks is the subset of *colly.Collector a visit registers on.
type callbacks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	base := colly.NewCollector(colly.AllowURLRevisit())
	base.IgnoreRobotsTxt = true
	base.DetectCharset = true
	base.WithTransport(transport())
	if cfg.MaxBodyBytes > 0 {
		base.MaxBodySize = cfg.MaxBodyBytes
	}
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	return &Fetcher{cfg: cfg, base: base}
}

// Fetch performs one GET. Responses with status >= 400 come back as
// *crawler.StatusError so the retry policy can classify them.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	c := f.collector(ctx)
	v := &visit{request: request, started: time.Now()}
	v.register(c)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, ctx.Err())
	case err := <-done:
		return v.outcome(err)
	}
}

func (f *Fetcher) collector(ctx context.Context) *colly.Collector {
	c := f.base.Clone()
	c.Context = ctx
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.cfg.Timeout)
	return c
}

// visit records what the collector callbacks observe for one URL.
type visit struct {
	request  crawler.FetchRequest
	started  time.Time
	response crawler.FetchResponse
	received bool
	err      error
}

func (v *visit) register(c callbacks) {
	c.OnRequest(v.onRequest)
	c.OnResponse(v.onResponse)
	c.OnError(v.onError)
}

func (v *visit) onRequest(r *colly.Request) {
	if r.Headers.Get("Accept") == "" {
		r.Headers.Set("Accept", acceptHTML)
	}
	for key, values := range v.request.Headers {
		r.Headers.Del(key)
		for _, value := range values {
			r.Headers.Add(key, value)
		}
	}
}

func (v *visit) onResponse(r *colly.Response) {
	v.received = true
	v.response = crawler.FetchResponse{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Headers:    r.Headers.Clone(),
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(v.started),
	}
}

func (v *visit) onError(r *colly.Response, err error) {
	if r != nil && r.StatusCode >= http.StatusBadRequest {
		v.err = &crawler.StatusError{URL: v.request.URL, StatusCode: r.StatusCode}
		return
	}
	v.err = err
}

// outcome folds the Visit error and the callback state into one result.
// A status error wins over the generic error colly returns alongside it.
func (v *visit) outcome(visitErr error) (crawler.FetchResponse, error) {
	var statusErr *crawler.StatusError
	switch {
	case errors.As(v.err, &statusErr):
		return crawler.FetchResponse{}, statusErr
	case visitErr != nil:
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", v.request.URL, visitErr)
	case v.err != nil:
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", v.request.URL, v.err)
	case !v.received:
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: no response", v.request.URL)
	}
	return v.response, nil
}

func transport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}
