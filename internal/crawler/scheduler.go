package crawler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/metrics"
	"github.com/JakeFAU/newscrawler/internal/urlcanon"
)

// SchedulerConfig holds the per-run settings of a Scheduler.
type SchedulerConfig struct {
	Seed string
	// TargetDomain defaults to the authority of Seed.
	TargetDomain string
	Delay        time.Duration
	RunID        string
}

// Scheduler drives a breadth-first crawl from a single seed.
type Scheduler struct {
	cfg         SchedulerConfig
	frontier    *Frontier
	processor   PageProcessor
	links       LinkExtractor
	pauser      Pauser
	logger      *zap.Logger
	withContent int
	started     time.Time
	progress    atomic.Pointer[Progress]
}

// TargetDomain derives the crawl domain from seed.
func TargetDomain(seed string) (string, error) {
	domain := urlcanon.DomainOf(seed)
	if domain == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return domain, nil
}

// NewScheduler returns a Scheduler whose frontier holds only the seed.
func NewScheduler(cfg SchedulerConfig, processor PageProcessor, links LinkExtractor, logger *zap.Logger) (*Scheduler, error) {
	if cfg.TargetDomain == "" {
		domain, err := TargetDomain(cfg.Seed)
		if err != nil {
			return nil, err
		}
		cfg.TargetDomain = domain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:       cfg,
		frontier:  NewFrontier(cfg.Seed),
		processor: processor,
		links:     links,
		pauser:    PauserFunc(Sleep),
		logger:    logger.Named("scheduler"),
		started:   time.Now(),
	}
	s.publish("", false)
	return s, nil
}

// Frontier exposes the scheduler's BFS state.
func (s *Scheduler) Frontier() *Frontier { return s.frontier }

// Snapshot returns the latest progress. Safe for concurrent use.
func (s *Scheduler) Snapshot() Progress {
	if p := s.progress.Load(); p != nil {
		return *p
	}
	return Progress{}
}

// Step performs one BFS transition. It reports whether a URL was processed;
// an empty frontier or an already visited URL yields false.
func (s *Scheduler) Step(ctx context.Context) bool {
	current, ok := s.frontier.Pop()
	if !ok {
		return false
	}
	if s.frontier.Visited(current) {
		s.logger.Debug("skipping already visited url", zap.String("url", current))
		return false
	}
	s.frontier.MarkVisited(current)
	s.publish(current, false)

	content, ok := s.processor.Process(ctx, current)
	if ok {
		s.withContent++
		found := s.links.ExtractArticleURLs(content, s.cfg.TargetDomain, current)
		enqueued := 0
		for _, next := range found {
			if s.frontier.Enqueue(next) {
				enqueued++
			}
		}
		metrics.ObserveLinks(len(found), enqueued)
		s.logger.Debug("discovered links",
			zap.String("url", current),
			zap.Int("found", len(found)),
			zap.Int("enqueued", enqueued),
		)
	}

	metrics.SetFrontier(s.frontier.Len(), s.frontier.VisitedCount())
	s.publish(current, false)
	return true
}

// Run crawls until the frontier is empty or ctx is cancelled. Cancellation is
// observed between iterations; the partial summary is returned with ctx.Err().
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	s.logger.Info("starting crawl",
		zap.String("run_id", s.cfg.RunID),
		zap.String("seed", s.cfg.Seed),
		zap.String("target_domain", s.cfg.TargetDomain),
	)

	var runErr error
	for s.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if s.Step(ctx) && s.frontier.Len() > 0 {
			s.pauser.Pause(ctx, s.cfg.Delay)
		}
	}

	s.publish("", true)
	summary := Summary{
		RunID:       s.cfg.RunID,
		Visited:     s.frontier.VisitedCount(),
		WithContent: s.withContent,
		Pending:     s.frontier.Len(),
		Duration:    time.Since(s.started),
	}
	s.logger.Info(fmt.Sprintf("Visited %d URLs", summary.Visited),
		zap.String("run_id", summary.RunID),
		zap.Int("with_content", summary.WithContent),
		zap.Int("pending", summary.Pending),
		zap.Duration("duration", summary.Duration),
		zap.Bool("cancelled", runErr != nil),
	)
	return summary, runErr
}

func (s *Scheduler) publish(current string, done bool) {
	s.progress.Store(&Progress{
		RunID:        s.cfg.RunID,
		Seed:         s.cfg.Seed,
		TargetDomain: s.cfg.TargetDomain,
		Current:      current,
		Visited:      s.frontier.VisitedCount(),
		Pending:      s.frontier.Len(),
		WithContent:  s.withContent,
		StartedAt:    s.started,
		Done:         done,
	})
}
