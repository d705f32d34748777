// Package postgres indexes stored articles and crawl runs in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

const (
	defaultArticleTable = "articles"
	defaultRunTable     = "crawl_runs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used by the index.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	RunTable        string        `mapstructure:"run_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Index writes article and run rows into Postgres.
type Index struct {
	pool     execCloser
	table    string
	runTable string
}

var _ crawler.ArticleIndex = (*Index)(nil)

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.DSN == "" {
		return nil, errors.New("index.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewWithPool(pool, cfg.Table, cfg.RunTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithPool builds an Index on an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table, runTable string) (*Index, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultArticleTable
	}
	if runTable == "" {
		runTable = defaultRunTable
	}
	for _, name := range []string{table, runTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &Index{pool: pool, table: table, runTable: runTable}, nil
}

// Close releases the underlying pool resources.
func (i *Index) Close() {
	if i == nil || i.pool == nil {
		return
	}
	i.pool.Close()
}

// RecordArticle inserts an article row. Rows are keyed by (domain,
// fingerprint); an existing row is left untouched.
func (i *Index) RecordArticle(ctx context.Context, event crawler.ArticleEvent) error {
	if event.Fingerprint == "" {
		return errors.New("article fingerprint is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	domain,
	fingerprint,
	url,
	run_id,
	location,
	content_hash,
	title,
	published,
	stored_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (domain, fingerprint) DO NOTHING`, i.table)

	_, err := i.pool.Exec(ctx, query,
		event.Domain,
		event.Fingerprint,
		event.URL,
		event.RunID,
		event.Location,
		event.ContentHash,
		event.Title,
		event.Published,
		event.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// StartRun records the beginning of a crawl run.
func (i *Index) StartRun(ctx context.Context, runID, seed string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, seed, started_at, status)
VALUES ($1, $2, $3, 'running')
ON CONFLICT (id) DO NOTHING`, i.runTable)
	if _, err := i.pool.Exec(ctx, query, runID, seed, startedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a crawl run.
func (i *Index) FinishRun(ctx context.Context, summary crawler.Summary, finishedAt time.Time, runErr error) error {
	status := "completed"
	var errMsg *string
	if runErr != nil {
		status = "cancelled"
		msg := runErr.Error()
		errMsg = &msg
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, visited = $3, with_content = $4, pending = $5, error_message = $6
WHERE id = $7`, i.runTable)
	_, err := i.pool.Exec(ctx, query,
		finishedAt, status, summary.Visited, summary.WithContent, summary.Pending, errMsg, summary.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}
