// Package cache stores rendered articles under
// <root>/<domain>/<fingerprint>/ so repeated runs never refetch them.
package cache

import (
	"bytes"
	"context"
	"errors"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/crawler"
	"github.com/JakeFAU/newscrawler/internal/metrics"
	"github.com/JakeFAU/newscrawler/internal/storage"
)

// Dir returns the directory holding the stored files of one article.
func Dir(root, domain, fingerprint string) string {
	return path.Join(root, domain, fingerprint)
}

// Cache implements crawler.ArticleCache on top of a storage.Store. Paths are
// relative to the store, so the store decides where root lives.
type Cache struct {
	store  storage.Store
	root   string
	logger *zap.Logger
}

var _ crawler.ArticleCache = (*Cache)(nil)

// New returns a Cache writing under root inside store. root may be empty when
// the store is already rooted at the storage directory.
func New(store storage.Store, root string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, root: root, logger: logger.Named("cache")}
}

// Load returns stored content for the article if its mode's primary file
// exists. In structured mode the sibling markdown is preferred so links can
// still be discovered. Read errors are logged and reported as a miss.
func (c *Cache) Load(ctx context.Context, domain, fingerprint string, mode crawler.Mode) (string, bool) {
	dir := Dir(c.root, domain, fingerprint)
	primary, err := c.store.GetObject(ctx, path.Join(dir, mode.PrimaryFile()))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.ObserveCacheLookup("miss")
		return "", false
	case err != nil:
		c.logger.Warn("cache read failed, refetching", zap.String("dir", dir), zap.Error(err))
		metrics.ObserveCacheLookup("error")
		return "", false
	}

	if mode == crawler.ModeStructured {
		md, err := c.store.GetObject(ctx, path.Join(dir, crawler.MarkdownFile))
		switch {
		case err == nil:
			primary = md
		case !errors.Is(err, storage.ErrNotFound):
			c.logger.Warn("cached markdown unreadable, using record", zap.String("dir", dir), zap.Error(err))
		}
	}

	metrics.ObserveCacheLookup("hit")
	return string(primary), true
}

// Store writes content as name inside the article directory, replacing any
// previous file.
func (c *Cache) Store(ctx context.Context, domain, fingerprint, name string, content []byte) (string, error) {
	return c.store.PutObject(ctx, path.Join(Dir(c.root, domain, fingerprint), name), contentType(name), bytes.NewReader(content))
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
