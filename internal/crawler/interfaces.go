package crawler

import (
	"context"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Renderer turns fetched HTML into markdown.
type Renderer interface {
	Render(ctx context.Context, pageURL string, html []byte, minWords int) (Rendered, error)
}

// Extractor derives a structured Article from page markdown.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, markdown string) (Article, error)
}

// PageSource is the fetch/render collaborator used by the Processor.
// Implementations report every failure as a Failed result.
type PageSource interface {
	Crawl(ctx context.Context, request PageRequest) Result
}

// ArticleCache maps (domain, fingerprint) to previously stored content.
type ArticleCache interface {
	Load(ctx context.Context, domain, fingerprint string, mode Mode) (string, bool)
	Store(ctx context.Context, domain, fingerprint, name string, content []byte) (string, error)
}

// ArticleIndex records stored articles (e.g. in Postgres).
type ArticleIndex interface {
	RecordArticle(ctx context.Context, event ArticleEvent) error
}

// Publisher pushes article events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Hasher computes digests of stored content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// PageProcessor produces content for one URL.
type PageProcessor interface {
	Process(ctx context.Context, rawURL string) (string, bool)
}

// LinkExtractor finds the article URLs worth crawling next in page content.
type LinkExtractor interface {
	ExtractArticleURLs(markdown, baseDomain, currentPageURL string) []string
}
