// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"net/http"
	"time"
)

// ErrInvalidSeed is returned when no domain can be derived from the seed URL.
var ErrInvalidSeed = errors.New("could not determine base domain from seed url")

// Mode selects what the processor persists for each article.
type Mode string

// Supported persistence modes.
const (
	// ModeMarkdown stores rendered markdown only.
	ModeMarkdown Mode = "markdown"
	// ModeStructured additionally stores the LLM-extracted Article record.
	ModeStructured Mode = "structured"
)

// Stored file names under <root>/<domain>/<fingerprint>/.
const (
	MarkdownFile = "result.md"
	RecordFile   = "result.json"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeMarkdown || m == ModeStructured
}

// PrimaryFile names the file whose presence marks a URL as already stored.
func (m Mode) PrimaryFile() string {
	if m == ModeStructured {
		return RecordFile
	}
	return MarkdownFile
}

// Article is the structured record extracted from an article page.
type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Date    string `json:"date"`
}

// PageRequest asks a PageSource to fetch and render one URL.
type PageRequest struct {
	URL string
	// MinWordThreshold drops rendered blocks with fewer words from the fit markdown.
	MinWordThreshold int
	// Extract requests an Article alongside the markdown.
	Extract bool
}

// Result is the outcome of a PageSource crawl: either Fetched or Failed.
type Result interface {
	isResult()
}

// Fetched carries the rendered page.
type Fetched struct {
	// Markdown is the full rendition, links included.
	Markdown string
	// FitMarkdown keeps only blocks that pass the pruning threshold.
	FitMarkdown string
	// Article is set in structured mode when extraction succeeded.
	Article      *Article
	UsedHeadless bool
	Duration     time.Duration
}

// Failed describes why a page produced nothing.
type Failed struct {
	Reason string
	Err    error
}

func (Fetched) isResult() {}
func (Failed) isResult()  {}

// Error implements error so a Failed can be logged or wrapped directly.
func (f Failed) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}
	return f.Reason
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL         string
	UseHeadless bool
	Headers     http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Rendered is the markdown rendition of an HTML page.
type Rendered struct {
	Title       string
	Markdown    string
	FitMarkdown string
}

// ArticleEvent is recorded and published once an article is stored.
type ArticleEvent struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Fingerprint string    `json:"fingerprint"`
	Location    string    `json:"location"`
	ContentHash string    `json:"content_hash"`
	Title       string    `json:"title,omitempty"`
	Published   string    `json:"published,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// Summary reports the outcome of a crawl run.
type Summary struct {
	RunID       string
	Visited     int
	WithContent int
	Pending     int
	Duration    time.Duration
}

// Progress is a point-in-time view of a running crawl.
type Progress struct {
	RunID        string    `json:"run_id"`
	Seed         string    `json:"seed"`
	TargetDomain string    `json:"target_domain"`
	Current      string    `json:"current,omitempty"`
	Visited      int       `json:"visited"`
	Pending      int       `json:"pending"`
	WithContent  int       `json:"with_content"`
	StartedAt    time.Time `json:"started_at"`
	Done         bool      `json:"done"`
}
