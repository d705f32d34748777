// Package detector decides when a plain HTTP fetch must be retried in a
// headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

const (
	defaultBodyThreshold = 2048
	defaultMinTextWords  = 20
)

// Heuristic promotes pages that look like client-rendered shells.
type Heuristic struct {
	// BodyLengthThreshold bounds the size under which script density is checked.
	BodyLengthThreshold int
	// MinTextWords is the visible word count below which a scripted page is promoted.
	MinTextWords int
}

var _ crawler.HeadlessDetector = (*Heuristic)(nil)

// NewHeuristic creates a new detector. Zero means the default threshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold, MinTextWords: defaultMinTextWords}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
}

// ShouldPromote reports whether probe looks like it needs JavaScript.
func (h *Heuristic) ShouldPromote(probe crawler.FetchResponse) bool {
	if probe.StatusCode != http.StatusOK {
		return false
	}
	body := probe.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return h.textStarved(body)
}

// textStarved reports a page that ships scripts but almost no visible text.
func (h *Heuristic) textStarved(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find("script").Length() == 0 {
		return false
	}
	visible := doc.Find("body").Clone()
	visible.Find("script, style, noscript, template").Remove()
	return len(strings.Fields(visible.Text())) < h.MinTextWords
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			// Unterminated tag swallows the rest of the document.
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
