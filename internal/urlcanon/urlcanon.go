// Package urlcanon discovers article links in rendered markdown and reduces
// them to absolute, same-domain, pattern-matching URLs.
//
// Everything here is free of I/O. Link discovery runs two independent
// patterns over the text; normalization resolves each raw candidate against
// the page it was found on and validates it against a Pattern.
package urlcanon

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/hash/md5"
)

// MarkdownLinkPattern matches markdown links and captures the target.
const MarkdownLinkPattern = `\[[^\]]*\]\(([^)]+)\)`

// PlainURLPattern matches bare absolute http(s) URLs and root-relative paths.
const PlainURLPattern = `(?:https?://[^\s"'()<>]+|/[^\s"'()<>]+)`

var (
	markdownLinkRe = regexp.MustCompile(MarkdownLinkPattern)
	plainURLRe     = regexp.MustCompile(PlainURLPattern)
)

// Pattern describes which URLs count as article pages.
type Pattern struct {
	// PathMarker must appear in the URL path, e.g. "NewsDetail.aspx".
	PathMarker string `mapstructure:"path_marker"`
	// QueryKey names the query parameter whose first value must be numeric.
	QueryKey string `mapstructure:"query_key"`
}

// DefaultPattern matches merolagani-style article pages.
var DefaultPattern = Pattern{
	PathMarker: "NewsDetail.aspx",
	QueryKey:   "newsID",
}

// DomainOf returns the authority of raw, or "" when raw cannot be parsed.
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// FingerprintInput returns the string hashed by Fingerprint: the path exactly
// as written in raw, plus "?" and the raw query when one is present.
func FingerprintInput(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	// RawPath holds the original text whenever it differs from the default
	// encoding of Path; otherwise that encoding is the original text.
	in := u.RawPath
	if in == "" {
		in = u.EscapedPath()
	}
	if u.RawQuery != "" {
		in += "?" + u.RawQuery
	}
	return in
}

// Fingerprint returns the lowercase hex MD5 of FingerprintInput(raw).
// Scheme, host and fragment never affect the result.
func Fingerprint(raw string) string {
	return md5.Sum([]byte(FingerprintInput(raw)))
}

// DiscoverCandidates returns raw link targets found in text: every markdown
// link target first, then every plain URL match, each in scan order.
// Duplicates are kept.
func DiscoverCandidates(text string) []string {
	var out []string
	for _, m := range markdownLinkRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	out = append(out, plainURLRe.FindAllString(text, -1)...)
	return out
}

// rejection reasons, logged at debug level only.
const (
	reasonUnparseable = "unparseable"
	reasonDomain      = "domain/path/query mismatch"
	reasonNonNumeric  = "non-numeric id"
)

// Filter normalizes discovered candidates against a Pattern.
type Filter struct {
	pattern     Pattern
	pathNeedle  string
	queryNeedle string
	logger      *zap.Logger
}

// NewFilter builds a Filter for p. A nil logger discards diagnostics.
func NewFilter(p Pattern, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		pattern:     p,
		pathNeedle:  strings.ToLower(p.PathMarker),
		queryNeedle: strings.ToLower(p.QueryKey) + "=",
		logger:      logger,
	}
}

// ExtractArticleURLs runs discovery and normalization over markdown found on
// currentPageURL.
func (f *Filter) ExtractArticleURLs(markdown, baseDomain, currentPageURL string) []string {
	candidates := DiscoverCandidates(markdown)
	f.logger.Debug("potential url strings found",
		zap.String("page", currentPageURL),
		zap.Int("count", len(candidates)),
	)
	return f.NormalizeAndFilter(candidates, baseDomain, currentPageURL)
}

// NormalizeAndFilter resolves each candidate against currentPageURL and keeps
// the absolute URLs on baseDomain that match the pattern. The result has set
// semantics and is ordered by first discovery.
func (f *Filter) NormalizeAndFilter(candidates []string, baseDomain, currentPageURL string) []string {
	current, err := url.Parse(currentPageURL)
	if err != nil {
		f.logger.Debug("current page url unparseable", zap.String("page", currentPageURL), zap.Error(err))
		current = &url.URL{}
	}

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, raw := range candidates {
		abs, reason := f.normalize(raw, baseDomain, current)
		if reason != "" {
			if abs != "" || reason == reasonUnparseable {
				f.logger.Debug("rejected candidate",
					zap.String("reason", reason),
					zap.String("url", abs),
					zap.String("from", raw),
				)
			}
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		f.logger.Debug("extracted article url", zap.String("url", abs), zap.String("from", raw))
	}
	return out
}

// normalize returns the canonical URL for raw, or a rejection reason. The
// cheap pre-filter rejects with an empty URL so it stays out of the logs.
func (f *Filter) normalize(raw, baseDomain string, current *url.URL) (string, string) {
	candidate := strings.Trim(strings.TrimSpace(raw), `'"`)
	lower := strings.ToLower(candidate)
	if !strings.Contains(lower, f.pathNeedle) || !strings.Contains(lower, f.queryNeedle) {
		return "", reasonDomain
	}

	abs, err := resolve(candidate, current)
	if err != nil {
		return "", reasonUnparseable
	}
	canonical := abs.String()

	if abs.Host == "" ||
		!strings.EqualFold(abs.Host, baseDomain) ||
		!strings.Contains(strings.ToLower(abs.EscapedPath()), "/"+f.pathNeedle) ||
		!strings.Contains(strings.ToLower(abs.RawQuery), f.queryNeedle) {
		return canonical, reasonDomain
	}

	id, ok := firstQueryValue(abs.RawQuery, f.pattern.QueryKey)
	if !ok || !isDigits(id) {
		return canonical, reasonNonNumeric
	}
	return canonical, ""
}

// resolve turns candidate into an absolute URL without a fragment.
func resolve(candidate string, current *url.URL) (*url.URL, error) {
	ref, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	abs := ref
	if strings.HasPrefix(candidate, "/") ||
		!(strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://")) {
		abs = current.ResolveReference(ref)
	}

	if abs.Scheme == "" {
		if abs.Host != "" {
			abs.Scheme = current.Scheme
		} else {
			abs = current.ResolveReference(abs)
		}
	}

	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, nil
}

// firstQueryValue returns the first non-empty value of key in rawQuery,
// matching the key case-insensitively and walking pairs in query order.
func firstQueryValue(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		uk, err := url.QueryUnescape(k)
		if err != nil || !strings.EqualFold(uk, key) {
			continue
		}
		uv, err := url.QueryUnescape(v)
		if err != nil || uv == "" {
			continue
		}
		return uv, true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
