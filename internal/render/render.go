// Package render converts fetched HTML into markdown. The full rendition keeps
// every link so article URLs can be discovered; the fit rendition keeps only
// the main content blocks that pass a minimum word count.
package render

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/nao1215/markdown"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/newscrawler/internal/crawler"
)

const (
	blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td"
	noiseSelector = "script, style, noscript, template, iframe, svg, head, form"
)

type blockKind int

const (
	kindHeading blockKind = iota
	kindParagraph
	kindListItem
	kindQuote
	kindCode
	kindLink
)

type block struct {
	kind  blockKind
	level int
	text  string
	words int
}

// Renderer implements crawler.Renderer with goquery and go-readability.
type Renderer struct {
	logger *zap.Logger
}

var _ crawler.Renderer = (*Renderer)(nil)

// New returns a Renderer.
func New(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger.Named("render")}
}

// Render returns the full and fit markdown of page. Fit blocks with fewer
// than minWords words are dropped; headings are kept.
func (r *Renderer) Render(ctx context.Context, pageURL string, page []byte, minWords int) (crawler.Rendered, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Rendered{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return crawler.Rendered{}, fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(noiseSelector).Remove()
	full := collectBlocks(doc.Selection)

	fitSource := full
	if main, mainTitle, ok := r.mainContent(pageURL, page); ok {
		fitSource = main
		if mainTitle != "" {
			title = mainTitle
		}
	}

	return crawler.Rendered{
		Title:       title,
		Markdown:    writeMarkdown(full),
		FitMarkdown: writeMarkdown(prune(fitSource, minWords)),
	}, nil
}

// mainContent runs readability over page and returns its blocks.
func (r *Renderer) mainContent(pageURL string, page []byte) ([]block, string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", false
	}
	article, err := readability.FromReader(bytes.NewReader(page), parsed)
	if err != nil {
		r.logger.Debug("readability failed, pruning full page", zap.String("url", pageURL), zap.Error(err))
		return nil, "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, "", false
	}
	doc.Find(noiseSelector).Remove()
	blocks := collectBlocks(doc.Selection)
	if len(blocks) == 0 {
		return nil, "", false
	}
	return blocks, strings.TrimSpace(article.Title), true
}

// collectBlocks walks block elements in document order. Nested blocks are
// rendered by their outermost ancestor; links outside any block become
// standalone link lines.
func collectBlocks(root *goquery.Selection) []block {
	var blocks []block
	root.Find(blockSelector + ", a[href]").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		name := goquery.NodeName(s)
		if name == "a" {
			if b, ok := linkBlock(s); ok {
				blocks = append(blocks, b)
			}
			return
		}

		var text string
		if name == "pre" {
			text = strings.TrimRight(s.Text(), "\n ")
		} else {
			text = inlineText(s)
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		b := block{text: text, words: len(strings.Fields(s.Text()))}
		switch name {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.kind, b.level = kindHeading, int(name[1]-'0')
		case "li":
			b.kind = kindListItem
		case "blockquote":
			b.kind = kindQuote
		case "pre":
			b.kind = kindCode
		default:
			b.kind = kindParagraph
		}
		blocks = append(blocks, b)
	})
	return blocks
}

func linkBlock(s *goquery.Selection) (block, bool) {
	href := strings.TrimSpace(s.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return block{}, false
	}
	text := collapse(s.Text())
	return block{kind: kindLink, text: "[" + text + "](" + href + ")", words: len(strings.Fields(text))}, true
}

// inlineText flattens s, keeping anchors as markdown links.
func inlineText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
			return
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString(" ")
			return
		case n.Type == html.ElementNode && n.Data == "a":
			sel := goquery.NewDocumentFromNode(n).Selection
			if b, ok := linkBlock(sel); ok {
				sb.WriteString(" " + b.text + " ")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return collapse(sb.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// prune keeps headings and blocks with at least minWords words.
func prune(blocks []block, minWords int) []block {
	out := make([]block, 0, len(blocks))
	for _, b := range blocks {
		if b.kind == kindHeading || b.words >= minWords {
			out = append(out, b)
		}
	}
	return out
}

func writeMarkdown(blocks []block) string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)
	for i, b := range blocks {
		switch b.kind {
		case kindHeading:
			heading(md, b.level, b.text)
		case kindListItem:
			md.BulletList(b.text)
		case kindQuote:
			md.Blockquote(b.text)
		case kindCode:
			md.CodeBlocks(markdown.SyntaxHighlight(""), b.text)
		default:
			md.PlainText(b.text)
		}
		// Consecutive list items form one list.
		if b.kind == kindListItem && i+1 < len(blocks) && blocks[i+1].kind == kindListItem {
			continue
		}
		md.PlainText("")
	}
	return strings.TrimSpace(md.String())
}

func heading(md *markdown.Markdown, level int, text string) {
	switch level {
	case 1:
		md.H1(text)
	case 2:
		md.H2(text)
	case 3:
		md.H3(text)
	case 4:
		md.H4(text)
	case 5:
		md.H5(text)
	default:
		md.H6(text)
	}
}
