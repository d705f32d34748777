package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://merolagani.com/NewsDetail.aspx?newsID=114689"

func articlePage() string {
	body := strings.Repeat("The Nepal Stock Exchange index closed higher on Sunday as banking shares rallied. ", 8)
	return `<html><head><title>NEPSE rallies | Merolagani</title><style>p{}</style></head><body>
<nav><a href="/">Home</a> <a href="javascript:void(0)">Menu</a> <a href="#top">Top</a></nav>
<div class="article">
<h1>NEPSE rallies</h1>
<p>` + body + `</p>
<p>Read <a href="/NewsDetail.aspx?newsID=114690">the earlier report</a> for context.</p>
<p>Short note.</p>
<ul><li>Banks <b>up</b></li><li>Hydro down</li></ul>
<blockquote><p>Markets were calm.</p></blockquote>
</div>
<script>window.tracker = "https://merolagani.com/NewsDetail.aspx?newsID=999";</script>
</body></html>`
}

func TestRenderFullMarkdownKeepsLinks(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Render(context.Background(), pageURL, []byte(articlePage()), 5)
	require.NoError(t, err)

	assert.Contains(t, got.Markdown, "# NEPSE rallies")
	assert.Contains(t, got.Markdown, "Read [the earlier report](/NewsDetail.aspx?newsID=114690) for context.")
	assert.Contains(t, got.Markdown, "[Home](/)")
	assert.Contains(t, got.Markdown, "Banks up")
	assert.Contains(t, got.Markdown, "Short note.")
	assert.Contains(t, got.Markdown, "Markets were calm.")
	assert.NotContains(t, got.Markdown, "newsID=999", "scripts are dropped")
	assert.NotContains(t, got.Markdown, "javascript:")
	assert.NotContains(t, got.Markdown, "(#top)")
	assert.NotEmpty(t, got.Title)
}

func TestRenderFitMarkdownPrunesShortBlocks(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Render(context.Background(), pageURL, []byte(articlePage()), 5)
	require.NoError(t, err)

	assert.Contains(t, got.FitMarkdown, "banking shares rallied")
	assert.NotContains(t, got.FitMarkdown, "Short note.")
	assert.NotContains(t, got.FitMarkdown, "Hydro down")
}

func TestRenderHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Render(ctx, pageURL, []byte(articlePage()), 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollectBlocksSkipsNestedBlocks(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Render(context.Background(), pageURL,
		[]byte(`<html><body><blockquote><p>quoted words here</p></blockquote></body></html>`), 0)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(got.Markdown, "quoted words here"))
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	out := writeMarkdown([]block{
		{kind: kindHeading, level: 2, text: "Markets"},
		{kind: kindParagraph, text: "NEPSE closed higher."},
		{kind: kindListItem, text: "banks"},
		{kind: kindListItem, text: "hydro"},
		{kind: kindLink, text: "[More](/NewsDetail.aspx?newsID=2)"},
	})
	assert.True(t, strings.HasPrefix(out, "## Markets"))
	assert.Contains(t, out, "NEPSE closed higher.")
	assert.Contains(t, out, "banks\n- hydro")
	assert.Contains(t, out, "[More](/NewsDetail.aspx?newsID=2)")
}

func TestPrune(t *testing.T) {
	t.Parallel()

	blocks := []block{
		{kind: kindHeading, text: "T", words: 1},
		{kind: kindParagraph, text: "one two", words: 2},
		{kind: kindParagraph, text: "one two three four five", words: 5},
	}
	got := prune(blocks, 5)
	require.Len(t, got, 2)
	require.Equal(t, kindHeading, got[0].kind)
	require.Equal(t, 5, got[1].words)
	require.Len(t, prune(blocks, 0), 3)
}

func TestInlineTextCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Render(context.Background(), pageURL,
		[]byte("<html><body><p>  a\n\n b<br>c  </p></body></html>"), 0)
	require.NoError(t, err)
	require.Equal(t, "a b c", got.Markdown)
}
