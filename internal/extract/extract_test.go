package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textsOf(raws []RawURI) []string {
	out := make([]string, len(raws))
	for i, r := range raws {
		out[i] = r.Text
	}
	return out
}

func TestMarkdownExtractsLinksAndHeadingFragments(t *testing.T) {
	src := []byte("# Foo Bar\n\n[x](https://example.com) <https://auto.example.com>\n\n![alt](img.png)\n")
	raws, idx, err := markdownExtractor{}.Extract(src)
	require.NoError(t, err)

	texts := textsOf(raws)
	assert.Contains(t, texts, "https://example.com")
	assert.Contains(t, texts, "https://auto.example.com")
	assert.Contains(t, texts, "img.png")
	assert.True(t, idx.Has("foo-bar"))
}

func TestMarkdownSkipsCodeBlocksByDefault(t *testing.T) {
	src := []byte("```\n[x](https://skipped.example.com)\n```\n")
	raws, _, err := markdownExtractor{}.Extract(src)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestMarkdownDuplicateHeadingsDisambiguated(t *testing.T) {
	src := []byte("# Foo\n\n# Foo\n")
	_, idx, err := markdownExtractor{}.Extract(src)
	require.NoError(t, err)
	assert.True(t, idx.Has("foo"))
	assert.True(t, idx.Has("foo-1"))
}

func TestHTMLSkipsDNSPrefetchAndPreconnect(t *testing.T) {
	src := []byte(`<html><body>
<link rel="dns-prefetch" href="https://a.test">
<link rel="preconnect" href="https://c.test">
<a href="https://b.test">b</a>
</body></html>`)
	raws, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	texts := textsOf(raws)
	assert.NotContains(t, texts, "https://a.test")
	assert.NotContains(t, texts, "https://c.test")
	assert.Contains(t, texts, "https://b.test")
}

func TestHTMLSkipsDisabledStylesheet(t *testing.T) {
	src := []byte(`<link rel="stylesheet" href="https://disabled.test" disabled>`)
	raws, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestHTMLSkipsPrefixAttribute(t *testing.T) {
	src := []byte(`<html prefix="og: https://ogp.me/ns#"><a href="https://kept.test">x</a></html>`)
	raws, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	texts := textsOf(raws)
	assert.NotContains(t, texts, "og: https://ogp.me/ns#")
	assert.Contains(t, texts, "https://kept.test")
}

func TestHTMLSrcsetYieldsEachURL(t *testing.T) {
	src := []byte(`<img srcset="a.png 1x, b.png 2x">`)
	raws, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	texts := textsOf(raws)
	assert.Contains(t, texts, "a.png")
	assert.Contains(t, texts, "b.png")
}

func TestHTMLFragmentIndexFromIDAndName(t *testing.T) {
	src := []byte(`<div id="Section-One"></div><a name="legacy-anchor"></a>`)
	_, idx, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	// HTML ids are matched exactly, not case-folded like Markdown headings.
	assert.True(t, idx.Has("Section-One"))
	assert.False(t, idx.Has("section-one"))
	assert.True(t, idx.Has("legacy-anchor"))
}

func TestPlaintextLinkifyTrimsTrailingPeriod(t *testing.T) {
	raws, _, err := plaintextExtractor{}.Extract([]byte("See https://example.com/page."))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "https://example.com/page", raws[0].Text)
}

func TestPlaintextFindsBareEmail(t *testing.T) {
	raws, _, err := plaintextExtractor{}.Extract([]byte("contact jane@example.com for help"))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "mailto:jane@example.com", raws[0].Text)
}

func TestExtractorIdempotence(t *testing.T) {
	src := []byte(`<a href="https://a.test">a</a><a href="https://b.test">b</a>`)
	raws1, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	raws2, _, err := htmlExtractor{}.Extract(src)
	require.NoError(t, err)
	assert.ElementsMatch(t, textsOf(raws1), textsOf(raws2))
}
