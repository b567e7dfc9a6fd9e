package quirks

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAddsCratesIOAcceptHeader(t *testing.T) {
	chain := Default()
	req, err := http.NewRequest(http.MethodGet, "https://crates.io/crates/serde", nil)
	require.NoError(t, err)

	chain.ApplyHeaders(req)
	assert.Equal(t, "text/html", req.Header.Get("Accept"))
}

func TestDefaultRewritesYoutubeEmbed(t *testing.T) {
	chain := Default()
	u, _ := url.Parse("https://www.youtube.com/embed/abc123")
	got := chain.ApplyRewrite(u)
	assert.Equal(t, "www.youtube-nocookie.com", got.Host)
}

func TestDefaultLeavesNonEmbedYoutubeAlone(t *testing.T) {
	chain := Default()
	u, _ := url.Parse("https://www.youtube.com/watch?v=abc123")
	got := chain.ApplyRewrite(u)
	assert.Equal(t, "www.youtube.com", got.Host)
}

func TestDefaultClassifiesLinkedin999AsOk(t *testing.T) {
	chain := Default()
	code, applied := chain.ApplyClassify("www.linkedin.com", 999)
	assert.True(t, applied)
	assert.Equal(t, 200, code)
}

func TestFirstMatchingQuirkWins(t *testing.T) {
	chain := Chain{
		{Name: "a", Predicate: hostIs("x.test"), Action: Action{Kind: AddHeader, HeaderKey: "X-Quirk", HeaderValue: "first"}},
		{Name: "b", Predicate: hostIs("x.test"), Action: Action{Kind: AddHeader, HeaderKey: "X-Quirk", HeaderValue: "second"}},
	}
	req, _ := http.NewRequest(http.MethodGet, "https://x.test/", nil)
	chain.ApplyHeaders(req)
	assert.Equal(t, "first", req.Header.Get("X-Quirk"))
}
