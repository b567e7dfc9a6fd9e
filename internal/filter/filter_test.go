package filter

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariktz/linkwarden/internal/uri"
)

func parse(t *testing.T, raw string) uri.URI {
	t.Helper()
	u, err := uri.Parse(raw, nil)
	require.NoError(t, err)
	return u
}

func TestOfflineExcludesEverything(t *testing.T) {
	ok, reason := Policy{Offline: true}.Allow(parse(t, "https://example.com"))
	assert.False(t, ok)
	assert.Equal(t, ReasonOffline, reason)
}

func TestIncludeMustMatch(t *testing.T) {
	p := Policy{Include: []*regexp.Regexp{regexp.MustCompile(`^https://allowed\.`)}}
	ok, reason := p.Allow(parse(t, "https://other.example.com"))
	assert.False(t, ok)
	assert.Equal(t, ReasonIncludeMiss, reason)

	ok, _ = p.Allow(parse(t, "https://allowed.example.com"))
	assert.True(t, ok)
}

func TestExcludeWins(t *testing.T) {
	p := Policy{Exclude: []*regexp.Regexp{regexp.MustCompile(`blocked`)}}
	ok, reason := p.Allow(parse(t, "https://blocked.example.com"))
	assert.False(t, ok)
	assert.Equal(t, ReasonExcludeMatch, reason)
}

func TestSchemeAllowList(t *testing.T) {
	p := Policy{Schemes: map[string]struct{}{"https": {}}}
	ok, reason := p.Allow(parse(t, "http://example.com"))
	assert.False(t, ok)
	assert.Equal(t, ReasonScheme, reason)
}

func TestMailRequiresToggle(t *testing.T) {
	p := Policy{}
	ok, reason := p.Allow(parse(t, "mailto:a@example.com"))
	assert.False(t, ok)
	assert.Equal(t, ReasonMail, reason)

	p.IncludeMail = true
	ok, _ = p.Allow(parse(t, "mailto:a@example.com"))
	assert.True(t, ok)
}

func TestExcludeAllPrivateIsCompound(t *testing.T) {
	p := Policy{ExcludeAllPrivate: true}
	for _, raw := range []string{"http://127.0.0.1/", "http://10.0.0.1/", "http://169.254.1.1/"} {
		ok, _ := p.Allow(parse(t, raw))
		assert.False(t, ok, raw)
	}
}

func TestMonotonicityTighteningShrinksPassingSet(t *testing.T) {
	loose := Policy{}
	tight := Policy{Schemes: map[string]struct{}{"https": {}}}

	candidates := []string{"https://a.test", "http://b.test", "mailto:c@test.com"}
	var loosePass, tightPass []string
	for _, c := range candidates {
		if ok, _ := loose.Allow(parse(t, c)); ok {
			loosePass = append(loosePass, c)
		}
		if ok, _ := tight.Allow(parse(t, c)); ok {
			tightPass = append(tightPass, c)
		}
	}
	for _, c := range tightPass {
		assert.Contains(t, loosePass, c)
	}
	assert.Less(t, len(tightPass), len(loosePass))
}

func TestPathExclude(t *testing.T) {
	p := Policy{ExcludePaths: []*regexp.Regexp{regexp.MustCompile(`^/admin/`)}}
	ok, reason := p.Allow(parse(t, "https://example.com/admin/secret"))
	assert.False(t, ok)
	assert.Equal(t, ReasonPathExclude, reason)
}
