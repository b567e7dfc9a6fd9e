package uri

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"website https", "https://example.com/a", Website},
		{"website http", "http://example.com/a", Website},
		{"mail", "mailto:jane@example.com", Mail},
		{"file", "file:///tmp/a.md", FileLocal},
		{"unsupported tel", "tel:+15551234567", Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestParseRelativeRequiresBase(t *testing.T) {
	_, err := Parse("page.html", nil)
	assert.Error(t, err)

	base, _ := url.Parse("https://example.com/docs/")
	got, err := Parse("page.html", base)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs/page.html", got.String())
}

func TestParseInvalidMail(t *testing.T) {
	_, err := Parse("mailto:not-an-address", nil)
	assert.Error(t, err)
}

func TestFingerprintIgnoresFragmentAndDefaultPort(t *testing.T) {
	a, err := Parse("https://Example.com:443/a/b/", nil)
	require.NoError(t, err)
	b, err := Parse("https://example.com/a/b#section", nil)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintKeepsNonDefaultPort(t *testing.T) {
	a, err := Parse("https://example.com:8443/a", nil)
	require.NoError(t, err)
	assert.Contains(t, a.Fingerprint(), ":8443")
}

func TestFingerprintPreservesQuery(t *testing.T) {
	a, err := Parse("https://example.com/search?q=go", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search?q=go", a.Fingerprint())
}

func TestIPClassification(t *testing.T) {
	loopback, _ := Parse("http://127.0.0.1/", nil)
	assert.True(t, loopback.IsLoopback())

	private, _ := Parse("http://10.1.2.3/", nil)
	assert.True(t, private.IsPrivate())

	linkLocal, _ := Parse("http://169.254.1.1/", nil)
	assert.True(t, linkLocal.IsLinkLocal())

	public, _ := Parse("http://93.184.216.34/", nil)
	assert.False(t, public.IsPrivate())
	assert.False(t, public.IsLoopback())
}
