// Package extract implements the per-format link extractors (spec.md
// §4.3, component C3): Markdown AST walking, HTML5 tree walking, and
// plaintext linkify. Each extractor is a pure function over an in-memory
// buffer — no state survives between calls, satisfying the idempotence
// invariant in spec.md §8 (invariant 5).
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tariktz/linkwarden/internal/collect"
)

// RawURI is an unresolved link found in a document, together with enough
// context for the resolver/filter to make context-sensitive decisions
// (spec.md §3).
type RawURI struct {
	Text      string
	Span      [2]int // byte offsets [start, end) into the originating content
	Element   string // HTML tag name, empty for Markdown/plaintext
	Attribute string // HTML attribute name, empty for Markdown/plaintext
}

// FragmentIndex maps a normalized fragment id to existence, built lazily
// per document (spec.md §3/§9).
type FragmentIndex map[string]struct{}

// Has reports whether id exists. Markdown indexes hold lower-cased heading
// slugs (compare against NormalizeFragment output); HTML indexes hold ids
// verbatim.
func (f FragmentIndex) Has(id string) bool {
	_, ok := f[id]
	return ok
}

// Extractor discovers RawURI occurrences and, where the format defines
// addressable anchors, a FragmentIndex.
type Extractor interface {
	Extract(content []byte) ([]RawURI, FragmentIndex, error)
}

// For returns the Extractor appropriate for kind.
func For(kind collect.ContentKind) Extractor {
	switch kind {
	case collect.Markdown:
		return markdownExtractor{}
	case collect.HTML:
		return htmlExtractor{}
	default:
		return plaintextExtractor{}
	}
}

// Extract dispatches content.Bytes to the right extractor.
func Extract(content collect.Content) ([]RawURI, FragmentIndex, error) {
	x := For(content.Kind)
	uris, idx, err := x.Extract(content.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s content: %w", content.Kind, err)
	}
	return uris, idx, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// kebab turns heading text into a GitHub-style slug: lower-case,
// non-alphanumerics collapsed to single hyphens, edges trimmed. Duplicate
// slugs are disambiguated by the caller with a numeric suffix
// (spec.md §4.3).
func kebab(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeFragment lower-cases a fragment id the way spec.md §3/§4.9
// requires for Markdown-derived ids, also recognizing the GitHub
// `user-content-` prefix variant as an alias of the bare id. It does not
// percent-decode: uri.URI.Fragment already returns the decoded form.
func NormalizeFragment(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.ToLower(id), "user-content-"))
}

func addHeading(idx FragmentIndex, seen map[string]int, raw string) {
	slug := kebab(raw)
	if slug == "" {
		return
	}
	if n, ok := seen[slug]; ok {
		seen[slug] = n + 1
		slug = fmt.Sprintf("%s-%d", slug, n)
	} else {
		seen[slug] = 1
	}
	idx[slug] = struct{}{}
	idx["user-content-"+slug] = struct{}{}
}
