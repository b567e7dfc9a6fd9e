package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlExtractor walks a parsed HTML5 tree with goquery (built on
// golang.org/x/net/html, the teacher's own HTML stack) and collects URIs
// from the attribute set appropriate to each tag, applying the
// context-sensitive filters from spec.md §4.3: dns-prefetch/preconnect
// links and disabled stylesheets are skipped, `prefix=` is never treated
// as a URL, and the fragment index is built from every `id=` plus anchor
// `name=`.
type htmlExtractor struct{}

type attrRule struct {
	tag   string
	attrs []string
}

var linkRules = []attrRule{
	{"a", []string{"href"}},
	{"img", []string{"src", "srcset"}},
	{"link", []string{"href"}},
	{"script", []string{"src"}},
	{"iframe", []string{"src"}},
	{"area", []string{"href"}},
	{"source", []string{"src", "srcset"}},
	{"embed", []string{"src"}},
}

func (htmlExtractor) Extract(content []byte) ([]RawURI, FragmentIndex, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(content)))
	if err != nil {
		return nil, nil, err
	}

	var raws []RawURI
	idx := FragmentIndex{}

	for _, rule := range linkRules {
		rule := rule
		doc.Find(rule.tag).Each(func(_ int, s *goquery.Selection) {
			if skipElement(rule.tag, s) {
				return
			}
			for _, attr := range rule.attrs {
				val, ok := s.Attr(attr)
				if !ok || strings.TrimSpace(val) == "" {
					continue
				}
				if attr == "srcset" {
					for _, u := range parseSrcset(val) {
						raws = append(raws, RawURI{Text: u, Element: rule.tag, Attribute: attr})
					}
					continue
				}
				raws = append(raws, RawURI{Text: strings.TrimSpace(val), Element: rule.tag, Attribute: attr})
			}
		})
	}

	doc.Find(`meta[http-equiv="refresh"]`).Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if u := parseMetaRefresh(content); u != "" {
			raws = append(raws, RawURI{Text: u, Element: "meta", Attribute: "content"})
		}
	})

	// HTML ids are matched exactly (after percent-decode) per spec.md
	// §4.9, unlike Markdown-derived heading slugs which are
	// case-insensitive, so these are kept verbatim rather than run
	// through NormalizeFragment.
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok {
			idx[strings.TrimSpace(id)] = struct{}{}
		}
	})
	doc.Find(`a[name]`).Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok {
			idx[strings.TrimSpace(name)] = struct{}{}
		}
	})

	return raws, idx, nil
}

// skipElement implements the exclusion rules from spec.md §4.3: never
// extract from a `prefix=` attribute context, skip dns-prefetch/preconnect
// <link> hints, and skip disabled stylesheets.
func skipElement(tag string, s *goquery.Selection) bool {
	if _, hasPrefix := s.Attr("prefix"); hasPrefix {
		return true
	}
	if tag != "link" {
		return false
	}
	if rel, ok := s.Attr("rel"); ok {
		rel = strings.ToLower(strings.TrimSpace(rel))
		if rel == "dns-prefetch" || rel == "preconnect" {
			return true
		}
		if rel == "stylesheet" {
			if _, disabled := s.Attr("disabled"); disabled {
				return true
			}
		}
	}
	return false
}

// parseSrcset yields the URL token from each comma-separated candidate,
// discarding the width/density descriptor that follows it (spec.md §4.3:
// "yields each URL after the first" refers to the first candidate being
// the baseline and every subsequent candidate also contributing its URL).
func parseSrcset(val string) []string {
	var out []string
	for _, candidate := range strings.Split(val, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}
	return out
}

// parseMetaRefresh extracts the URL from a `content="N; url=..."` meta
// refresh directive.
func parseMetaRefresh(content string) string {
	parts := strings.SplitN(content, ";", 2)
	if len(parts) != 2 {
		return ""
	}
	rest := strings.TrimSpace(parts[1])
	lower := strings.ToLower(rest)
	if !strings.HasPrefix(lower, "url=") {
		return ""
	}
	u := strings.TrimSpace(rest[len("url="):])
	u = strings.Trim(u, `"'`)
	return u
}
