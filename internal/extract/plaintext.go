package extract

import (
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

// plaintextExtractor linkifies bare URLs and email addresses, per spec.md
// §4.3. Plaintext has no addressable anchors, so it never contributes a
// FragmentIndex.
type plaintextExtractor struct{}

var (
	strictURLRegexp = xurls.Strict()
	bareMailRegexp  = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
)

func (plaintextExtractor) Extract(content []byte) ([]RawURI, FragmentIndex, error) {
	text := string(content)

	var raws []RawURI
	for _, loc := range strictURLRegexp.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		trimmed, end := trimTrailingPeriod(match, loc[1])
		raws = append(raws, RawURI{Text: trimmed, Span: [2]int{loc[0], end}})
	}
	for _, loc := range bareMailRegexp.FindAllStringIndex(text, -1) {
		raws = append(raws, RawURI{Text: "mailto:" + text[loc[0]:loc[1]], Span: [2]int{loc[0], loc[1]}})
	}
	return raws, nil, nil
}

// trimTrailingPeriod implements spec.md §4.3's "do not treat trailing
// period as part of URL" rule: a sentence-ending "." immediately after a
// matched URL is not part of it.
func trimTrailingPeriod(match string, end int) (string, int) {
	if strings.HasSuffix(match, ".") {
		return strings.TrimSuffix(match, "."), end - 1
	}
	return match, end
}
