package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// markdownExtractor parses Markdown to an AST with goldmark (GFM
// extensions enabled for autolinks/tables, matching the dialect most
// static-site generators and READMEs actually use) and walks it for
// link-bearing nodes, per spec.md §4.3.
type markdownExtractor struct {
	// IncludeVerbatim, when true, also extracts URIs found inside fenced
	// code blocks (spec.md §4.3: "skip code blocks unless
	// include_verbatim"). Defaults to false (zero value).
	IncludeVerbatim bool
}

var markdownParser = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

func (m markdownExtractor) Extract(content []byte) ([]RawURI, FragmentIndex, error) {
	reader := text.NewReader(content)
	doc := markdownParser.Parser().Parse(reader)

	var raws []RawURI
	idx := FragmentIndex{}
	seen := map[string]int{}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			addHeading(idx, seen, string(headingText(node, content)))
		case *ast.Link:
			raws = append(raws, rawFromDestination(node.Destination, node, content))
		case *ast.Image:
			raws = append(raws, rawFromDestination(node.Destination, node, content))
		case *ast.AutoLink:
			label := node.Label(content)
			raws = append(raws, RawURI{Text: string(label)})
		case *ast.FencedCodeBlock:
			if !m.IncludeVerbatim {
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return raws, idx, nil
}

func headingText(h *ast.Heading, source []byte) []byte {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return []byte(b.String())
}

func rawFromDestination(dest []byte, n ast.Node, source []byte) RawURI {
	span := [2]int{}
	if lines := n.Lines(); lines.Len() > 0 {
		seg := lines.At(0)
		span = [2]int{seg.Start, seg.Stop}
	}
	return RawURI{Text: string(dest), Span: span}
}

