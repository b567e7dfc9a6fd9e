package collect

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ignoreMatcher is a minimal .gitignore pattern matcher, modeled on the
// compile-then-match approach of crackcomm/go-gitignore: each non-comment,
// non-blank line becomes a compiled glob anchored the way git anchors
// gitignore patterns (a leading "/" ties the pattern to the ignore file's
// directory; otherwise it matches at any depth).
type ignoreMatcher struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	g        glob.Glob
	anchored bool
	negate   bool
	dirOnly  bool
}

func loadIgnore(root string, opts Options) (*ignoreMatcher, error) {
	if opts.NoIgnore {
		return nil, nil
	}
	path := filepath.Join(root, ".gitignore")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	m := &ignoreMatcher{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cp, err := compileIgnoreLine(line)
		if err != nil {
			continue
		}
		m.patterns = append(m.patterns, cp)
	}
	return m, sc.Err()
}

func compileIgnoreLine(line string) (compiledPattern, error) {
	cp := compiledPattern{}
	if strings.HasPrefix(line, "!") {
		cp.negate = true
		line = line[1:]
	}
	if strings.HasPrefix(line, "/") {
		cp.anchored = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		cp.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if !cp.anchored {
		line = "**/" + line
	}

	g, err := glob.Compile(line, '/')
	if err != nil {
		return cp, err
	}
	cp.g = g
	return cp, nil
}

// Matches reports whether rel (slash-separated, relative to the ignore
// file's directory) is ignored. Later matching patterns override earlier
// ones, mirroring git's own last-match-wins semantics; a final negated
// match un-ignores the path.
func (m *ignoreMatcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	ignored := false
	for _, p := range m.patterns {
		if p.g.Match(rel) || (!p.anchored && p.g.Match("/"+rel)) {
			ignored = !p.negate
		}
	}
	return ignored
}
