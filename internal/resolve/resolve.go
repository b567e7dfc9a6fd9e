// Package resolve implements the resolver (spec.md §4.4, component C4):
// it rewrites a RawURI into an absolute, checkable uri.URI, applying
// relative-URL completion, directory→index-file probing, fallback
// extensions, and the remap table.
package resolve

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tariktz/linkwarden/internal/extract"
	"github.com/tariktz/linkwarden/internal/uri"
)

// RemapRule rewrites a URI whose string form matches Pattern, replacing it
// with Replacement ($1-style capture references supported). The first
// matching rule wins (spec.md §4.4).
type RemapRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Context carries everything the resolver needs beyond the raw URI
// itself.
type Context struct {
	// FileDir is the absolute directory of the file the RawURI was found
	// in, used to complete file-relative links. Empty when the content
	// came from a non-file source (remote URL, stdin, string).
	FileDir string
	// BaseURL governs relative-URL completion when FileDir is empty.
	BaseURL *url.URL
	// RootDir, if set, must be absolute; it anchors URIs with a leading
	// "/" to a filesystem location distinct from FileDir/BaseURL
	// (spec.md §4.4's base-url/root-dir ambiguity rule).
	RootDir string

	IndexFiles         []string
	FallbackExtensions []string
	Remap              []RemapRule

	// statFile abstracts os.Stat for testability; defaults to a real
	// filesystem probe when nil.
	statFile func(path string) (isDir bool, exists bool)
}

// Validate enforces spec.md §4.4: "A relative local base is rejected with
// a clear error."
func (c Context) Validate() error {
	if c.BaseURL != nil && (c.BaseURL.Scheme == "" || c.BaseURL.Scheme == "file") && !filepath.IsAbs(c.BaseURL.Path) {
		return fmt.Errorf("config error: --base-url is a relative local path %q", c.BaseURL.Path)
	}
	if c.RootDir != "" && !filepath.IsAbs(c.RootDir) {
		return fmt.Errorf("config error: --root-dir must be absolute, got %q", c.RootDir)
	}
	return nil
}

func (c Context) stat(p string) (isDir bool, exists bool) {
	if c.statFile != nil {
		return c.statFile(p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return false, false
	}
	return info.IsDir(), true
}

// Resolve applies the five-step algorithm of spec.md §4.4 to raw, in the
// context ctx.
func Resolve(raw extract.RawURI, ctx Context) (uri.URI, error) {
	base := effectiveBase(ctx)

	text := raw.Text
	if ctx.RootDir != "" && strings.HasPrefix(text, "/") && !strings.HasPrefix(text, "//") {
		text = "file://" + filepath.Join(ctx.RootDir, text)
	}

	u, err := uri.Parse(text, base)
	if err != nil {
		return uri.URI{}, fmt.Errorf("resolve %q: %w", raw.Text, err)
	}

	if u.Kind == uri.FileLocal {
		u, err = resolveLocalFile(u, ctx)
		if err != nil {
			return uri.URI{}, err
		}
	}

	return applyRemap(u, ctx.Remap)
}

func effectiveBase(ctx Context) *url.URL {
	if ctx.FileDir != "" {
		return &url.URL{Scheme: "file", Path: ensureTrailingSlash(ctx.FileDir)}
	}
	return ctx.BaseURL
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// resolveLocalFile implements directory→index-file probing and fallback
// extension probing for file:// URIs (spec.md §4.4 steps 3-4).
func resolveLocalFile(u uri.URI, ctx Context) (uri.URI, error) {
	p := u.URL().Path
	isDir, exists := ctx.stat(p)

	if exists && isDir {
		for _, idxName := range ctx.IndexFiles {
			candidate := filepath.Join(p, idxName)
			if _, ok := ctx.stat(candidate); ok {
				return uri.Parse("file://"+candidate, nil)
			}
		}
		return u, nil
	}

	if !exists && len(ctx.FallbackExtensions) > 0 && path.Ext(p) == "" {
		for _, ext := range ctx.FallbackExtensions {
			candidate := p + "." + strings.TrimPrefix(ext, ".")
			if _, ok := ctx.stat(candidate); ok {
				return uri.Parse("file://"+candidate, nil)
			}
		}
	}

	return u, nil
}

func applyRemap(u uri.URI, rules []RemapRule) (uri.URI, error) {
	for _, rule := range rules {
		if rule.Pattern.MatchString(u.Raw) {
			rewritten := rule.Pattern.ReplaceAllString(u.Raw, rule.Replacement)
			return uri.Parse(rewritten, nil)
		}
	}
	return u, nil
}
