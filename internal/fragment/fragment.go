// Package fragment implements the fragment checker (spec.md §4.9,
// component C9): whether a URI's #fragment names an anchor that actually
// exists in the target document.
package fragment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tariktz/linkwarden/internal/collect"
	"github.com/tariktz/linkwarden/internal/errs"
	"github.com/tariktz/linkwarden/internal/extract"
	"github.com/tariktz/linkwarden/internal/uri"
)

// fileKey is the (path, mtime, size) memoization key for the local
// fragment index cache (spec.md §9 "Fragment index caching").
type fileKey struct {
	path  string
	mtime int64
	size  int64
}

// Checker checks whether a fragment exists in the resource a URI
// addresses, memoizing local file indexes.
type Checker struct {
	cache      *lru.Cache[fileKey, extract.FragmentIndex]
	httpClient *http.Client
}

// New builds a Checker with an in-memory fragment-index cache sized
// capacity entries.
func New(capacity int, httpClient *http.Client) (*Checker, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[fileKey, extract.FragmentIndex](capacity)
	if err != nil {
		return nil, fmt.Errorf("build fragment index cache: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Checker{cache: c, httpClient: httpClient}, nil
}

// targetKind classifies the resource u itself addresses (the link's
// target, not the document the link was found in) by its path extension,
// the same rule the collector uses for local files (spec.md §4.9 gates on
// "the response's" content kind). A target with no extension is assumed
// HTML for remote URIs (the common case: a served page with no file
// suffix) and Plaintext for local files, matching collect's own default.
func targetKind(u uri.URI) collect.ContentKind {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.URL().Path)), ".")
	if ext == "" {
		if u.Kind != uri.FileLocal {
			return collect.HTML
		}
		return collect.Plaintext
	}
	return collect.KindForExtension(ext)
}

// Activates reports whether the fragment checker applies at all, per
// spec.md §4.9: the response's content kind must be HTML, Markdown, or
// plain-text-with-a-.md-path, AND the URI must carry a non-empty fragment
// other than "top".
func Activates(u uri.URI) bool {
	frag := u.Fragment()
	if frag == "" || strings.EqualFold(frag, "top") {
		return false
	}
	switch targetKind(u) {
	case collect.HTML, collect.Markdown:
		return true
	default:
		return false
	}
}

// Check verifies u's fragment against the document at u, returning nil if
// the fragment exists (or is exempt), an errs.InvalidFragment error if it
// does not, or the error met while loading the target document.
// acceptedError reports whether the host response for u was already an
// accepted error class, in which case fragment checking is skipped
// (spec.md §4.9: "If the host response is an accepted error, fragment
// checking is skipped").
func (c *Checker) Check(ctx context.Context, u uri.URI, acceptedError bool) error {
	if acceptedError {
		return nil
	}
	if !Activates(u) {
		return nil
	}
	kind := targetKind(u)

	idx, markdownLike, err := c.index(ctx, u, kind)
	if err != nil {
		return err
	}

	frag := u.Fragment()
	id := frag
	if markdownLike {
		id = extract.NormalizeFragment(frag)
	} else {
		if decoded, derr := url.PathUnescape(frag); derr == nil {
			id = decoded
		}
	}

	if idx.Has(id) || (markdownLike && idx.Has(strings.ToLower(id))) {
		return nil
	}
	return errs.New(errs.InvalidFragment, fmt.Sprintf("fragment %q not found", frag), nil)
}

func (c *Checker) index(ctx context.Context, u uri.URI, kind collect.ContentKind) (extract.FragmentIndex, bool, error) {
	if u.Kind == uri.FileLocal {
		return c.localIndex(u.URL().Path, kind)
	}
	return c.remoteIndex(ctx, u, kind)
}

func (c *Checker) localIndex(path string, kind collect.ContentKind) (extract.FragmentIndex, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, errs.New(errs.InvalidFile, path, err)
	}
	key := fileKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()}
	if idx, ok := c.cache.Get(key); ok {
		return idx, kind != collect.HTML, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errs.New(errs.UnreadableInput, path, err)
	}
	if kind == collect.Plaintext {
		kind = collect.Markdown // a .md path with no other hint is markdown-like
	}
	x := extract.For(kind)
	_, idx, err := x.Extract(raw)
	if err != nil {
		return nil, false, fmt.Errorf("build fragment index for %q: %w", path, err)
	}
	c.cache.Add(key, idx)
	return idx, kind != collect.HTML, nil
}

func (c *Checker) remoteIndex(ctx context.Context, u uri.URI, kind collect.ContentKind) (extract.FragmentIndex, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, errs.New(errs.NetworkTransport, "build fragment fetch request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, errs.New(errs.NetworkTransport, "fetch body for fragment check", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, false, errs.New(errs.NetworkTransport, "read body for fragment check", err)
	}

	effectiveKind := kind
	if effectiveKind == collect.Plaintext {
		effectiveKind = collect.HTML
	}
	x := extract.For(effectiveKind)
	_, idx, err := x.Extract(raw)
	if err != nil {
		return nil, false, fmt.Errorf("build remote fragment index for %q: %w", u.String(), err)
	}
	return idx, effectiveKind != collect.HTML, nil
}
