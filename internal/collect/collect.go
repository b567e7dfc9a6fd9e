// Package collect implements the input collector (spec.md §4.2, component
// C2): it enumerates the heterogeneous input list (local paths, glob
// patterns, remote URLs, stdin, literal strings), honors gitignore/hidden
// rules, sniffs MIME type, and streams UTF-8 text content to the
// extractors. It generalizes the teacher's single `colly.Visit(rootURL)`
// entrypoint, which only ever read from the network, into a small
// dispatcher over several source kinds.
package collect

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

// ContentKind is the dispatch key extractors switch on (spec.md §3).
type ContentKind int

const (
	Plaintext ContentKind = iota
	Markdown
	HTML
)

func (k ContentKind) String() string {
	switch k {
	case Markdown:
		return "markdown"
	case HTML:
		return "html"
	default:
		return "plaintext"
	}
}

// SourceKind tags the variant held by Input.
type SourceKind int

const (
	FsPath SourceKind = iota
	FsGlob
	RemoteURL
	Stdin
	StringSource
)

// Input pairs a source with optional per-input overrides.
type Input struct {
	Kind    SourceKind
	Value   string // path, glob pattern, URL, or literal string content
	Headers map[string]string
	// KindHint forces a content kind, bypassing extension sniffing,
	// mirroring the --default-extension / per-input file-type hint.
	KindHint *ContentKind
}

// Content is a single collected document ready for extraction.
type Content struct {
	Source Input
	Kind   ContentKind
	Bytes  []byte
	// Path is the absolute filesystem directory the content was read
	// from, used by the resolver to complete relative links. Empty for
	// remote/stdin/string sources (those resolve against --base-url).
	Path string
}

// Options configures discovery and filtering behavior.
type Options struct {
	Extensions         []string // content kinds recognized by extension
	DefaultExtension   string   // forced kind when a file has no extension
	FallbackExtensions []string
	IndexFiles         []string
	GlobIgnoreCase     bool
	Hidden             bool // include dotfiles/dot-directories
	NoIgnore           bool // disable .gitignore honoring
	SkipMissing        bool // don't treat "no matches" as fatal
	UserAgent          string
	Logger             zerolog.Logger
	HTTPClient         *http.Client
}

func (o *Options) setDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = "linkwarden/1.0"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if len(o.IndexFiles) == 0 {
		o.IndexFiles = []string{"index.html", "index.md", "README.md"}
	}
}

// Collect enumerates inputs and streams their content to fn. An error
// collecting one input is handed to fn and collection moves on to the
// rest (spec.md §7: "Collector errors for a single input are surfaced
// per-input and do not stop other inputs"); collection stops early only
// when fn itself returns an error.
func Collect(inputs []Input, opts Options, fn func(Content, error) error) error {
	opts.setDefaults()

	for _, in := range inputs {
		var err error
		switch in.Kind {
		case FsPath:
			err = collectPath(in, opts, fn)
		case FsGlob:
			err = collectGlob(in, opts, fn)
		case RemoteURL:
			err = collectRemote(in, opts, fn)
		case Stdin:
			err = collectStdin(in, opts, fn)
		case StringSource:
			err = collectString(in, opts, fn)
		default:
			err = fmt.Errorf("unknown input kind %d", in.Kind)
		}
		if err != nil {
			if cbErr := fn(Content{Source: in}, err); cbErr != nil {
				return cbErr
			}
		}
	}
	return nil
}

// DumpSources enumerates the same inputs Collect would visit, without
// reading any bytes. This backs the --dump-inputs collaborator (spec.md
// §4.2).
func DumpSources(inputs []Input, opts Options) ([]Input, error) {
	opts.setDefaults()
	var out []Input
	for _, in := range inputs {
		switch in.Kind {
		case FsGlob:
			matches, err := expandGlob(in.Value, opts)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				out = append(out, Input{Kind: FsPath, Value: m, Headers: in.Headers, KindHint: in.KindHint})
			}
		default:
			out = append(out, in)
		}
	}
	return out, nil
}

func collectPath(in Input, opts Options, fn func(Content, error) error) error {
	info, err := os.Stat(in.Value)
	if err != nil {
		if opts.SkipMissing {
			return nil
		}
		return fmt.Errorf("stat input %q: %w", in.Value, err)
	}

	if info.IsDir() {
		return walkDir(in.Value, in, opts, fn)
	}
	return readFile(in.Value, in, opts, fn)
}

func walkDir(root string, in Input, opts Options, fn func(Content, error) error) error {
	ig, err := loadIgnore(root, opts)
	if err != nil {
		opts.Logger.Warn().Err(err).Str("dir", root).Msg("could not load .gitignore, continuing without it")
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fn(Content{Source: in}, fmt.Errorf("walk %q: %w", path, err))
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." && !opts.Hidden && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ig != nil && ig.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !hasRecognizedExtension(path, opts) {
			return nil
		}
		return readFile(path, in, opts, fn)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func hasRecognizedExtension(path string, opts Options) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return opts.DefaultExtension != ""
	}
	if len(opts.Extensions) == 0 {
		return KindForExtension(ext) != Plaintext || ext == "txt"
	}
	for _, want := range opts.Extensions {
		if strings.EqualFold(want, ext) {
			return true
		}
	}
	return false
}

// KindForExtension maps a bare file extension (no leading dot) to its
// ContentKind, the way the collector decides a local file's kind. Exported
// for callers (e.g. internal/fragment) that need to classify a URI's
// *target* resource rather than the document it was found in.
func KindForExtension(ext string) ContentKind {
	switch strings.ToLower(ext) {
	case "md", "markdown", "mdx":
		return Markdown
	case "html", "htm":
		return HTML
	default:
		return Plaintext
	}
}

func readFile(path string, in Input, opts Options, fn func(Content, error) error) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fn(Content{Source: in}, fmt.Errorf("read %q: %w", path, err))
	}

	if !isProbablyText(raw) {
		opts.Logger.Warn().Str("path", path).Msg("skipping binary or non-UTF-8 content")
		return nil
	}

	kind := detectKind(path, raw, in, opts)
	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return fn(Content{
		Source: in,
		Kind:   kind,
		Bytes:  raw,
		Path:   dir,
	}, nil)
}

func detectKind(path string, raw []byte, in Input, opts Options) ContentKind {
	if in.KindHint != nil {
		return *in.KindHint
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext != "" {
		return KindForExtension(ext)
	}
	if opts.DefaultExtension != "" {
		return KindForExtension(opts.DefaultExtension)
	}
	mt := mimetype.Detect(raw)
	if strings.Contains(mt.String(), "html") {
		return HTML
	}
	return Plaintext
}

// isProbablyText drops binary content at collection time (spec.md §4.2).
// mimetype.Detect inspects a content-type signature table the same way
// gabriel-vasile/mimetype is used elsewhere in the retrieved pack for
// binary/text disambiguation; utf8.Valid is the final authority since a
// text/* sniff can still contain invalid byte sequences in a truncated read.
func isProbablyText(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	if !utf8.Valid(raw) {
		return false
	}
	mt := mimetype.Detect(raw)
	for p := mt; p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return true
		}
	}
	return strings.HasPrefix(mt.String(), "text/") || strings.Contains(mt.String(), "xml")
}

func collectGlob(in Input, opts Options, fn func(Content, error) error) error {
	matches, err := expandGlob(in.Value, opts)
	if err != nil {
		return err
	}
	if len(matches) == 0 && !opts.SkipMissing {
		return fmt.Errorf("glob %q matched no files", in.Value)
	}
	sort.Strings(matches)
	for _, m := range matches {
		if err := readFile(m, in, opts, fn); err != nil {
			return err
		}
	}
	return nil
}

// expandGlob supports both simple single-segment glob patterns
// (github.com/gobwas/glob, the teacher's own indirect dependency) and
// "**"-recursive patterns (bmatcuk/doublestar): patterns containing "**"
// go to doublestar, all others to gobwas/glob.
func expandGlob(pattern string, opts Options) ([]string, error) {
	pattern = expandTilde(pattern)
	if opts.GlobIgnoreCase {
		pattern = "(?i)" + pattern
	}

	if strings.Contains(pattern, "**") {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		return matches, nil
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	dir := globBaseDir(pattern)
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if g.Match(path) {
			out = append(out, path)
		}
		return nil
	})
	return out, nil
}

func globBaseDir(pattern string) string {
	idx := strings.IndexAny(pattern, "*?[{")
	if idx < 0 {
		return filepath.Dir(pattern)
	}
	return filepath.Dir(pattern[:idx])
}

func expandTilde(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func collectRemote(in Input, opts Options, fn func(Content, error) error) error {
	req, err := http.NewRequest(http.MethodGet, in.Value, nil)
	if err != nil {
		return fmt.Errorf("build request for %q: %w", in.Value, err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", in.Value, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read body of %q: %w", in.Value, err)
	}
	if !isProbablyText(raw) {
		opts.Logger.Warn().Str("url", in.Value).Msg("skipping binary or non-UTF-8 content")
		return nil
	}

	kind := HTML
	if in.KindHint != nil {
		kind = *in.KindHint
	} else if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "markdown") {
		kind = Markdown
	}

	return fn(Content{Source: in, Kind: kind, Bytes: raw}, nil)
}

func collectStdin(in Input, opts Options, fn func(Content, error) error) error {
	raw, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	kind := Plaintext
	if in.KindHint != nil {
		kind = *in.KindHint
	} else if opts.DefaultExtension != "" {
		kind = KindForExtension(opts.DefaultExtension)
	}
	return fn(Content{Source: in, Kind: kind, Bytes: raw}, nil)
}

func collectString(in Input, opts Options, fn func(Content, error) error) error {
	kind := Plaintext
	if in.KindHint != nil {
		kind = *in.KindHint
	} else if opts.DefaultExtension != "" {
		kind = KindForExtension(opts.DefaultExtension)
	}
	return fn(Content{Source: in, Kind: kind, Bytes: []byte(in.Value)}, nil)
}
