// Package cache implements the on-disk response cache (spec.md §4.6,
// component C6): a line-delimited `.lycheecache` file keyed by URI
// fingerprint, with TTL expiry, status-class exclusion, single-flight
// deduplication of concurrent misses, and crash-safe write-to-temp-then-
// rename writes.
package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// StatusClass is the coarse classification persisted to disk — finer
// detail (redirect chains, error messages) never survives a cache
// round-trip, by design (spec.md §4.6).
type StatusClass string

const (
	ClassOk         StatusClass = "ok"
	ClassRedirected StatusClass = "redirected"
	ClassExcluded   StatusClass = "excluded"
	ClassError      StatusClass = "error"
	ClassUnknown    StatusClass = "unknown"
	ClassTimeout    StatusClass = "timeout"
)

var recognizedClasses = map[StatusClass]struct{}{
	ClassOk: {}, ClassRedirected: {}, ClassExcluded: {},
	ClassError: {}, ClassUnknown: {}, ClassTimeout: {},
}

// Entry is one row of the cache.
type Entry struct {
	Fingerprint string
	Class       StatusClass
	LastChecked time.Time
}

// Options configures a Cache.
type Options struct {
	Path           string
	MaxAge         time.Duration
	ExcludeClasses map[StatusClass]struct{}
	Logger         zerolog.Logger
	Now            func() time.Time // overridable for tests
}

// Cache is the in-memory view of the on-disk store, plus the single-flight
// machinery that gives concurrent misses for the same key exactly one
// in-flight check (spec.md §8 invariant 3).
type Cache struct {
	opts    Options
	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool
	sf      singleflight.Group
	// disabled is set when cache I/O fails once; per spec.md §7 the
	// cache then degrades silently to an in-memory no-op for the rest of
	// the run after a single warning.
	disabled bool
}

// Load reads the cache file at opts.Path, if it exists, discarding stale
// entries (age > opts.MaxAge) and lines with an unrecognized status class
// (spec.md §4.6/§6). A missing file is not an error — it simply starts a
// cache with zero entries.
func Load(opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache{opts: opts, entries: map[string]Entry{}}
	if opts.Path == "" {
		return c
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			opts.Logger.Warn().Err(err).Str("path", opts.Path).Msg("cache load failed, disabling cache for this run")
			c.disabled = true
		}
		return c
	}
	defer f.Close()

	now := opts.Now()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		entry, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if opts.MaxAge > 0 && now.Sub(entry.LastChecked) > opts.MaxAge {
			continue
		}
		if _, excluded := opts.ExcludeClasses[entry.Class]; excluded {
			continue
		}
		c.entries[entry.Fingerprint] = entry
	}
	return c
}

func parseLine(line string) (Entry, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), ",", 3)
	if len(parts) != 3 {
		return Entry{}, false
	}
	class := StatusClass(parts[1])
	if _, ok := recognizedClasses[class]; !ok {
		return Entry{}, false
	}
	secs, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Fingerprint: parts[0], Class: class, LastChecked: time.Unix(secs, 0).UTC()}, true
}

// Get returns a cached class for fingerprint, if present and not
// excluded.
func (c *Cache) Get(fingerprint string) (StatusClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fingerprint]
	return e.Class, ok
}

// GetOrCheck returns the cached class for fingerprint if present;
// otherwise it runs check exactly once even under concurrent callers for
// the same fingerprint (single-flight, spec.md §4.6/§8 invariant 3), and
// stores the result unless its class is excluded from persistence.
func (c *Cache) GetOrCheck(fingerprint string, check func() (StatusClass, error)) (class StatusClass, hit bool, err error) {
	if class, ok := c.Get(fingerprint); ok {
		return class, true, nil
	}

	v, err, _ := c.sf.Do(fingerprint, func() (interface{}, error) {
		class, err := check()
		if err != nil {
			return StatusClass(""), err
		}
		c.store(fingerprint, class)
		return class, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(StatusClass), false, nil
}

func (c *Cache) store(fingerprint string, class StatusClass) {
	if _, excluded := c.opts.ExcludeClasses[class]; excluded {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = Entry{Fingerprint: fingerprint, Class: class, LastChecked: c.opts.Now()}
	c.dirty = true
}

// Flush persists the in-memory entry set to disk using a write-whole-
// file-then-rename strategy: the new content is written to a sibling
// ".tmp" file and atomically renamed over the real path, so a crash
// mid-write never leaves a torn cache file (spec.md §4.6).
func (c *Cache) Flush() error {
	if c.disabled || c.opts.Path == "" {
		return nil
	}
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	tmp := c.opts.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.opts.Path), 0o755); err != nil {
		return c.degrade(fmt.Errorf("create cache directory: %w", err))
	}
	f, err := os.Create(tmp)
	if err != nil {
		return c.degrade(fmt.Errorf("create cache temp file: %w", err))
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintf(w, "%s,%s,%d\n", e.Fingerprint, e.Class, e.LastChecked.Unix())
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return c.degrade(fmt.Errorf("flush cache temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		return c.degrade(fmt.Errorf("close cache temp file: %w", err))
	}
	if err := os.Rename(tmp, c.opts.Path); err != nil {
		return c.degrade(fmt.Errorf("rename cache temp file: %w", err))
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

func (c *Cache) degrade(err error) error {
	c.opts.Logger.Warn().Err(err).Msg("cache write failed, disabling cache for the rest of this run")
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	return err
}
