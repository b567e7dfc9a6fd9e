package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripWithinMaxAge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".lycheecache")

	base := time.Unix(1_700_000_000, 0)
	c := Load(Options{Path: path, MaxAge: time.Hour, Now: func() time.Time { return base }})
	_, _, err := c.GetOrCheck("https://example.com/", func() (StatusClass, error) { return ClassOk, nil })
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	reloaded := Load(Options{Path: path, MaxAge: time.Hour, Now: func() time.Time { return base.Add(30 * time.Minute) }})
	class, ok := reloaded.Get("https://example.com/")
	require.True(t, ok)
	assert.Equal(t, ClassOk, class)
}

func TestStaleEntriesDroppedOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".lycheecache")
	base := time.Unix(1_700_000_000, 0)

	c := Load(Options{Path: path, MaxAge: time.Hour, Now: func() time.Time { return base }})
	_, _, err := c.GetOrCheck("https://example.com/", func() (StatusClass, error) { return ClassOk, nil })
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	reloaded := Load(Options{Path: path, MaxAge: time.Hour, Now: func() time.Time { return base.Add(2 * time.Hour) }})
	_, ok := reloaded.Get("https://example.com/")
	assert.False(t, ok)
}

func TestExcludedClassNotPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".lycheecache")

	c := Load(Options{Path: path, ExcludeClasses: map[StatusClass]struct{}{ClassError: {}}, Now: time.Now})
	_, _, err := c.GetOrCheck("https://broken.example.com/", func() (StatusClass, error) { return ClassError, nil })
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	reloaded := Load(Options{Path: path, Now: time.Now})
	_, ok := reloaded.Get("https://broken.example.com/")
	assert.False(t, ok)
}

func TestUnrecognizedClassIgnoredOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".lycheecache")
	require.NoError(t, os.WriteFile(path, []byte("https://x.test,totally-unknown,1700000000\n"), 0o644))

	c := Load(Options{Path: path, Now: time.Now})
	_, ok := c.Get("https://x.test")
	assert.False(t, ok)
}

func TestSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	c := Load(Options{Now: time.Now})

	var calls int64
	var wg sync.WaitGroup
	results := make([]StatusClass, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			class, _, err := c.GetOrCheck("https://shared.example.com/", func() (StatusClass, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return ClassOk, nil
			})
			require.NoError(t, err)
			results[i] = class
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	for _, r := range results {
		assert.Equal(t, ClassOk, r)
	}
}
