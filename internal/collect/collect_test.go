package collect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCollectPathDetectsKindByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Title\n[x](https://example.com)\n")

	var got []Content
	err := Collect([]Input{{Kind: FsPath, Value: dir}}, Options{}, func(c Content, err error) error {
		require.NoError(t, err)
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Markdown, got[0].Kind)
}

func TestCollectHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored/\n")
	writeFile(t, dir, "ignored/skip.md", "skip me")
	writeFile(t, dir, "keep.md", "keep me")

	var names []string
	err := Collect([]Input{{Kind: FsPath, Value: dir}}, Options{}, func(c Content, err error) error {
		require.NoError(t, err)
		names = append(names, filepath.Base(c.Path))
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, names, "ignored")
}

func TestCollectSkipsHiddenUnlessRequested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".hidden.md", "hidden")
	writeFile(t, dir, "visible.md", "visible")

	var count int
	err := Collect([]Input{{Kind: FsPath, Value: dir}}, Options{}, func(c Content, err error) error {
		require.NoError(t, err)
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count = 0
	err = Collect([]Input{{Kind: FsPath, Value: dir}}, Options{Hidden: true}, func(c Content, err error) error {
		require.NoError(t, err)
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollectMissingInputSkipMissing(t *testing.T) {
	err := Collect([]Input{{Kind: FsPath, Value: "/does/not/exist"}}, Options{SkipMissing: true}, func(c Content, err error) error {
		t.Fatalf("callback should not be invoked: %v", err)
		return nil
	})
	require.NoError(t, err)
}

func TestCollectMissingInputErrors(t *testing.T) {
	var callbackErr error
	err := Collect([]Input{{Kind: FsPath, Value: "/does/not/exist"}}, Options{}, func(c Content, err error) error {
		callbackErr = err
		return nil
	})
	require.NoError(t, err)
	assert.Error(t, callbackErr)
}

func TestCollectStringSource(t *testing.T) {
	var got Content
	err := Collect([]Input{{Kind: StringSource, Value: "plain text with https://example.com"}}, Options{}, func(c Content, err error) error {
		require.NoError(t, err)
		got = c
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Plaintext, got.Kind)
}

func TestCollectBinaryContentSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0xff, 0xfe, 0x00}, 0o644))

	var count int
	err := Collect([]Input{{Kind: FsPath, Value: path}}, Options{}, func(c Content, err error) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
