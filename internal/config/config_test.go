package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariktz/linkwarden/internal/client"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.True(t, cfg.RespectRobotsTxt)
}

func TestLoadMalformedConfigIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMergesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user-agent: custom-bot/2.0\nmax-retries: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-bot/2.0", cfg.UserAgent)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestBuildPipelineOptionsCompilesFilterPatterns(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Exclude = []string{`\.pdf$`}
	cfg.ExcludeAllPrivate = true

	opts, err := cfg.BuildPipelineOptions()
	require.NoError(t, err)
	require.Len(t, opts.FilterPolicy.Exclude, 1)
	assert.True(t, opts.FilterPolicy.ExcludeAllPrivate)
}

func TestBuildPipelineOptionsWiresFragmentChecker(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.IncludeFragments = true

	opts, err := cfg.BuildPipelineOptions()
	require.NoError(t, err)
	assert.True(t, opts.IncludeFragments)
	require.NotNil(t, opts.FragmentChecker, "--include-fragments must not be a silent no-op")
}

func TestBuildPipelineOptionsRejectsBadRemap(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Remap = []string{"no-equals-sign"}

	_, err = cfg.BuildPipelineOptions()
	assert.Error(t, err)
}

func TestBuildClientOptionsParsesBasicAuth(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.BasicAuth = []string{"example.com:alice:s3cr3t"}

	clientOpts, err := cfg.buildClientOptions()
	require.NoError(t, err)
	require.Len(t, clientOpts.BasicAuth, 1)
	assert.Equal(t, client.BasicAuth{Host: "example.com", Username: "alice", Password: "s3cr3t"}, clientOpts.BasicAuth[0])
}

func TestParseTLSVersionDefaultsToTLS12(t *testing.T) {
	assert.Equal(t, client.TLS12, parseTLSVersion(""))
	assert.Equal(t, client.TLS13, parseTLSVersion("tls13"))
}
