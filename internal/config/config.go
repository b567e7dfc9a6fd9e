// Package config declares the declarative configuration schema, keyed
// identically to the CLI flags, and builds the thin collaborator objects
// (collect.Options, resolve.Context, filter.Policy, client.Options,
// cache.Options) the core packages accept. It never contains checking
// logic itself.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tariktz/linkwarden/internal/cache"
	"github.com/tariktz/linkwarden/internal/client"
	"github.com/tariktz/linkwarden/internal/collect"
	"github.com/tariktz/linkwarden/internal/filter"
	"github.com/tariktz/linkwarden/internal/fragment"
	"github.com/tariktz/linkwarden/internal/logging"
	"github.com/tariktz/linkwarden/internal/pipeline"
	"github.com/tariktz/linkwarden/internal/quirks"
	"github.com/tariktz/linkwarden/internal/resolve"
)

// fragmentIndexCacheSize bounds the C9 fragment checker's in-memory
// local-file index memoization (spec.md §9 "Fragment index caching").
const fragmentIndexCacheSize = 256

// Config is the fully-resolved schema: one field per CLI flag family.
// Viper fills it from (in ascending priority) defaults, then the config
// file; environment variables are not read. cmd/ then overwrites the
// fields whose CLI flags the user set explicitly.
type Config struct {
	// Inputs
	FilesFrom string `mapstructure:"files-from"`

	// Discovery
	Extensions         []string `mapstructure:"extensions"`
	DefaultExtension   string   `mapstructure:"default-extension"`
	FallbackExtensions []string `mapstructure:"fallback-extensions"`
	IndexFiles         []string `mapstructure:"index-files"`
	GlobIgnoreCase     bool     `mapstructure:"glob-ignore-case"`
	Hidden             bool     `mapstructure:"hidden"`
	NoIgnore           bool     `mapstructure:"no-ignore"`
	SkipMissing        bool     `mapstructure:"skip-missing"`

	// Policy
	Include            []string `mapstructure:"include"`
	Exclude            []string `mapstructure:"exclude"`
	ExcludePath        []string `mapstructure:"exclude-path"`
	ExcludeAllPrivate  bool     `mapstructure:"exclude-all-private"`
	ExcludePrivate     bool     `mapstructure:"exclude-private"`
	ExcludeLinkLocal   bool     `mapstructure:"exclude-link-local"`
	ExcludeLoopback    bool     `mapstructure:"exclude-loopback"`
	IncludeMail        bool     `mapstructure:"include-mail"`
	IncludeFragments   bool     `mapstructure:"include-fragments"`
	Scheme             []string `mapstructure:"scheme"`
	Accept             []int    `mapstructure:"accept"`

	// Network
	Method               string            `mapstructure:"method"`
	Header               map[string]string `mapstructure:"header"`
	BasicAuth            []string          `mapstructure:"basic-auth"` // "host:user:pass"
	CookieJar            string            `mapstructure:"cookie-jar"`
	UserAgent            string            `mapstructure:"user-agent"`
	Insecure             bool              `mapstructure:"insecure"`
	MinTLS               string            `mapstructure:"min-tls"`
	Timeout              time.Duration     `mapstructure:"timeout"`
	MaxRedirects         int               `mapstructure:"max-redirects"`
	MaxRetries           int               `mapstructure:"max-retries"`
	RetryWaitTime        time.Duration     `mapstructure:"retry-wait-time"`
	MaxConcurrency       int               `mapstructure:"max-concurrency"`
	HostConcurrency      int               `mapstructure:"host-concurrency"`
	HostRequestInterval  time.Duration     `mapstructure:"host-request-interval"`
	GithubToken          string            `mapstructure:"github-token"`
	Offline              bool              `mapstructure:"offline"`
	Remap                []string          `mapstructure:"remap"` // "pattern=replacement"
	RequireHTTPS         bool              `mapstructure:"require-https"`
	RespectRobotsTxt     bool              `mapstructure:"respect-robots-txt"`

	// Resolution
	BaseURL string `mapstructure:"base-url"`
	RootDir string `mapstructure:"root-dir"`

	// Cache
	CachePath          string   `mapstructure:"cache"`
	MaxCacheAge        time.Duration `mapstructure:"max-cache-age"`
	CacheExcludeStatus []string `mapstructure:"cache-exclude-status"`

	// Reporting (collaborator; cmd/ consumes these, the core ignores them)
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load builds a viper instance seeded with defaults, optionally merges a
// config file at path (when non-empty), and unmarshals into a Config.
// Spec.md §6: "Malformed default config is a fatal error."
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config error: read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config error: decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("method", "GET")
	v.SetDefault("timeout", 20*time.Second)
	v.SetDefault("max-redirects", 10)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-wait-time", 500*time.Millisecond)
	v.SetDefault("max-concurrency", 8)
	v.SetDefault("host-concurrency", 4)
	v.SetDefault("user-agent", "linkwarden/1.0")
	v.SetDefault("index-files", []string{"index.html", "index.md", "README.md"})
	v.SetDefault("min-tls", "tls12")
	v.SetDefault("respect-robots-txt", true)
}

// BuildPipelineOptions converts the config into the pipeline.Options the
// core accepts. It is the single place CLI/config knowledge crosses into
// the core boundary (spec.md §1's "library embedding" collaborator).
func (c *Config) BuildPipelineOptions() (pipeline.Options, error) {
	clientOpts, err := c.buildClientOptions()
	if err != nil {
		return pipeline.Options{}, err
	}

	resolveCtx, err := c.buildResolveContext()
	if err != nil {
		return pipeline.Options{}, err
	}

	policy, err := c.buildFilterPolicy()
	if err != nil {
		return pipeline.Options{}, err
	}

	fragChecker, err := fragment.New(fragmentIndexCacheSize, client.NewHTTPClient(clientOpts))
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("config error: build fragment checker: %w", err)
	}

	collectOpts := c.buildCollectOptions()
	collectOpts.HTTPClient = client.NewHTTPClient(clientOpts)

	return pipeline.Options{
		CollectOptions:   collectOpts,
		ResolveContext:   resolveCtx,
		FilterPolicy:     policy,
		MaxConcurrency:   c.MaxConcurrency,
		ClientBuilder:    client.NewBuilder(clientOpts),
		Cache:            c.buildCache(),
		IncludeFragments: c.IncludeFragments,
		FragmentChecker:  fragChecker,
		Logger:           logging.Default(),
	}, nil
}

func (c *Config) buildCollectOptions() collect.Options {
	return collect.Options{
		Extensions:         c.Extensions,
		DefaultExtension:   c.DefaultExtension,
		FallbackExtensions: c.FallbackExtensions,
		IndexFiles:         c.IndexFiles,
		GlobIgnoreCase:     c.GlobIgnoreCase,
		Hidden:             c.Hidden,
		NoIgnore:           c.NoIgnore,
		SkipMissing:        c.SkipMissing,
		UserAgent:          c.UserAgent,
		Logger:             logging.Default(),
	}
}

func (c *Config) buildResolveContext() (resolve.Context, error) {
	ctx := resolve.Context{
		RootDir:            c.RootDir,
		IndexFiles:         c.IndexFiles,
		FallbackExtensions: c.FallbackExtensions,
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return resolve.Context{}, fmt.Errorf("config error: --base-url: %w", err)
		}
		ctx.BaseURL = u
	}
	for _, r := range c.Remap {
		parts := strings.SplitN(r, "=", 2)
		if len(parts) != 2 {
			return resolve.Context{}, fmt.Errorf("config error: --remap %q must be pattern=replacement", r)
		}
		re, err := regexp.Compile(parts[0])
		if err != nil {
			return resolve.Context{}, fmt.Errorf("config error: --remap pattern %q: %w", parts[0], err)
		}
		ctx.Remap = append(ctx.Remap, resolve.RemapRule{Pattern: re, Replacement: parts[1]})
	}
	return ctx, nil
}

func (c *Config) buildFilterPolicy() (filter.Policy, error) {
	p := filter.Policy{
		IncludeMail:       c.IncludeMail,
		ExcludePrivate:    c.ExcludePrivate,
		ExcludeLinkLocal:  c.ExcludeLinkLocal,
		ExcludeLoopback:   c.ExcludeLoopback,
		ExcludeAllPrivate: c.ExcludeAllPrivate,
		Offline:           c.Offline,
	}
	var err error
	if p.Include, err = compileAll(c.Include); err != nil {
		return filter.Policy{}, err
	}
	if p.Exclude, err = compileAll(c.Exclude); err != nil {
		return filter.Policy{}, err
	}
	if p.ExcludePaths, err = compileAll(c.ExcludePath); err != nil {
		return filter.Policy{}, err
	}
	if len(c.Scheme) > 0 {
		p.Schemes = map[string]struct{}{}
		for _, s := range c.Scheme {
			p.Schemes[strings.ToLower(s)] = struct{}{}
		}
	}
	return p, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("config error: invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (c *Config) buildClientOptions() (client.Options, error) {
	headers := toHeader(c.Header)

	var basicAuth []client.BasicAuth
	for _, ba := range c.BasicAuth {
		parts := strings.SplitN(ba, ":", 3)
		if len(parts) != 3 {
			return client.Options{}, fmt.Errorf("config error: --basic-auth %q must be host:user:pass", ba)
		}
		basicAuth = append(basicAuth, client.BasicAuth{Host: parts[0], Username: parts[1], Password: parts[2]})
	}

	var accept map[int]struct{}
	if len(c.Accept) > 0 {
		accept = map[int]struct{}{}
		for _, code := range c.Accept {
			accept[code] = struct{}{}
		}
	}

	return client.Options{
		Method:              strings.ToUpper(c.Method),
		Timeout:             c.Timeout,
		MaxRedirects:        c.MaxRedirects,
		UserAgent:           c.UserAgent,
		Insecure:            c.Insecure,
		MinTLSVersion:       parseTLSVersion(c.MinTLS),
		CustomHeaders:       headers,
		BasicAuth:           basicAuth,
		CookieJarPath:       c.CookieJar,
		GithubToken:         c.GithubToken,
		AcceptCodes:         accept,
		RequireHTTPS:        c.RequireHTTPS,
		HostConcurrency:     c.HostConcurrency,
		HostRequestInterval: c.HostRequestInterval,
		MaxRetries:          c.MaxRetries,
		RetryWaitTime:       c.RetryWaitTime,
		RespectRobotsTxt:    c.RespectRobotsTxt,
		Quirks:              quirks.Default(),
	}, nil
}

func parseTLSVersion(v string) client.TLSVersion {
	switch strings.ToLower(v) {
	case "tls10", "1.0":
		return client.TLS10
	case "tls11", "1.1":
		return client.TLS11
	case "tls13", "1.3":
		return client.TLS13
	default:
		return client.TLS12
	}
}

func (c *Config) buildCache() *cache.Cache {
	if c.CachePath == "" {
		return nil
	}
	exclude := map[cache.StatusClass]struct{}{}
	for _, s := range c.CacheExcludeStatus {
		exclude[cache.StatusClass(strings.ToLower(s))] = struct{}{}
	}
	return cache.Load(cache.Options{
		Path:           c.CachePath,
		MaxAge:         c.MaxCacheAge,
		ExcludeClasses: exclude,
		Logger:         logging.Default(),
	})
}

// toHeader adapts the viper-decoded string map into http.Header without
// importing net/http into the public field list above (mapstructure can't
// target http.Header directly).
func toHeader(m map[string]string) map[string][]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = []string{v}
	}
	return out
}
