// Package client implements the single Request→Response checker described
// in spec.md §4.8 (component C8): TLS configuration, method fallback,
// redirect tracking, cookie persistence, per-host pacing, retry/backoff,
// robots.txt politeness, quirks application, and GitHub token routing.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"

	"github.com/tariktz/linkwarden/internal/errs"
	"github.com/tariktz/linkwarden/internal/quirks"
	"github.com/tariktz/linkwarden/internal/uri"
)

// StatusKind is the terminal classification of a checked Request,
// matching the tagged variant in spec.md §3.
type StatusKind int

const (
	StatusOk StatusKind = iota
	StatusRedirected
	StatusUnknownCode
	StatusUnsupported
	StatusTimeout
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusOk:
		return "ok"
	case StatusRedirected:
		return "redirected"
	case StatusUnknownCode:
		return "unknown_status_code"
	case StatusUnsupported:
		return "unsupported"
	case StatusTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Response is the outcome of checking one URI (spec.md §3).
type Response struct {
	URI            uri.URI
	Kind           StatusKind
	Code           int
	Redirects      []string // the final landed URL when Kind == StatusRedirected; intermediate hops are not recorded
	UnsupportedWhy string
	Err            *errs.CheckError
}

// TLSVersion names the configurable minimum TLS floor (spec.md §4.8).
type TLSVersion int

const (
	TLS10 TLSVersion = iota
	TLS11
	TLS12
	TLS13
)

func (v TLSVersion) goVersion() uint16 {
	switch v {
	case TLS11:
		return tls.VersionTLS11
	case TLS12:
		return tls.VersionTLS12
	case TLS13:
		return tls.VersionTLS13
	default:
		return tls.VersionTLS10
	}
}

// BasicAuth is a per-host credential pair applied when the request's host
// matches Host exactly.
type BasicAuth struct {
	Host     string
	Username string
	Password string
}

// Options configures a Builder. Zero values all have sane defaults applied
// in NewBuilder, matching the CLI flag defaults described in spec.md §6.
type Options struct {
	Method            string
	Timeout           time.Duration
	MaxRedirects      int
	UserAgent         string
	Insecure          bool
	MinTLSVersion     TLSVersion
	CustomHeaders     http.Header
	BasicAuth         []BasicAuth
	CookieJarPath     string
	GithubToken       string
	AcceptCodes       map[int]struct{} // empty means the default 200-299 set
	RequireHTTPS      bool
	HostConcurrency   int
	HostRequestInterval time.Duration
	MaxRetries        int
	RetryWaitTime     time.Duration
	RespectRobotsTxt  bool
	Quirks            quirks.Chain
	Logger            zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	if o.Timeout == 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = 10
	}
	if o.UserAgent == "" {
		o.UserAgent = "linkwarden/1.0"
	}
	if o.HostConcurrency == 0 {
		o.HostConcurrency = 4
	}
	if o.HostRequestInterval == 0 {
		o.HostRequestInterval = 0
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryWaitTime == 0 {
		o.RetryWaitTime = 500 * time.Millisecond
	}
	if o.GithubToken == "" {
		o.GithubToken = os.Getenv("GITHUB_TOKEN")
	}
	if o.Quirks == nil {
		o.Quirks = quirks.Default()
	}
}

// Builder is the programmatic equivalent of the CLI's network flags (the
// §6 Library API ClientBuilder).
type Builder struct {
	opts Options
}

// NewBuilder seeds a Builder with opts, filling in defaults.
func NewBuilder(opts Options) *Builder {
	opts.setDefaults()
	return &Builder{opts: opts}
}

// Build constructs a Client ready to check requests.
func (b *Builder) Build() (*Client, error) {
	opts := b.opts

	jarOpts := &cookiejar.Options{PublicSuffixList: publicsuffix.List}
	jar, err := cookiejar.New(jarOpts)
	if err != nil {
		return nil, errs.New(errs.ConfigError, "build cookie jar", err)
	}
	if opts.CookieJarPath != "" {
		loadCookieJar(jar, opts.CookieJarPath)
	}

	httpClient := newHTTPClient(opts, jar)

	return &Client{
		opts:    opts,
		http:    httpClient,
		jar:     jar,
		hosts:   newHostRegistry(opts.HostConcurrency, rate.Every(opts.HostRequestInterval)),
		retry:   newRetryPolicy(opts.MaxRetries, opts.RetryWaitTime),
		robots:  newRobotsCache(opts.UserAgent),
		accept:  opts.AcceptCodes,
	}, nil
}

// newHTTPClient builds the net/http.Client shared by Build and by
// NewHTTPClient: TLS floor/insecure toggle, cookie jar, timeout, and a
// CheckRedirect that caps hop count at MaxRedirects.
func newHTTPClient(opts Options, jar http.CookieJar) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         opts.MinTLSVersion.goVersion(),
			InsecureSkipVerify: opts.Insecure,
		},
	}
	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// NewHTTPClient builds a bare net/http.Client from opts' TLS/timeout
// settings without the rest of a Client's per-host pacing/retry/quirk
// machinery, for collaborators (the C2 collector's remote-URL fetch, the
// C9 fragment checker's remote body scan) that need a correctly
// TLS-configured client but not a full checking Client.
func NewHTTPClient(opts Options) *http.Client {
	opts.setDefaults()
	return newHTTPClient(opts, nil)
}

// Client checks requests against the network, applying the full C8
// policy: per-host pacing, retries, redirects, quirks, and politeness.
type Client struct {
	opts   Options
	http   *http.Client
	jar    http.CookieJar
	hosts  *hostRegistry
	retry  retryPolicy
	robots *robotsCache
	accept map[int]struct{}

	mu      sync.Mutex
	visited map[string]*url.URL
}

// Close persists the cookie jar to disk, if configured.
func (c *Client) Close() error {
	if c.opts.CookieJarPath == "" {
		return nil
	}
	c.mu.Lock()
	visited := c.visited
	c.mu.Unlock()
	return saveCookieJar(c.jar, visited, c.opts.CookieJarPath)
}

// Check performs a single Request→Response check per spec.md §4.8.
func (c *Client) Check(ctx context.Context, u uri.URI) Response {
	switch u.Kind {
	case uri.Mail:
		return Response{URI: u, Kind: StatusOk, Code: 0}
	case uri.Unsupported:
		return Response{URI: u, Kind: StatusUnsupported, UnsupportedWhy: u.UnsupportedWhy}
	case uri.FileLocal:
		return c.checkLocalFile(u)
	}

	host := u.URL().Host
	hs := c.hosts.get(host)
	release, err := hs.acquire(ctx)
	if err != nil {
		return timeoutOrErr(u, err)
	}
	defer release()

	if c.opts.RespectRobotsTxt && !c.robots.allowed(ctx, c.http, u.URL()) {
		return Response{URI: u, Kind: StatusError, Err: errs.New(errs.HTTPStatus, "disallowed by robots.txt", nil)}
	}

	target := c.opts.Quirks.ApplyRewrite(u.URL())

	var lastErr error
	var lastCode int
	var redirected bool
	var finalURL string
	for attempt := 1; ; attempt++ {
		code, landedURL, retryAfterHdr, doErr := c.attempt(ctx, target)
		if doErr == nil {
			lastCode = code
			lastErr = nil
			redirected = landedURL != target.String()
			finalURL = landedURL
			if c.isAccepted(code) {
				break
			}

			retryAfter := time.Duration(0)
			if code == http.StatusTooManyRequests {
				retryAfter = retryAfterDelay(retryAfterHdr)
			}
			decision := c.retry.decide(attempt, nil, code, retryAfter)
			if !decision.Retry {
				break
			}
			if !sleep(ctx, decision.Delay) {
				return timeoutOrErr(u, ctx.Err())
			}
			continue
		}

		lastErr = doErr
		decision := c.retry.decide(attempt, doErr, 0, 0)
		if !decision.Retry {
			break
		}
		if !sleep(ctx, decision.Delay) {
			return timeoutOrErr(u, ctx.Err())
		}
	}

	if lastErr != nil {
		var netErr net.Error
		if asNetError(lastErr, &netErr) && netErr.Timeout() {
			return Response{URI: u, Kind: StatusTimeout, Err: errs.New(errs.Timeout, "request timed out", lastErr)}
		}
		return Response{URI: u, Kind: StatusError, Err: errs.New(errs.NetworkTransport, "request failed", lastErr)}
	}

	if overridden, applied := c.opts.Quirks.ApplyClassify(u.Host(), lastCode); applied {
		lastCode = overridden
	}

	var redirects []string
	if redirected {
		redirects = []string{finalURL}
	}
	return c.classify(u, lastCode, redirects)
}

// attempt issues one HTTP round trip (with HEAD→GET method fallback),
// returning the final status code, the final landed URL (for redirect
// detection against target), the Retry-After header if present, and any
// transport error. The response body is always drained and closed here:
// nothing downstream needs the bytes.
func (c *Client) attempt(ctx context.Context, target *url.URL) (code int, landedURL string, retryAfter string, err error) {
	method := c.opts.Method
	req, err := c.newRequest(ctx, method, target)
	if err != nil {
		return 0, "", "", err
	}

	resp, err := c.http.Do(req)
	if method == http.MethodHead && (err != nil || resp.StatusCode == http.StatusMethodNotAllowed) {
		if resp != nil {
			resp.Body.Close()
		}
		req2, err2 := c.newRequest(ctx, http.MethodGet, target)
		if err2 != nil {
			return 0, "", "", err2
		}
		resp, err = c.http.Do(req2)
	}
	if err != nil {
		return 0, "", "", err
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	c.recordVisited(resp.Request.URL)
	return resp.StatusCode, resp.Request.URL.String(), resp.Header.Get("Retry-After"), nil
}

func (c *Client) newRequest(ctx context.Context, method string, target *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for k, vals := range c.opts.CustomHeaders {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	c.opts.Quirks.ApplyHeaders(req)
	if quirks.GitHubTokenRule(target.Hostname()) && c.opts.GithubToken != "" {
		req.Header.Set("Authorization", "token "+c.opts.GithubToken)
	}
	for _, ba := range c.opts.BasicAuth {
		if strings.EqualFold(ba.Host, target.Hostname()) {
			req.SetBasicAuth(ba.Username, ba.Password)
		}
	}
	return req, nil
}

func (c *Client) classify(u uri.URI, code int, redirects []string) Response {
	if c.isAccepted(code) {
		if len(redirects) > 0 {
			return Response{URI: u, Kind: StatusRedirected, Code: code, Redirects: redirects}
		}
		if c.opts.RequireHTTPS && u.URL().Scheme == "http" {
			return Response{URI: u, Kind: StatusError, Code: code, Err: errs.New(errs.HTTPStatus, "http URL succeeded, https required", nil)}
		}
		return Response{URI: u, Kind: StatusOk, Code: code}
	}
	return Response{URI: u, Kind: StatusUnknownCode, Code: code, Err: errs.New(errs.HTTPStatus, fmt.Sprintf("status %d outside accept set", code), nil)}
}

func (c *Client) isAccepted(code int) bool {
	if len(c.accept) == 0 {
		return code >= 200 && code < 300
	}
	if _, ok := c.accept[code]; ok {
		return true
	}
	return code >= 200 && code < 300
}

func (c *Client) checkLocalFile(u uri.URI) Response {
	path := u.URL().Path
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Response{URI: u, Kind: StatusError, Err: errs.New(errs.InvalidFile, path, err)}
		}
		return Response{URI: u, Kind: StatusError, Err: errs.New(errs.UnreadableInput, path, err)}
	}
	return Response{URI: u, Kind: StatusOk}
}

func timeoutOrErr(u uri.URI, err error) Response {
	if err == context.DeadlineExceeded {
		return Response{URI: u, Kind: StatusTimeout, Err: errs.New(errs.Timeout, "deadline exceeded", err)}
	}
	return Response{URI: u, Kind: StatusError, Err: errs.New(errs.NetworkTransport, "request canceled", err)}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// cookieJarFile is the minimal JSON shape persisted for --cookie-jar: one
// entry per origin the run actually visited, since net/http.CookieJar
// exposes Cookies(u) per-URL but has no "list everything" method.
type cookieJarFile struct {
	URL     string         `json:"url"`
	Cookies []cookieRecord `json:"cookies"`
}

type cookieRecord struct {
	Name, Value, Path, Domain string
	Expires                   time.Time
}

func loadCookieJar(jar http.CookieJar, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var files []cookieJarFile
	if err := json.Unmarshal(data, &files); err != nil {
		return
	}
	for _, f := range files {
		u, err := url.Parse(f.URL)
		if err != nil {
			continue
		}
		cookies := make([]*http.Cookie, 0, len(f.Cookies))
		for _, cr := range f.Cookies {
			cookies = append(cookies, &http.Cookie{Name: cr.Name, Value: cr.Value, Path: cr.Path, Domain: cr.Domain, Expires: cr.Expires})
		}
		jar.SetCookies(u, cookies)
	}
}

// recordVisited remembers origins the client has issued requests to, so
// Close can later ask the jar for that origin's cookies.
func (c *Client) recordVisited(u *url.URL) {
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visited == nil {
		c.visited = map[string]*url.URL{}
	}
	c.visited[origin.String()] = origin
}

func saveCookieJar(jar http.CookieJar, visited map[string]*url.URL, path string) error {
	files := make([]cookieJarFile, 0, len(visited))
	for _, u := range visited {
		cookies := jar.Cookies(u)
		if len(cookies) == 0 {
			continue
		}
		records := make([]cookieRecord, 0, len(cookies))
		for _, ck := range cookies {
			records = append(records, cookieRecord{Name: ck.Name, Value: ck.Value, Path: ck.Path, Domain: ck.Domain, Expires: ck.Expires})
		}
		files = append(files, cookieJarFile{URL: u.String(), Cookies: records})
	}
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// robotsCache fetches and caches robots.txt per host (spec.md §4.8
// politeness supplement), consulted before checking a Website URI unless
// disabled.
type robotsCache struct {
	userAgent string
	mu        sync.Mutex
	data      map[string]*robotstxt.RobotsData
}

func newRobotsCache(userAgent string) *robotsCache {
	return &robotsCache{userAgent: userAgent, data: map[string]*robotstxt.RobotsData{}}
}

func (r *robotsCache) allowed(ctx context.Context, hc *http.Client, target *url.URL) bool {
	host := target.Hostname()
	r.mu.Lock()
	rd, ok := r.data[host]
	r.mu.Unlock()
	if !ok {
		rd = r.fetch(ctx, hc, target)
		r.mu.Lock()
		r.data[host] = rd
		r.mu.Unlock()
	}
	if rd == nil {
		return true
	}
	group := rd.FindGroup(r.userAgent)
	return group.Test(target.Path)
}

func (r *robotsCache) fetch(ctx context.Context, hc *http.Client, target *url.URL) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	rd, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return rd
}

// retryAfterDelay parses a Retry-After header value in either delta-seconds
// or HTTP-date form, returning zero if absent/unparseable.
func retryAfterDelay(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
