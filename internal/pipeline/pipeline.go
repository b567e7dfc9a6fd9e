// Package pipeline implements the bounded-concurrency orchestrator
// (spec.md §4.10/§5, component C10): collect → extract → resolve+filter →
// cache lookup → check → fragment check → emit.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tariktz/linkwarden/internal/cache"
	"github.com/tariktz/linkwarden/internal/client"
	"github.com/tariktz/linkwarden/internal/collect"
	"github.com/tariktz/linkwarden/internal/extract"
	"github.com/tariktz/linkwarden/internal/filter"
	"github.com/tariktz/linkwarden/internal/fragment"
	"github.com/tariktz/linkwarden/internal/resolve"
	"github.com/tariktz/linkwarden/internal/uri"
)

// Response is one row of the pipeline's unordered output stream
// (spec.md §5).
type Response struct {
	RunID       string
	SourceValue string
	URI         uri.URI
	Status      client.Response
	Cached      bool
	Excluded    bool
	ExcludeWhy  filter.Reason
	Err         error
}

// Options configures a single pipeline run. It is the thin collaborator
// shape built by internal/config from CLI flags/viper (SPEC_FULL.md
// "CLI / config / report collaborators").
type Options struct {
	CollectOptions  collect.Options
	ResolveContext  resolve.Context
	FilterPolicy    filter.Policy
	MaxConcurrency  int
	ClientBuilder   *client.Builder
	Cache           *cache.Cache
	FragmentChecker *fragment.Checker
	IncludeFragments bool
	Logger          zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 8
	}
}

// rawItem carries a RawURI together with the collector context it was
// found in, so stage C can resolve it against the right base.
type rawItem struct {
	raw       extract.RawURI
	sourceVal string
	fileDir   string
}

// Run drives the full pipeline over inputs and returns an unordered
// result channel, closed when every input has been fully processed or ctx
// is canceled. The returned error is non-nil only for configuration
// problems discovered before any work starts (spec.md §7: "Configuration
// errors abort startup").
func Run(ctx context.Context, inputs []collect.Input, opts Options) (<-chan Response, error) {
	opts.setDefaults()
	if err := opts.ResolveContext.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	cl, err := opts.ClientBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("pipeline config: build client: %w", err)
	}

	runID := uuid.NewString()
	out := make(chan Response, opts.MaxConcurrency)

	go func() {
		defer close(out)
		defer cl.Close()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.MaxConcurrency)

		collectErr := collect.Collect(inputs, opts.CollectOptions, func(content collect.Content, cErr error) error {
			if cErr != nil {
				select {
				case out <- Response{RunID: runID, SourceValue: content.Source.Value, Err: cErr}:
				case <-gctx.Done():
				}
				return nil
			}

			raws, _, err := extract.Extract(content)
			if err != nil {
				select {
				case out <- Response{RunID: runID, SourceValue: content.Source.Value, Err: err}:
				case <-gctx.Done():
				}
				return nil
			}

			for _, raw := range raws {
				raw := raw
				item := rawItem{raw: raw, sourceVal: content.Source.Value, fileDir: content.Path}

				resolveCtx := opts.ResolveContext
				if item.fileDir != "" {
					resolveCtx.FileDir = item.fileDir
				}

				resolved, err := resolve.Resolve(item.raw, resolveCtx)
				if err != nil {
					select {
					case out <- Response{RunID: runID, SourceValue: item.sourceVal, Err: err}:
					case <-gctx.Done():
					}
					continue
				}

				allow, reason := opts.FilterPolicy.Allow(resolved)
				if !allow {
					select {
					case out <- Response{RunID: runID, SourceValue: item.sourceVal, URI: resolved, Excluded: true, ExcludeWhy: reason}:
					case <-gctx.Done():
					}
					continue
				}

				g.Go(func() error {
					resp := checkOne(gctx, cl, opts, runID, item.sourceVal, resolved)
					select {
					case out <- resp:
					case <-gctx.Done():
					}
					return nil
				})
			}
			return nil
		})

		_ = g.Wait()

		if opts.Cache != nil {
			if err := opts.Cache.Flush(); err != nil {
				opts.Logger.Warn().Err(err).Msg("cache flush failed at end of run")
			}
		}

		if collectErr != nil {
			select {
			case out <- Response{RunID: runID, Err: collectErr}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// checkOne runs stages D-F for a single filtered Request: cache
// short-circuit, network check with quirks already applied inside the
// client, fragment follow-up, and cache write-back.
func checkOne(ctx context.Context, cl *client.Client, opts Options, runID, sourceVal string, u uri.URI) Response {
	fingerprint := u.Fingerprint()

	var checkResp client.Response
	class, cached, err := cacheLookup(opts.Cache, fingerprint, func() (cache.StatusClass, error) {
		checkResp = cl.Check(ctx, u)
		return classFor(checkResp), nil
	})
	if err != nil {
		return Response{RunID: runID, SourceValue: sourceVal, URI: u, Err: err}
	}
	if cached {
		// Cache coherence: a hit suppresses the network call but never the
		// fragment check (spec.md §9 "Cache coherence").
		checkResp = client.Response{URI: u, Kind: kindForClass(class)}
	}

	if opts.IncludeFragments && opts.FragmentChecker != nil {
		acceptedErr := checkResp.Kind == client.StatusError || checkResp.Kind == client.StatusUnknownCode ||
			((checkResp.Kind == client.StatusOk || checkResp.Kind == client.StatusRedirected) && checkResp.Code >= 400)
		if fragErr := opts.FragmentChecker.Check(ctx, u, acceptedErr); fragErr != nil {
			return Response{RunID: runID, SourceValue: sourceVal, URI: u, Status: checkResp, Cached: cached, Err: fragErr}
		}
	}

	return Response{RunID: runID, SourceValue: sourceVal, URI: u, Status: checkResp, Cached: cached}
}

func cacheLookup(c *cache.Cache, fingerprint string, check func() (cache.StatusClass, error)) (cache.StatusClass, bool, error) {
	if c == nil {
		class, err := check()
		return class, false, err
	}
	return c.GetOrCheck(fingerprint, check)
}

func classFor(r client.Response) cache.StatusClass {
	switch r.Kind {
	case client.StatusOk:
		return cache.ClassOk
	case client.StatusRedirected:
		return cache.ClassRedirected
	case client.StatusUnsupported:
		return cache.ClassExcluded
	case client.StatusTimeout:
		return cache.ClassTimeout
	case client.StatusUnknownCode, client.StatusError:
		return cache.ClassError
	default:
		return cache.ClassUnknown
	}
}

func kindForClass(c cache.StatusClass) client.StatusKind {
	switch c {
	case cache.ClassOk:
		return client.StatusOk
	case cache.ClassRedirected:
		return client.StatusRedirected
	case cache.ClassExcluded:
		return client.StatusUnsupported
	case cache.ClassTimeout:
		return client.StatusTimeout
	case cache.ClassError:
		return client.StatusError
	default:
		return client.StatusError
	}
}
