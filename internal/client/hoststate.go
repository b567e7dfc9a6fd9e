package client

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostState is the per-host pacing primitive described in spec.md §4.8/§9:
// an independent concurrency permit (a counting semaphore sized
// host_concurrency) plus a rate.Limiter enforcing the minimum
// host_request_interval between consecutive releases.
type hostState struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// hostRegistry lazily constructs a hostState per "host:port" key, avoiding
// a global lock across unrelated hosts (spec.md §9 "Per-host state").
type hostRegistry struct {
	mu          sync.Mutex
	byKey       map[string]*hostState
	concurrency int
	interval    rate.Limit
}

func newHostRegistry(concurrency int, interval rate.Limit) *hostRegistry {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &hostRegistry{byKey: map[string]*hostState{}, concurrency: concurrency, interval: interval}
}

func (r *hostRegistry) get(key string) *hostState {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs, ok := r.byKey[key]
	if !ok {
		hs = &hostState{
			sem:     make(chan struct{}, r.concurrency),
			limiter: rate.NewLimiter(r.interval, 1),
		}
		r.byKey[key] = hs
	}
	return hs
}

// acquire blocks until a concurrency permit is free (spec.md §4.8). It
// returns a release func that must be called exactly once, and an error
// only if ctx is canceled first.
//
// The minimum host_request_interval is paced at release, not at
// acquisition: invariant #4 (spec.md:188) requires the gap to hold
// between consecutive *releases* of a host's permit, and with
// host_concurrency > 1 or variable request durations, pacing the
// dispatch start does not bound the gap between dispatch end times. The
// limiter is consulted inside the closure returned here so each release
// waits out whatever interval remains since the previous one before
// freeing the slot.
func (hs *hostState) acquire(ctx context.Context) (func(), error) {
	select {
	case hs.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return func() {
		_ = hs.limiter.Wait(context.Background())
		<-hs.sem
	}, nil
}
