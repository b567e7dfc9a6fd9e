package client

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDecision is the outcome of evaluating one attempt, per spec.md §9
// ("Retry/backoff as data"): a pure function of (attempt, lastErr,
// statusCode) rather than a stateful timer, so it can be unit tested
// without sleeping.
type retryDecision struct {
	Retry bool
	Delay time.Duration
	Give  string // reason, populated when Retry is false
}

// retryPolicy evaluates whether attempt should be retried, using a
// cenkalti/backoff/v4 exponential curve (factor 2, jittered) seeded from
// waitTime, capped at maxRetries retries after the first attempt.
type retryPolicy struct {
	maxRetries int
	waitTime   time.Duration
	curve      func() backoff.BackOff
}

func newRetryPolicy(maxRetries int, waitTime time.Duration) retryPolicy {
	return retryPolicy{
		maxRetries: maxRetries,
		waitTime:   waitTime,
		curve: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = waitTime
			b.Multiplier = 2
			b.MaxElapsedTime = 0 // bounded by maxRetries, not wall-clock
			return b
		},
	}
}

// decide evaluates attempt (1-indexed) given the error and/or HTTP status
// code observed. retryAfter, if non-zero, overrides the computed backoff
// delay (spec.md §4.8: "429 is retried respecting Retry-After").
func (p retryPolicy) decide(attempt int, err error, statusCode int, retryAfter time.Duration) retryDecision {
	if attempt > p.maxRetries {
		return retryDecision{Retry: false, Give: "retries exhausted"}
	}
	if !isTransient(err, statusCode) {
		return retryDecision{Retry: false, Give: "non-transient failure"}
	}

	if retryAfter > 0 {
		return retryDecision{Retry: true, Delay: retryAfter}
	}

	b := p.curve()
	delay := time.Duration(0)
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return retryDecision{Retry: true, Delay: delay}
}

// isTransient classifies the failure per spec.md §4.8: timeouts, 5xx
// outside the accept set, connection resets, and 429 are transient; DNS
// failures, TLS verification failures, and other 4xx are not.
func isTransient(err error, statusCode int) bool {
	if err != nil {
		var netErr net.Error
		if ok := asNetError(err, &netErr); ok && netErr.Timeout() {
			return true
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return false
		}
		return isConnectionReset(err)
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func isConnectionReset(err error) bool {
	var opErr *net.OpError
	for e := err; e != nil; {
		if oe, ok := e.(*net.OpError); ok {
			opErr = oe
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return opErr != nil
}
