package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRetryPolicyRetriesServerErrors(t *testing.T) {
	p := newRetryPolicy(3, 10*time.Millisecond)
	d := p.decide(1, nil, http.StatusServiceUnavailable, 0)
	assert.True(t, d.Retry)
	assert.Greater(t, d.Delay, time.Duration(0))
}

func TestRetryPolicyGivesUpOnNonTransient(t *testing.T) {
	p := newRetryPolicy(3, 10*time.Millisecond)
	d := p.decide(1, nil, http.StatusNotFound, 0)
	assert.False(t, d.Retry)
	assert.Equal(t, "non-transient failure", d.Give)
}

func TestRetryPolicyHonorsMaxRetries(t *testing.T) {
	p := newRetryPolicy(2, 10*time.Millisecond)
	d := p.decide(3, nil, http.StatusServiceUnavailable, 0)
	assert.False(t, d.Retry)
	assert.Equal(t, "retries exhausted", d.Give)
}

func TestRetryPolicyHonorsRetryAfter(t *testing.T) {
	p := newRetryPolicy(3, 10*time.Millisecond)
	d := p.decide(1, nil, http.StatusTooManyRequests, 2*time.Second)
	assert.True(t, d.Retry)
	assert.Equal(t, 2*time.Second, d.Delay)
}

func TestRetryPolicyTreatsTimeoutAsTransient(t *testing.T) {
	p := newRetryPolicy(3, 10*time.Millisecond)
	d := p.decide(1, &net.DNSError{IsTimeout: true}, 0, 0)
	assert.True(t, d.Retry)
}

func TestRetryPolicyTreatsDNSFailureAsNonTransient(t *testing.T) {
	p := newRetryPolicy(3, 10*time.Millisecond)
	d := p.decide(1, errors.New("no such host"), 0, 0)
	assert.False(t, d.Retry)
}

func TestRetryAfterDelayParsesSeconds(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryAfterDelay("5"))
}

func TestRetryAfterDelayEmptyIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfterDelay(""))
}

func TestHostStateEnforcesConcurrency(t *testing.T) {
	reg := newHostRegistry(1, rate.Inf)
	hs := reg.get("h.test")

	release, err := hs.acquire(context.Background())
	assert.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := hs.acquire(context.Background())
		assert.NoError(t, err)
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not complete while first holds the permit")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	<-acquired
}

// TestHostStatePacesReleasesNotDispatches covers spec.md invariant #4: the
// minimum interval must hold between consecutive *releases*, even with
// host_concurrency > 1 where two permits can dispatch at the same instant.
func TestHostStatePacesReleasesNotDispatches(t *testing.T) {
	interval := 40 * time.Millisecond
	reg := newHostRegistry(2, rate.Every(interval))
	hs := reg.get("h.test")

	r1, err := hs.acquire(context.Background())
	assert.NoError(t, err)
	r2, err := hs.acquire(context.Background())
	assert.NoError(t, err)

	// Both permits dispatch together; releasing them back-to-back must
	// still be paced by interval, not by how close together they started.
	r1()
	t0 := time.Now()
	r2()
	assert.GreaterOrEqual(t, time.Since(t0), interval-5*time.Millisecond)
}
