// Package backoff computes reconnect delays for the push channel.
package backoff

import (
	"math"
	"time"
)

// Policy selects the delay strategy.
type Policy string

const (
	// PolicyFixed waits the base delay between every attempt. This is the
	// default: the upstream dashboard never escalates its wait time, it
	// just keeps knocking.
	PolicyFixed Policy = "fixed"

	// PolicyExponential doubles the delay per attempt up to Max. Offered
	// as a documented deviation for deployments where the backend takes
	// long outages; retries still continue indefinitely.
	PolicyExponential Policy = "exponential"
)

// Timer computes the delay before the next reconnect attempt.
// It holds no goroutines or timers itself; the connection manager owns
// scheduling and calls Next/Reset around its own lifecycle.
type Timer struct {
	policy  Policy
	base    time.Duration
	max     time.Duration
	attempt int
}

// New creates a backoff timer. A non-positive base falls back to 5s,
// a non-positive max falls back to 5m (only relevant for the exponential
// policy).
func New(policy Policy, base, max time.Duration) *Timer {
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if policy == "" {
		policy = PolicyFixed
	}
	return &Timer{policy: policy, base: base, max: max}
}

// Next returns the delay to wait before the upcoming attempt and advances
// the attempt counter.
func (t *Timer) Next() time.Duration {
	t.attempt++
	if t.policy == PolicyFixed {
		return t.base
	}

	delay := float64(t.base) * math.Pow(2, float64(t.attempt-1))
	if delay > float64(t.max) {
		delay = float64(t.max)
	}
	return time.Duration(delay)
}

// Reset restores the timer to its base value after a successful open.
func (t *Timer) Reset() {
	t.attempt = 0
}

// Attempt returns the number of delays handed out since the last reset.
func (t *Timer) Attempt() int {
	return t.attempt
}
