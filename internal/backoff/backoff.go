// Package backoff computes reconnect delays for the connection pool.
//
// Delays double on every call to Next until maxSteps delays have been
// handed out, then stay at the last value until Reset is called.
package backoff

import (
	"math"
	"sync"
	"time"
)

// Default values used when a zero Policy config is passed to New.
const (
	DefaultBase     = 1 * time.Second
	DefaultMaxSteps = 5
)

// Policy is a bounded exponential backoff. Safe for concurrent use.
type Policy struct {
	base     time.Duration
	maxSteps int

	mu   sync.Mutex
	step int
}

// New creates a policy starting at base and doubling at most maxSteps-1 times.
// maxSteps is lowered until the plateau delay fits in a time.Duration.
func New(base time.Duration, maxSteps int) *Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if maxSteps < 1 {
		maxSteps = DefaultMaxSteps
	}
	for maxSteps > 1 && (maxSteps-1 >= 63 || base > math.MaxInt64>>uint(maxSteps-1)) {
		maxSteps--
	}
	return &Policy{
		base:     base,
		maxSteps: maxSteps,
	}
}

// Next returns the delay to wait before the next attempt.
func (p *Policy) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.base << uint(p.step)
	if p.step < p.maxSteps-1 {
		p.step++
	}
	return d
}

// Reset returns the sequence to the base delay.
func (p *Policy) Reset() {
	p.mu.Lock()
	p.step = 0
	p.mu.Unlock()
}

// Max returns the plateau delay.
func (p *Policy) Max() time.Duration {
	return p.base << uint(p.maxSteps-1)
}
