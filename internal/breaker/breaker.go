// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package breaker provides a generic three-state circuit breaker for calls
// into flaky external collaborators.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"
)

// State is the breaker's current disposition.
type State uint8

// Breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CodeOpen is the error code returned while the breaker is open.
const CodeOpen = "BREAKER_OPEN"

// Config tunes a Breaker. Zero values pick the defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Defaults to 5.
	FailureThreshold int

	// OpenFor is how long the breaker stays open before allowing a
	// half-open probe. Defaults to 30 seconds.
	OpenFor time.Duration

	// Now is the clock; defaults to time.Now. Injected for tests.
	Now func() time.Time
}

// Breaker wraps calls to an external collaborator, failing fast while the
// collaborator is considered down. Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	openedAt  time.Time
	probeBusy bool
}

// New creates a Breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// State returns the current state, accounting for open-interval expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observedState()
}

func (b *Breaker) observedState() State {
	if b.state == Open && b.cfg.Now().Sub(b.openedAt) >= b.cfg.OpenFor {
		return HalfOpen
	}
	return b.state
}

// Do runs fn under the breaker. While open it returns a CodeOpen error
// without invoking fn. In half-open state a single probe is admitted;
// concurrent callers fail fast until the probe settles.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	switch b.observedState() {
	case Open:
		b.mu.Unlock()
		return oops.Code(CodeOpen).With("state", "open").Errorf("circuit open")
	case HalfOpen:
		if b.probeBusy {
			b.mu.Unlock()
			return oops.Code(CodeOpen).With("state", "half-open").Errorf("probe in flight")
		}
		b.state = HalfOpen
		b.probeBusy = true
	case Closed:
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeBusy = false
	if err != nil {
		b.failures++
		if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = b.cfg.Now()
		}
		return err
	}
	b.state = Closed
	b.failures = 0
	return nil
}
