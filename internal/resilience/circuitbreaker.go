// Package resilience guards the transcription boundary against a failing
// backend.
//
// [Breaker] is a classic three-state circuit breaker (closed → open →
// half-open). [TranscriberChain] composes a primary transcriber with optional
// fallbacks, each behind its own breaker, so a dead backend is bypassed
// instead of stalling every window.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Execute] while the breaker is open
// and the reset timeout has not elapsed.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota
	// StateOpen rejects calls with [ErrBreakerOpen] until the reset
	// timeout elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through; success
	// closes the breaker, any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker]. Zero-value fields are
// replaced with defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string
	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default: 5.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration
	// HalfOpenMax caps concurrent probes in the half-open state. Default: 3.
	HalfOpenMax int
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	halfOpenFails int
}

// NewBreaker creates a [Breaker] with the supplied configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrBreakerOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenFails = 0
		slog.Info("circuit breaker transitioning to half-open", "name", b.name)
	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
	} else {
		b.succeed(probing)
	}
	return err
}

// fail updates failure accounting. Caller holds b.mu.
func (b *Breaker) fail(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		b.halfOpenFails++
		b.state = StateOpen
		b.failures = b.maxFailures
		slog.Warn("circuit breaker re-opened from half-open", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// succeed updates success accounting. Caller holds b.mu.
func (b *Breaker) succeed(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	if b.halfOpenCalls-b.halfOpenFails >= b.halfOpenMax {
		b.state = StateClosed
		b.failures = 0
		b.halfOpenCalls = 0
		b.halfOpenFails = 0
		slog.Info("circuit breaker closed after successful probes", "name", b.name)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the actual transition happens on the next
// Execute call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenFails = 0
	slog.Info("circuit breaker manually reset", "name", b.name)
}
