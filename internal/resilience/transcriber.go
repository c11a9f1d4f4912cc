package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MrWong99/voxtype/pkg/provider/stt"
)

// ErrAllBackendsFailed is returned when every transcriber in a
// [TranscriberChain] fails or has an open breaker.
var ErrAllBackendsFailed = errors.New("all transcription backends failed")

// Compile-time interface assertion.
var _ stt.Transcriber = (*TranscriberChain)(nil)

// chainEntry pairs a transcriber with its dedicated breaker.
type chainEntry struct {
	name        string
	transcriber stt.Transcriber
	breaker     *Breaker
}

// TranscriberChain implements [stt.Transcriber] with automatic failover
// across multiple backends. Each backend has its own circuit breaker;
// backends are tried in registration order and a backend with an open
// breaker is skipped without being called.
type TranscriberChain struct {
	mu      sync.RWMutex
	entries []chainEntry
	cfg     BreakerConfig
}

// NewTranscriberChain creates a chain with primary as the preferred backend.
// cfg configures the per-backend breakers; cfg.Name is overridden per entry.
func NewTranscriberChain(primaryName string, primary stt.Transcriber, cfg BreakerConfig) *TranscriberChain {
	c := &TranscriberChain{cfg: cfg}
	c.AddFallback(primaryName, primary)
	return c
}

// AddFallback registers an additional backend, tried after all earlier ones.
func (c *TranscriberChain) AddFallback(name string, t stt.Transcriber) {
	bcfg := c.cfg
	bcfg.Name = name
	c.mu.Lock()
	c.entries = append(c.entries, chainEntry{
		name:        name,
		transcriber: t,
		breaker:     NewBreaker(bcfg),
	})
	c.mu.Unlock()
}

// Transcribe runs the window against the first healthy backend. A backend
// failure is recorded on its breaker and the next backend is tried; only when
// every backend fails is an error returned, wrapping the last failure.
func (c *TranscriberChain) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	c.mu.RLock()
	entries := c.entries
	c.mu.RUnlock()

	var lastErr error
	for _, e := range entries {
		var result stt.Transcript
		err := e.breaker.Execute(func() error {
			var terr error
			result, terr = e.transcriber.Transcribe(ctx, samples)
			return terr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			// Cancellation is not a backend fault; stop immediately.
			return stt.Transcript{}, err
		}
		lastErr = err
		if !errors.Is(err, ErrBreakerOpen) {
			slog.Warn("transcription backend failed, trying next",
				"backend", e.name,
				"error", err)
		}
	}
	if lastErr == nil {
		lastErr = ErrAllBackendsFailed
	}
	return stt.Transcript{}, errors.Join(ErrAllBackendsFailed, lastErr)
}
