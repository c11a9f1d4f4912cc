package history

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Guard wraps a [Store] and makes all operations non-fatal. If the underlying
// store fails, operations return defaults and log warnings instead of
// propagating errors, so dictation keeps working through a database restart
// or network partition. IsDegraded reports whether the store is currently
// experiencing failures.
//
// All methods are safe for concurrent use.
type Guard struct {
	store    Store
	degraded atomic.Bool
}

// Compile-time check that Guard satisfies Store.
var _ Store = (*Guard)(nil)

// NewGuard creates a [Guard] wrapping the given store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// SaveUtterance attempts to write to the underlying store. On failure the
// error is logged and swallowed; the store is marked as degraded. On success
// the degraded flag is cleared.
func (g *Guard) SaveUtterance(ctx context.Context, u Utterance) error {
	if err := g.store.SaveUtterance(ctx, u); err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: SaveUtterance failed, swallowing error",
			"session", u.Session,
			"utterance", u.Sequence,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// Recent attempts to read from the underlying store. On failure an empty
// slice is returned and the store is marked as degraded.
func (g *Guard) Recent(ctx context.Context, limit int) ([]Utterance, error) {
	utterances, err := g.store.Recent(ctx, limit)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: Recent failed, returning empty",
			"limit", limit,
			"error", err,
		)
		return []Utterance{}, nil
	}
	g.degraded.Store(false)
	return utterances, nil
}

// IsDegraded reports whether the most recent operation on the underlying
// store failed.
func (g *Guard) IsDegraded() bool {
	return g.degraded.Load()
}
