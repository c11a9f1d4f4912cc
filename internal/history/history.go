// Package history persists completed utterances so that dictated text
// survives the process and can be reviewed or re-typed later.
package history

import (
	"context"
	"sync"
	"time"
)

// Utterance is one completed dictation utterance.
type Utterance struct {
	// Session is the session epoch the utterance was dictated in.
	Session uint64
	// Sequence numbers the utterance within the coordinator's lifetime.
	Sequence uint64
	// Text is the final reconciled (and possibly polished) text.
	Text string
	// WordCount is the number of words emitted for the utterance.
	WordCount int
	// CreatedAt is when the utterance was completed.
	CreatedAt time.Time
}

// Store persists utterances. Implementations must be safe for concurrent use.
type Store interface {
	// SaveUtterance appends one utterance.
	SaveUtterance(ctx context.Context, u Utterance) error
	// Recent returns up to limit utterances, newest first.
	Recent(ctx context.Context, limit int) ([]Utterance, error)
}

// MemoryStore is an in-process Store used when no database is configured and
// in tests. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	utterances []Utterance
}

// Compile-time check that MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveUtterance implements [Store].
func (s *MemoryStore) SaveUtterance(_ context.Context, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterances = append(s.utterances, u)
	return nil
}

// Recent implements [Store].
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Utterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.utterances)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Utterance, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.utterances[i])
	}
	return out, nil
}
