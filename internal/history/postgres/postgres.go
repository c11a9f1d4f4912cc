// Package postgres provides a PostgreSQL-backed utterance history store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxtype/internal/history"
)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id           BIGSERIAL    PRIMARY KEY,
    session      BIGINT       NOT NULL,
    sequence     BIGINT       NOT NULL,
    text         TEXT         NOT NULL,
    word_count   INT          NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_session
    ON utterances (session);

CREATE INDEX IF NOT EXISTS idx_utterances_created_at
    ON utterances (created_at);
`

// Store implements [history.Store] on a PostgreSQL utterances table.
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check that Store satisfies history.Store.
var _ history.Store = (*Store)(nil)

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure the utterances table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the utterances table and its indexes. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUtterances); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}

// SaveUtterance implements [history.Store].
func (s *Store) SaveUtterance(ctx context.Context, u history.Utterance) error {
	const q = `
		INSERT INTO utterances (session, sequence, text, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		int64(u.Session),
		int64(u.Sequence),
		u.Text,
		u.WordCount,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("history store: save utterance: %w", err)
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Utterance, error) {
	const q = `
		SELECT session, sequence, text, word_count, created_at
		FROM   utterances
		ORDER  BY created_at DESC, id DESC
		LIMIT  $1`

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	utterances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Utterance, error) {
		var (
			u                 history.Utterance
			session, sequence int64
		)
		if err := row.Scan(&session, &sequence, &u.Text, &u.WordCount, &u.CreatedAt); err != nil {
			return history.Utterance{}, err
		}
		u.Session = uint64(session)
		u.Sequence = uint64(sequence)
		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: collect rows: %w", err)
	}
	return utterances, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
