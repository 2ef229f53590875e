package unmatched

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/rapvox/internal/resilience"
)

const ddlUnmatched = `
CREATE TABLE IF NOT EXISTS unmatched_utterances (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL DEFAULT '',
    kind        TEXT         NOT NULL DEFAULT 'unmatched',
    text        TEXT         NOT NULL,
    raw_text    TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

ALTER TABLE unmatched_utterances
    ADD COLUMN IF NOT EXISTS kind TEXT NOT NULL DEFAULT 'unmatched';

CREATE INDEX IF NOT EXISTS idx_unmatched_utterances_text
    ON unmatched_utterances (text);
`

const insertUnmatched = `
INSERT INTO unmatched_utterances (session_id, kind, text, raw_text, created_at)
VALUES ($1, $2, $3, $4, $5)`

// execer is the subset of *pgxpool.Pool used by PostgresSink.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink stores entries in the unmatched_utterances table. Writes go
// through a circuit breaker so an unavailable database is skipped quickly.
type PostgresSink struct {
	db      execer
	breaker *resilience.CircuitBreaker
	ping    func(context.Context) error
	close   func()
}

// NewPostgresSink connects to dsn, verifies the connection and creates the
// table if needed. The caller must call Close.
func NewPostgresSink(ctx context.Context, dsn string, breaker *resilience.CircuitBreaker) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unmatched: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unmatched: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unmatched: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlUnmatched); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unmatched: migrate: %w", err)
	}
	s := newPostgresSink(pool, breaker)
	s.ping = pool.Ping
	s.close = pool.Close
	return s, nil
}

func newPostgresSink(db execer, breaker *resilience.CircuitBreaker) *PostgresSink {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "unmatched-postgres"})
	}
	return &PostgresSink{db: db, breaker: breaker}
}

// Write inserts e. While the breaker is open it returns
// resilience.ErrCircuitOpen without touching the database.
func (s *PostgresSink) Write(ctx context.Context, e Entry) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, insertUnmatched, e.SessionID, string(e.Kind), e.Text, e.Raw, e.Time); err != nil {
			return fmt.Errorf("unmatched: insert: %w", err)
		}
		return nil
	})
}

// Ping checks that the database is reachable. Used as a readiness check.
func (s *PostgresSink) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("unmatched: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ Sink = (*PostgresSink)(nil)
