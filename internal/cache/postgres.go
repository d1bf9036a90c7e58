package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// kytCacheSchema replaces the teacher's forensics schema (tx_heuristics,
// evidence_edge, anonset_windows) with the single generic table the
// Cache interface needs, plus the analysis_history audit table the
// Report Builder (C9) appends to. Grounded on internal/db/postgres.go's
// connect/schema-init/transaction style and the upstream service's
// app/cache/postgres.py + app/services/history_service.py.
const kytCacheSchema = `
CREATE TABLE IF NOT EXISTS kyt_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS analysis_history (
	id           BIGSERIAL PRIMARY KEY,
	chain        TEXT NOT NULL,
	tx_id        TEXT NOT NULL,
	trace_depth  INT NOT NULL,
	score        INT NOT NULL,
	level        TEXT NOT NULL,
	analyzed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_history_tx ON analysis_history (chain, tx_id);
`

// PostgresCache is a durable Cache backend over a single kyt_cache table,
// adapted from the teacher's PostgresStore connect/pool/schema wiring.
type PostgresCache struct {
	pool *pgxpool.Pool
}

var _ Cache = (*PostgresCache)(nil)

// Connect dials Postgres and initializes the schema.
func Connect(ctx context.Context, connStr string) (*PostgresCache, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, kytCacheSchema); err != nil {
		return nil, fmt.Errorf("schema init failed: %w", err)
	}

	log.Println("[Cache] connected to PostgreSQL cache backend")
	return &PostgresCache{pool: pool}, nil
}

func (p *PostgresCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt *time.Time
	err := p.pool.QueryRow(ctx, `SELECT value, expires_at FROM kyt_cache WHERE key = $1`, key).Scan(&value, &expiresAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errBackend("get", err)
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		_, _ = p.pool.Exec(ctx, `DELETE FROM kyt_cache WHERE key = $1`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (p *PostgresCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		expiresAt = &exp
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kyt_cache (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return errBackend("set", err)
	}
	return nil
}

func (p *PostgresCache) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kyt_cache WHERE key = $1`, key)
	if err != nil {
		return errBackend("delete", err)
	}
	return nil
}

func (p *PostgresCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *PostgresCache) Clear(ctx context.Context, prefix string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kyt_cache WHERE key LIKE $1`, prefix+"%")
	if err != nil {
		return errBackend("clear", err)
	}
	return nil
}

func (p *PostgresCache) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errBackend("ping", err)
	}
	return nil
}

func (p *PostgresCache) Close() error {
	p.pool.Close()
	return nil
}

// AppendAnalysisHistory records one completed analysis for audit,
// additive persistence that the Report Builder's return value never
// depends on (history_service.py).
func (p *PostgresCache) AppendAnalysisHistory(ctx context.Context, chain, txID string, depth, score int, level string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO analysis_history (chain, tx_id, trace_depth, score, level)
		VALUES ($1, $2, $3, $4, $5)
	`, chain, txID, depth, score, level)
	return err
}
