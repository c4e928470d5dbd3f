package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer *pgxpool.Pool 實作此介面
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
    id          BIGSERIAL PRIMARY KEY,
    match_id    TEXT        NOT NULL,
    kind        TEXT        NOT NULL,
    mode        TEXT        NOT NULL DEFAULT '',
    winner      TEXT        NOT NULL DEFAULT '',
    reason      TEXT        NOT NULL DEFAULT '',
    score       INTEGER     NOT NULL DEFAULT 0,
    players     JSONB       NOT NULL,
    ratings     JSONB,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_results_finished_at ON match_results (finished_at DESC);
`

const insertResult = `
INSERT INTO match_results (match_id, kind, mode, winner, reason, score, players, ratings, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// PostgresSink 把每場結果存一列到 match_results
type PostgresSink struct {
	db Execer
}

// NewPostgresSink 創建 PostgreSQL 寫入目標
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// NewPostgresPool 建立連線池
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema 建立資料表（冪等）
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

// Name 實作 Sink
func (s *PostgresSink) Name() string { return "postgres" }

// Write 實作 Sink
func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	var ratings []byte
	if len(rec.Ratings) > 0 {
		if ratings, err = json.Marshal(rec.Ratings); err != nil {
			return fmt.Errorf("marshal ratings: %w", err)
		}
	}

	if _, err := s.db.Exec(ctx, insertResult,
		rec.MatchID,
		string(rec.Kind),
		rec.Mode,
		rec.Winner,
		rec.Reason,
		rec.Score,
		players,
		ratings,
		rec.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}
