package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DefaultRecentLimit applies when RecentRuns is asked for zero or fewer rows.
const DefaultRecentLimit = 20

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS pilot_runs (
            id         TEXT PRIMARY KEY,
            command    TEXT NOT NULL,
            ok         BOOLEAN NOT NULL,
            result     JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlCreateRunsIndex = `
        CREATE INDEX IF NOT EXISTS pilot_runs_created_at_idx ON pilot_runs (created_at DESC);
    `
	sqlInsertRun = `
        INSERT INTO pilot_runs (id, command, ok, result, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING;
    `
	sqlRecentRuns = `
        SELECT id, command, result, created_at
        FROM pilot_runs
        ORDER BY created_at DESC
        LIMIT $1;
    `
)

// Store keeps the history of planned and executed commands in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.HistoryStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the runs table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateRunsIndex} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveRun inserts one run. Saving the same ID twice is a no-op.
func (s *Store) SaveRun(ctx context.Context, rec schemas.RunRecord) error {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ok := !rec.Result.Failed() && rec.Result.OK
	if _, err := s.pool.Exec(ctx, sqlInsertRun, rec.ID, rec.Command, ok, result, createdAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}
	s.log.Debug("Run saved.", zap.String("run_id", rec.ID), zap.Bool("ok", ok))
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunRecord
	for rows.Next() {
		var (
			rec    schemas.RunRecord
			result []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Command, &result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if err := json.Unmarshal(result, &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of run %s: %w", rec.ID, err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during runs row iteration: %w", err)
	}
	return runs, nil
}
