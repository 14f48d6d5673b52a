// Package postgres persists cycle records in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/storage"
)

const defaultTable = "harpoon_cycles"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CycleStoreConfig controls the Postgres connection pool used for cycle rows.
type CycleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// CycleStore writes one row per cycle. The full result is kept as JSONB next
// to the summary columns used for querying.
type CycleStore struct {
	pool  pgxPool
	table string
}

// NewCycleStore connects a pool using cfg.
func NewCycleStore(ctx context.Context, cfg CycleStoreConfig) (*CycleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CycleStore{pool: pool, table: table}, nil
}

// NewCycleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCycleStoreWithPool(pool pgxPool, table string) (*CycleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &CycleStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *CycleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the cycle table when it does not exist.
func (s *CycleStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	hygiene_threshold DOUBLE PRECISION NOT NULL,
	max_iterations INTEGER,
	absorbed_count INTEGER NOT NULL,
	pending_count INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	mean_hygiene_score DOUBLE PRECISION,
	anchors JSONB NOT NULL,
	result JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create cycle table: %w", err)
	}
	return nil
}

// SaveCycle inserts record. Saving an existing ID is an error.
func (s *CycleStore) SaveCycle(ctx context.Context, record fragment.CycleRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("cycle store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	anchorsJSON, err := json.Marshal(record.Summary.Anchors)
	if err != nil {
		return fmt.Errorf("marshal anchors: %w", err)
	}
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	created_at,
	hygiene_threshold,
	max_iterations,
	absorbed_count,
	pending_count,
	iterations,
	mean_hygiene_score,
	anchors,
	result
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		record.ID,
		record.CreatedAt,
		record.Threshold,
		record.MaxIterations,
		record.Summary.AbsorbedCount,
		record.Summary.PendingCount,
		record.Summary.Iterations,
		record.Summary.HygieneScore,
		anchorsJSON,
		resultJSON,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// GetCycle loads a record by ID. The summary is recomputed from the stored
// result.
func (s *CycleStore) GetCycle(ctx context.Context, id string) (fragment.CycleRecord, error) {
	if s == nil || s.pool == nil {
		return fragment.CycleRecord{}, fmt.Errorf("cycle store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, created_at, hygiene_threshold, max_iterations, result
FROM %s
WHERE id = $1`, s.table)

	var (
		record     fragment.CycleRecord
		resultJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.CreatedAt,
		&record.Threshold,
		&record.MaxIterations,
		&resultJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fragment.CycleRecord{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return fragment.CycleRecord{}, fmt.Errorf("select cycle: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
		return fragment.CycleRecord{}, fmt.Errorf("unmarshal result: %w", err)
	}
	record.Summary = fragment.Summarize(record.Result)
	return record, nil
}
