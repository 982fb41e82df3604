package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig mirrors the teacher's database Config shape: connection pool
// sizing knobs threaded through from the top-level configuration.
type PoolConfig struct {
	DSN                string
	MaxConns           int32
	MinConns           int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	SlowQueryThreshold time.Duration
}

// Store wraps a pgx connection pool and exposes the Read API query layer
// plus the lower-level statements the Write Pipeline and Analysis Worker
// issue directly.
type Store struct {
	pool *pgxpool.Pool
	cfg  PoolConfig
	log  *slog.Logger
}

// Open runs pending migrations, establishes the connection pool, and
// returns a ready Store.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	if err := runMigrations(cfg.DSN); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parsing dsn: %w", err)
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
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: pinging database: %w", err)
	}

	return &Store{pool: pool, cfg: cfg, log: slog.With("component", "storage")}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Health reports whether the pool can currently reach the database.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) logSlow(op string, start time.Time) {
	if elapsed := time.Since(start); elapsed >= s.cfg.SlowQueryThreshold && s.cfg.SlowQueryThreshold > 0 {
		s.log.Warn("slow query", "op", op, "elapsed", elapsed)
	}
}
