// Package pg implements storage.Backend on top of PostgreSQL using
// pgx/v5 and pgxpool, following the exact schema, transactional
// save-bundle, and recursive-CTE lineage query the store contract
// requires.
package pg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashita-ai/immagent/migrations"
)

// Backend wraps a pgxpool.Pool sized by the caller's PoolConfig.
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// PoolConfig controls the pool's size and connection lifetime, mirroring
// spec's min_size/max_size/max_inactive_connection_lifetime knobs.
type PoolConfig struct {
	MinSize                    int32
	MaxSize                    int32
	MaxInactiveConnLifetimeSec int32
}

// New parses dsn, applies cfg, and opens a connection pool. The pool is
// pinged once so construction fails fast on a bad DSN or unreachable
// server rather than on the first query.
func New(ctx context.Context, dsn string, cfg PoolConfig, logger *slog.Logger) (*Backend, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: parse dsn: %w", err)
	}
	if cfg.MinSize > 0 {
		poolCfg.MinConns = cfg.MinSize
	}
	if cfg.MaxSize > 0 {
		poolCfg.MaxConns = cfg.MaxSize
	}
	if cfg.MaxInactiveConnLifetimeSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.MaxInactiveConnLifetimeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage/pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage/pg: ping pool: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{pool: pool, logger: logger}, nil
}

// Pool exposes the underlying pool for callers that need direct access
// (e.g. health checks).
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }

// InitSchema runs every embedded migration file that hasn't already been
// applied, tracked in a schema_migrations table. It is safe to call on
// every startup.
func (b *Backend) InitSchema(ctx context.Context) error {
	return runMigrations(ctx, b.pool, migrations.FS, b.logger)
}

func (b *Backend) Close(ctx context.Context) error {
	b.pool.Close()
	return nil
}
