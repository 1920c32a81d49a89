package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"launchmeme-terminal/internal/config"
	"launchmeme-terminal/internal/storage"
	chstore "launchmeme-terminal/internal/storage/clickhouse"
	"launchmeme-terminal/internal/storage/memory"
	"launchmeme-terminal/internal/storage/migrations"
	pgstore "launchmeme-terminal/internal/storage/postgres"
)

// archiveBackend is the market tape storage selected by config.
type archiveBackend struct {
	snapshots storage.TokenSnapshotStore
	trades    storage.TradeTapeStore
	close     func()
}

func (b archiveBackend) enabled() bool {
	return b.snapshots != nil && b.trades != nil
}

// openArchive connects to and migrates the configured archive backend.
func openArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (archiveBackend, error) {
	switch cfg.Archive {
	case config.ArchiveOff:
		return archiveBackend{close: func() {}}, nil

	case config.ArchiveMemory:
		return archiveBackend{
			snapshots: memory.NewTokenSnapshotStore(),
			trades:    memory.NewTradeTapeStore(),
			close:     func() {},
		}, nil

	case config.ArchivePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return archiveBackend{}, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return archiveBackend{}, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("archive backend ready", zap.String("backend", cfg.Archive))
		return archiveBackend{
			snapshots: pgstore.NewTokenSnapshotStore(pool),
			trades:    pgstore.NewTradeTapeStore(pool),
			close:     pool.Close,
		}, nil

	case config.ArchiveClickHouse:
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return archiveBackend{}, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			return archiveBackend{}, fmt.Errorf("migrate clickhouse: %w", err)
		}
		logger.Info("archive backend ready", zap.String("backend", cfg.Archive))
		return archiveBackend{
			snapshots: chstore.NewTokenSnapshotStore(conn),
			trades:    chstore.NewTradeTapeStore(conn),
			close:     func() { conn.Close() },
		}, nil
	}

	return archiveBackend{}, fmt.Errorf("unknown archive backend %q", cfg.Archive)
}
