package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bissquit/contentq/internal/config"
	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/contentqueue/memory"
	queuepostgres "github.com/bissquit/contentq/internal/contentqueue/postgres"
	"github.com/bissquit/contentq/internal/contentqueue/sqlite"
	"github.com/bissquit/contentq/internal/pkg/metrics"
	"github.com/bissquit/contentq/internal/pkg/postgres"
	"github.com/bissquit/contentq/migrations"
)

// Store is the queue repository selected by database.driver.
type Store struct {
	contentqueue.Repository

	driver    string
	poolStats func() metrics.PoolStats
	close     func()
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the underlying connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects the configured store. The postgres schema is migrated
// first when database.auto_migrate is set; sqlite creates its schema on open.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := postgres.Migrate(migrations.FS, cfg.URL); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}

		pool, err := postgres.Connect(ctx, postgres.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnectTimeout:  cfg.ConnectTimeout,
			ConnectAttempts: cfg.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		return &Store{
			Repository: queuepostgres.NewRepository(pool),
			driver:     cfg.Driver,
			poolStats:  func() metrics.PoolStats { return metrics.PgxPoolStats(pool) },
			close:      pool.Close,
		}, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.Info("opened sqlite store", "path", cfg.Path)

		return &Store{
			Repository: repo,
			driver:     cfg.Driver,
			poolStats:  func() metrics.PoolStats { return metrics.SQLPoolStats(repo.DB()) },
			close: func() {
				if err := repo.Close(); err != nil {
					slog.Warn("failed to close sqlite store", "error", err)
				}
			},
		}, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store, queue contents are lost on exit")
		return &Store{Repository: memory.NewRepository(), driver: cfg.Driver}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
