package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/pkg/config"
	"github.com/noah-isme/student-portal/pkg/database"
)

// Backend is an opened store with its health probe.
type Backend struct {
	Store  RemoteStore
	Driver string
	Ping   func(ctx context.Context) error
	Close  func() error
}

// Open connects the backend selected by cfg.Store.Driver, migrating SQL
// schemas when cfg.Store.Migrate is set.
func Open(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		return &Backend{
			Store:  NewMemoryStore(),
			Driver: config.StoreDriverMemory,
			Ping:   func(context.Context) error { return nil },
			Close:  func() error { return nil },
		}, nil

	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return openSQL(db, cfg, "postgres", logger)

	case config.StoreDriverSQLite:
		db, err := database.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return openSQL(db, cfg, "sqlite3", logger)

	case config.StoreDriverRedis:
		client, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &Backend{
			Store:  NewRedisStore(client, cfg.Redis.KeyPrefix),
			Driver: config.StoreDriverRedis,
			Ping:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Close:  client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func openSQL(db *sqlx.DB, cfg *config.Config, migrateAs string, logger *zap.Logger) (*Backend, error) {
	if cfg.Store.Migrate {
		if err := Migrate(db.DB, migrateAs); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("store schema migrated", zap.String("driver", cfg.Store.Driver))
	}
	return &Backend{
		Store:  NewSQLStore(db),
		Driver: cfg.Store.Driver,
		Ping:   db.PingContext,
		Close:  db.Close,
	}, nil
}
