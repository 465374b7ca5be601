package startup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/storage"
	"github.com/waclient/internal/storage/memory"
	"github.com/waclient/internal/storage/postgres"
)

// OpenRecordStore выбирает бэкенд записей по cfg.Backend: memory, redis или postgres.
func OpenRecordStore(cfg *config.ServerConfig) (storage.RecordStore, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Info("record store: memory")
		return memory.New(), nil
	case "redis":
		logger.Info("record store: redis")
		return ConnectRedisWithRetry(cfg.RedisURL, 60*time.Second, "storeserver: "), nil
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections)
		pool := ConnectDBWithRetry(poolCfg, 60*time.Second, "storeserver: ")
		db := stdlib.OpenDBFromPool(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			pool.Close()
			return nil, err
		}
		logger.Info("record store: postgres, migrations applied")
		return postgres.New(db, pool.Close), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// StartEmbeddedPostgres поднимает локальный PostgreSQL для -dev и переключает cfg на него.
func StartEmbeddedPostgres(cfg *config.ServerConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "waclient"
		password = "waclient_secret"
		database = "waclient"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Backend = "postgres"
	cfg.DatabaseURL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
