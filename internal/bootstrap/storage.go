package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"session-service/config"
	"session-service/infra/storage"
	"session-service/infra/storage/memory"
	"session-service/infra/storage/postgres"
	"session-service/infra/storage/redisstore"
)

// InitStorage selects and connects the configured backend. An unknown
// backend name is fatal; a half-configured service is worse than none.
func InitStorage(cfg config.Config) storage.Store {
	ttls := storage.TTLs{
		Room:    cfg.Storage.RoomTTL,
		State:   cfg.Storage.StateTTL,
		Session: cfg.Storage.SessionTTL,
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case "memory":
		store = memory.New()
	case "redis":
		store = redisstore.New(redisstore.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTLs:     ttls,
		})
	case "postgresql":
		store = postgres.New(postgres.Options{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DB:       cfg.Postgres.DB,
		})
	default:
		zap.L().Fatal("Unknown storage backend", zap.String("backend", cfg.Storage.Backend))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Connect(ctx); err != nil {
		zap.L().Fatal("Failed to connect storage backend",
			zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	zap.L().Info("Storage backend connected", zap.String("backend", cfg.Storage.Backend))
	return store
}
