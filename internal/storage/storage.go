// Package storage persists the shopper's session state (cart, auth token,
// wishlist) in a local key-value store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/storage/memory"
	"github.com/utafrali/storefront/internal/storage/redis"
	"github.com/utafrali/storefront/internal/storage/sqlite"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Well-known keys.
const (
	KeyCart      = "cart"
	KeyAuthToken = "authToken"
	KeyWishlist  = "wishlist"
)

// Store is a last-write-wins key-value store. Get returns an
// apperrors.ErrNotFound error for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.StorageBackend. reg may be nil.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.New(), nil

	case config.StorageRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("storage opened", slog.String("backend", "redis"), slog.String("addr", cfg.RedisAddr))
		return redis.New(client, cfg.RedisKeyPrefix, cfg.StorageTTL()), nil

	case config.StorageSQLite, "":
		db, err := database.OpenSQLite(ctx, database.DefaultSQLiteConfig(cfg.StoragePath), logger)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, db, sqlite.Migrations(), logger); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		if reg != nil {
			if err := database.RegisterDBStats(reg, db, "sqlite"); err != nil {
				logger.Warn("sqlite stats not registered", slog.String("error", err.Error()))
			}
		}
		logger.Info("storage opened", slog.String("backend", "sqlite"), slog.String("path", cfg.StoragePath))
		return sqlite.New(db), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// GetJSON loads key into dst. found is false when the key does not exist.
func GetJSON(ctx context.Context, s Store, key string, dst any) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON serializes value under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Ping reports whether s answers within timeout. It is shaped for health checks.
func Ping(s Store, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			return errors.Join(errors.New("storage unreachable"), err)
		}
		return nil
	}
}
