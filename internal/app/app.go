// Package app holds the process wiring shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"studyrag/internal/config"
	"studyrag/internal/lock"
	"studyrag/internal/storage"

	"github.com/redis/go-redis/v9"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// OpenDB connects and applies the schema.
func OpenDB(ctx context.Context, cfg config.Config) (*storage.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func DialTemporal(cfg config.Config, logger *slog.Logger) (tclient.Client, error) {
	c, err := tclient.Dial(tclient.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	return c, nil
}

// NewLocker uses Redis when an address is configured so several api replicas
// share upload locks.
func NewLocker(cfg config.Config) (lock.Locker, func() error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemoryLocker(), func() error { return nil }
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	return lock.NewRedisLocker(rdb, ""), rdb.Close
}
