// Package redis provides the Redis client and the detail-page analysis
// cache backed by it.
package redis

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

var errConnectionFailed = errors.New(errors.ErrCodeDatabaseError, "redis connection failed")

// NewClient connects a standalone Redis client and verifies it with a ping.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*redis.Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10 * runtime.GOMAXPROCS(0)
	}
	minIdle := cfg.MinIdleConns
	if minIdle == 0 {
		minIdle = 5
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: minIdle,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errConnectionFailed.WithCause(err)
	}

	log.Info("redis client connected", logging.String("addr", cfg.Addr))
	return rdb, nil
}
