package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
)

// cmdable is the slice of the go-redis API the cache needs. *redis.Client
// satisfies it; tests substitute a fake.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PageCache is the Redis-backed implementation of the detail-page analysis
// cache. Failures are reported as misses; the analyzer refetches rather
// than surfacing cache errors to a verification request.
type PageCache struct {
	rdb    cmdable
	prefix string
	log    logging.Logger
}

// NewPageCache constructs a PageCache. prefix namespaces keys so that one
// Redis instance can serve several deployments.
func NewPageCache(rdb *redis.Client, prefix string, log logging.Logger) *PageCache {
	return newPageCache(rdb, prefix, log)
}

func newPageCache(rdb cmdable, prefix string, log logging.Logger) *PageCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PageCache{rdb: rdb, prefix: prefix, log: log.Named("page_cache")}
}

// Get returns the cached payload for key, or false on a miss or any error.
func (c *PageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache read failed, treating as miss",
				logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}
	return val, true
}

// Set stores the payload with a jittered TTL. Jitter spreads expiry of
// entries written in the same burst so they do not stampede the source.
func (c *PageCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, c.prefix+key, val, jitterTTL(ttl)).Err(); err != nil {
		c.log.Warn("cache write failed", logging.String("key", key), logging.Err(err))
	}
}

// jitterTTL widens ttl by up to 10%.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl)/10+1))
}
