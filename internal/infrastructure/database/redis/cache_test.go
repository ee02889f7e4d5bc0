package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeCmdable struct {
	getFunc func(ctx context.Context, key string) *redis.StringCmd
	setFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	return f.getFunc(ctx, key)
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return f.setFunc(ctx, key, value, expiration)
}

func TestPageCache_Get_Hit(t *testing.T) {
	rdb := &fakeCmdable{
		getFunc: func(_ context.Context, key string) *redis.StringCmd {
			assert.Equal(t, "medcheck:detailpage:abc", key)
			return redis.NewStringResult(`{"page_confidence":95}`, nil)
		},
	}
	cache := newPageCache(rdb, "medcheck:", nil)

	val, ok := cache.Get(context.Background(), "detailpage:abc")
	assert.True(t, ok)
	assert.JSONEq(t, `{"page_confidence":95}`, string(val))
}

func TestPageCache_Get_Miss(t *testing.T) {
	rdb := &fakeCmdable{
		getFunc: func(_ context.Context, _ string) *redis.StringCmd {
			return redis.NewStringResult("", redis.Nil)
		},
	}
	cache := newPageCache(rdb, "medcheck:", nil)

	_, ok := cache.Get(context.Background(), "detailpage:abc")
	assert.False(t, ok)
}

func TestPageCache_Get_ErrorIsMiss(t *testing.T) {
	rdb := &fakeCmdable{
		getFunc: func(_ context.Context, _ string) *redis.StringCmd {
			return redis.NewStringResult("", errors.New("broken pipe"))
		},
	}
	cache := newPageCache(rdb, "medcheck:", nil)

	_, ok := cache.Get(context.Background(), "detailpage:abc")
	assert.False(t, ok)
}

func TestPageCache_Set_AppliesJitteredTTL(t *testing.T) {
	base := 6 * time.Hour
	var gotTTL time.Duration
	rdb := &fakeCmdable{
		setFunc: func(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.StatusCmd {
			assert.Equal(t, "medcheck:detailpage:abc", key)
			gotTTL = ttl
			return redis.NewStatusResult("OK", nil)
		},
	}
	cache := newPageCache(rdb, "medcheck:", nil)

	cache.Set(context.Background(), "detailpage:abc", []byte("{}"), base)
	assert.GreaterOrEqual(t, gotTTL, base)
	assert.LessOrEqual(t, gotTTL, base+base/10)
}

func TestPageCache_Set_WriteFailureDoesNotPanic(t *testing.T) {
	rdb := &fakeCmdable{
		setFunc: func(_ context.Context, _ string, _ interface{}, _ time.Duration) *redis.StatusCmd {
			return redis.NewStatusResult("", errors.New("readonly replica"))
		},
	}
	cache := newPageCache(rdb, "medcheck:", nil)

	assert.NotPanics(t, func() {
		cache.Set(context.Background(), "detailpage:abc", []byte("{}"), time.Hour)
	})
}

func TestJitterTTL_ZeroPassthrough(t *testing.T) {
	assert.Equal(t, time.Duration(0), jitterTTL(0))
}
