package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache包装器
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache 创建基于go-cache的本地缓存
func NewGoCache(config LocalConfig) Cache {
	c := gocache.New(config.DefaultExpiration, config.CleanupInterval)
	return &goCacheWrapper{
		cache: c,
	}
}

// Get 获取缓存值
func (gc *goCacheWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	if value, found := gc.cache.Get(key); found {
		return value, true
	}
	return nil, false
}

// Set 设置缓存值
func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	gc.cache.Set(key, value, expiration)
	return nil
}

// Delete 删除缓存
func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

// Clear 清空所有缓存
func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return nil
}

// Close 关闭缓存
func (gc *goCacheWrapper) Close() error {
	gc.cache.Flush()
	return nil
}
