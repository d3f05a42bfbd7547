package cache

import (
	"context"
	"time"

	"HibiscusSOS/pkg/util"
)

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set 设置缓存值
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Clear 清空所有缓存
	Clear(ctx context.Context) error

	// Close 关闭缓存连接
	Close() error
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "local" 或 "redis"
	Type string `env:"CACHE_TYPE"`

	// Redis配置
	Redis RedisConfig

	// 本地缓存配置
	Local LocalConfig
}

// RedisConfig Redis配置
type RedisConfig struct {
	// Redis地址
	Addr string `env:"REDIS_ADDR"`

	// Redis密码
	Password string `env:"REDIS_PASSWORD"`

	// Redis数据库
	DB int `env:"REDIS_DB"`
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	// 默认过期时间
	DefaultExpiration time.Duration `env:"LOCAL_CACHE_DEFAULT_EXPIRATION"`

	// 清理间隔
	CleanupInterval time.Duration `env:"LOCAL_CACHE_CLEANUP_INTERVAL"`
}

// LoadConfigFromEnv 从环境变量加载缓存配置
func LoadConfigFromEnv() Config {
	cfg := Config{
		Type: util.GetEnv("CACHE_TYPE", "local"),
		Redis: RedisConfig{
			Addr:     util.GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: util.GetEnv("REDIS_PASSWORD"),
			DB:       int(util.GetIntEnv("REDIS_DB")),
		},
		Local: LocalConfig{
			DefaultExpiration: 5 * time.Minute,
			CleanupInterval:   10 * time.Minute,
		},
	}

	if exp := util.GetIntEnv("LOCAL_CACHE_DEFAULT_EXPIRATION"); exp > 0 {
		cfg.Local.DefaultExpiration = time.Duration(exp) * time.Second
	}
	if interval := util.GetIntEnv("LOCAL_CACHE_CLEANUP_INTERVAL"); interval > 0 {
		cfg.Local.CleanupInterval = time.Duration(interval) * time.Second
	}

	return cfg
}
