package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate: "100-M"、"1000-H" 等 limiter 速率表达式
// SkipPaths: 跳过限流的路径前缀，如 ["/health", "/metrics", "/ws"]
type RateLimiterConfig struct {
	Rate      string   `json:"rate"`
	SkipPaths []string `json:"skip_paths"`
}

// DefaultRateLimiterConfig 默认限流配置
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      "300-M",
		SkipPaths: []string{"/health", "/metrics", "/ws"},
	}
}

// RateLimiter 基于内存存储的IP限流中间件
func RateLimiter(config RateLimiterConfig) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(config.Rate)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(memory.NewStore(), rate)

	return func(c *gin.Context) {
		for _, prefix := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		limiterCtx, err := instance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// 限流器自身故障时放行，不阻断告警链路
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limiterCtx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limiterCtx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limiterCtx.Reset, 10))

		if limiterCtx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
			})
			return
		}

		c.Next()
	}, nil
}
