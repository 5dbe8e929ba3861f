package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/utils"
)

// RateLimiter counts hits per key in a fixed window shared by all instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix}
}

// Allow increments the window counter and reads its TTL in one transaction.
// The expiry is set whenever the key has none, so a counter left without one
// by a failed EXPIRE is repaired on the next hit.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	k := rl.prefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	if ttl.Val() < 0 {
		if err := rl.client.Expire(ctx, k, window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= limit, nil
}

// RateLimitMiddleware limits requests per client IP. Limiter errors let the
// request through; a nil limiter disables the check.
func RateLimitMiddleware(limiter RateLimiter, limit int64, window time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		key := c.FullPath() + ":" + c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			if logger != nil {
				logger.WithFields(utils.LogFields(c.Request.Context(), "RateLimitMiddleware")).
					Warn("rate limiter unavailable; allowing request: " + err.Error())
			}
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": fmt.Sprintf("Demasiadas solicitudes. Intenta nuevamente en %d segundos", int(window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
