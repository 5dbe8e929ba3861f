package middlewares

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptedRedis answers commands in-process so the limiter can run without a server.
type scriptedRedis struct {
	count   int64
	ttl     time.Duration
	expires int
	calls   []string
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.apply(cmd)
		return nil
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			h.apply(cmd)
		}
		return nil
	}
}

func (h *scriptedRedis) apply(cmd redis.Cmder) {
	h.calls = append(h.calls, cmd.Name())
	switch c := cmd.(type) {
	case *redis.IntCmd:
		h.count++
		c.SetVal(h.count)
	case *redis.DurationCmd:
		c.SetVal(h.ttl)
	case *redis.BoolCmd:
		h.expires++
		h.ttl = time.Minute
		c.SetVal(true)
	}
}

func newScriptedLimiter(h *scriptedRedis) *RedisRateLimiter {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(h)
	return NewRedisRateLimiter(client, "ratelimit:")
}

func TestRedisRateLimiterSetsExpiryOnFirstHit(t *testing.T) {
	h := &scriptedRedis{ttl: -1}
	rl := newScriptedLimiter(h)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, err := rl.Allow(ctx, "/api/checkout:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if allowed != (i <= 2) {
			t.Fatalf("hit %d: allowed=%v", i, allowed)
		}
	}
	if h.expires != 1 {
		t.Fatalf("expected a single EXPIRE, got %d (%v)", h.expires, h.calls)
	}
}

func TestRedisRateLimiterRepairsCounterWithoutTTL(t *testing.T) {
	// counter left behind with no expiry
	h := &scriptedRedis{count: 40, ttl: -1}
	rl := newScriptedLimiter(h)

	allowed, err := rl.Allow(context.Background(), "/api/checkout:1.2.3.4", 10, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected over-limit counter to be rejected")
	}
	if h.expires != 1 || h.ttl != time.Minute {
		t.Fatalf("expected expiry to be restored, expires=%d ttl=%s", h.expires, h.ttl)
	}
}
