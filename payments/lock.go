package payments

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// TokenLocker serialises work on one gateway token across instances.
type TokenLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

var ErrLockNotObtained = errors.New("lock not obtained")

type RedisTokenLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisTokenLocker returns nil when client is nil so callers can run without redis.
func NewRedisTokenLocker(client *redislock.Client, ttl time.Duration) TokenLocker {
	if client == nil {
		return nil
	}
	return &RedisTokenLocker{client: client, ttl: ttl, wait: 5 * time.Second}
}

func (l *RedisTokenLocker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), int(l.wait/(250*time.Millisecond))),
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

// lockToken is best-effort: correctness comes from guarded transitions,
// the lock only keeps duplicate deliveries from querying the gateway in parallel.
func (s *Service) lockToken(ctx context.Context, token string) func() {
	if s.Locker == nil {
		return func() {}
	}
	release, err := s.Locker.Lock(ctx, "lock:flow:"+token)
	if err != nil {
		s.logger().WithFields(logrus.Fields{
			"field":      "lockToken",
			"flow_token": token,
		}).Warn("could not obtain redis lock; proceeding without lock: " + err.Error())
		return func() {}
	}
	return release
}
