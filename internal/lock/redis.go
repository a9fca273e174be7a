package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"workshop-access-backend/internal/logger"
)

const (
	keyPrefix    = "workshop:lock:"
	pollInterval = 25 * time.Millisecond
)

// ErrLockTimeout is returned when a Redis lock could not be acquired
// before the context was done.
var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only if it still holds our token.
var renewScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every replica pointed at the same Redis.
// A hold is renewed every third of ttl until released, so ttl only bounds how
// long a crashed holder blocks others.
type RedisLocker struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// DialRedis connects and pings Redis.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisLocker(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, log: log.With("service", "RedisLocker")}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			go l.renew(redisKey, token, stop)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					l.unlock(redisKey, token)
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlock(redisKey, token string) {
	// Releasing must not depend on the caller's context, which may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
		l.log.Warn("failed to release redis lock", "key", redisKey, "error", err)
	}
}

// renewInterval is how often a held key's expiry is pushed back.
func renewInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

func (l *RedisLocker) renew(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(renewInterval(l.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), renewInterval(l.ttl))
			n, err := renewScript.Run(ctx, l.rdb, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.log.Warn("failed to renew redis lock", "key", redisKey, "error", err)
				continue
			}
			if n == 0 {
				l.log.Error("redis lock lost before release", "key", redisKey)
				return
			}
		}
	}
}
