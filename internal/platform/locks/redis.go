package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedis(addr string, ttl time.Duration, log *logger.Logger) (Locker, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, ttl, log), nil
}

func NewRedisWithClient(rdb goredis.UniversalClient, ttl time.Duration, log *logger.Logger) Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisLocker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		ttl:    ttl,
		prefix: "reconify:lock:",
	}
}

func (l *redisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	full := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		// The caller's ctx may already be cancelled; release on a short-lived one.
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{full}, token).Err(); err != nil && err != goredis.Nil {
			l.log.Warn("lock release failed", "key", key, "error", err)
		}
	}
	return unlock, true, nil
}

func (l *redisLocker) Close() error { return l.rdb.Close() }

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
