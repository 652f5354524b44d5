package locks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

// Locker hands out exclusive, non-blocking locks keyed by name.
// TryLock returns ok=false when someone else holds key.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// DefaultTTL bounds how long a Redis lock outlives a crashed holder.
const DefaultTTL = 10 * time.Minute

type Config struct {
	// RedisAddr selects the Redis locker; empty means in-process locks.
	RedisAddr string
	TTL       time.Duration
}

// New returns a Redis locker when cfg.RedisAddr is set, otherwise an in-process one.
func New(cfg Config, log *logger.Logger) (Locker, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("REDIS_ADDR not set; using in-process panel locks")
		return NewLocal(), nil
	}
	l, err := NewRedis(addr, cfg.TTL, log)
	if err != nil {
		return nil, fmt.Errorf("redis locker: %w", err)
	}
	return l, nil
}
