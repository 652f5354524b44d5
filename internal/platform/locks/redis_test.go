package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

// memRedis implements the commands the locker issues: SET NX and the release script.
type memRedis struct {
	goredis.UniversalClient

	mu     sync.Mutex
	kv     map[string]string
	ttls   map[string]time.Duration
	setErr error
	closed bool
}

func newMemRedis() *memRedis {
	return &memRedis{kv: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *goredis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return goredis.NewBoolResult(false, m.setErr)
	}
	if _, held := m.kv[key]; held {
		return goredis.NewBoolResult(false, nil)
	}
	m.kv[key] = value.(string)
	m.ttls[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (m *memRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[keys[0]] == args[0].(string) {
		delete(m.kv, keys[0])
		return goredis.NewCmdResult(int64(1), nil)
	}
	return goredis.NewCmdResult(int64(0), nil)
}

func (m *memRedis) Close() error {
	m.closed = true
	return nil
}

func (m *memRedis) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
}

func (m *memRedis) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok
}

func TestRedisLockerKeysAndTTL(t *testing.T) {
	rdb := newMemRedis()
	l := NewRedisWithClient(rdb, time.Minute, logger.NewNop())
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "panel:okta")
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	token, held := rdb.value("reconify:lock:panel:okta")
	if !held || len(token) != 32 {
		t.Fatalf("expected a prefixed key holding a 32-char token, got %q held=%v", token, held)
	}
	if rdb.ttls["reconify:lock:panel:okta"] != time.Minute {
		t.Fatalf("ttl = %s", rdb.ttls["reconify:lock:panel:okta"])
	}
	if _, ok, _ := l.TryLock(ctx, "panel:okta"); ok {
		t.Fatalf("held key must not be acquired twice")
	}
	unlock()
	if _, held := rdb.value("reconify:lock:panel:okta"); held {
		t.Fatalf("unlock should delete the key")
	}

	if NewRedisWithClient(rdb, 0, logger.NewNop()).(*redisLocker).ttl != DefaultTTL {
		t.Fatalf("zero ttl should fall back to the default")
	}
}

func TestRedisLockerUnlockKeepsNewHolder(t *testing.T) {
	rdb := newMemRedis()
	l := NewRedisWithClient(rdb, time.Minute, logger.NewNop())
	ctx := context.Background()

	stale, ok, _ := l.TryLock(ctx, "panel:okta")
	if !ok {
		t.Fatalf("first TryLock failed")
	}
	rdb.expire("reconify:lock:panel:okta")
	fresh, ok, _ := l.TryLock(ctx, "panel:okta")
	if !ok {
		t.Fatalf("expired key should be acquirable")
	}
	owner, _ := rdb.value("reconify:lock:panel:okta")

	stale()
	if got, held := rdb.value("reconify:lock:panel:okta"); !held || got != owner {
		t.Fatalf("an expired holder must not release the new holder's lock")
	}
	fresh()
	if _, held := rdb.value("reconify:lock:panel:okta"); held {
		t.Fatalf("owner unlock should release")
	}
}

func TestRedisLockerErrorsAndClose(t *testing.T) {
	rdb := newMemRedis()
	rdb.setErr = errors.New("connection refused")
	l := NewRedisWithClient(rdb, time.Minute, logger.NewNop())
	if _, ok, err := l.TryLock(context.Background(), "panel:okta"); ok || err == nil {
		t.Fatalf("expected acquire error, got ok=%v err=%v", ok, err)
	}
	if err := l.(*redisLocker).Close(); err != nil || !rdb.closed {
		t.Fatalf("Close should close the client: err=%v", err)
	}
}

func TestNewWithoutRedisIsLocal(t *testing.T) {
	l, err := New(Config{RedisAddr: "  "}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := l.(*localLocker); !ok {
		t.Fatalf("expected in-process locker, got %T", l)
	}
}

func TestNewTokenIsRandomHex(t *testing.T) {
	a, err := newToken()
	if err != nil {
		t.Fatalf("newToken: %v", err)
	}
	b, _ := newToken()
	if len(a) != 32 || a == b {
		t.Fatalf("tokens should be 32 hex chars and distinct: %q %q", a, b)
	}
}
