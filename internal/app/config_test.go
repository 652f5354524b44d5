package app

import (
	"testing"
	"time"

	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

func TestLoadConfigLockSettings(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("PANEL_LOCK_TTL", "")
	t.Setenv("RECON_STALE_AFTER", "")
	cfg := LoadConfig(logger.NewNop())
	if cfg.Locks.RedisAddr != "" || cfg.Locks.TTL != locks.DefaultTTL || cfg.StaleRunAfter != locks.DefaultTTL {
		t.Fatalf("unexpected defaults: locks=%+v stale=%s", cfg.Locks, cfg.StaleRunAfter)
	}

	t.Setenv("REDIS_ADDR", " redis:6379 ")
	t.Setenv("PANEL_LOCK_TTL", "2m")
	cfg = LoadConfig(logger.NewNop())
	if cfg.Locks.RedisAddr != "redis:6379" || cfg.Locks.TTL != 2*time.Minute {
		t.Fatalf("unexpected lock config: %+v", cfg.Locks)
	}
	if cfg.StaleRunAfter != 2*time.Minute {
		t.Fatalf("stale threshold should follow the lock TTL, got %s", cfg.StaleRunAfter)
	}

	t.Setenv("RECON_STALE_AFTER", "30m")
	if got := LoadConfig(logger.NewNop()).StaleRunAfter; got != 30*time.Minute {
		t.Fatalf("RECON_STALE_AFTER ignored: %s", got)
	}
}
