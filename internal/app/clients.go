package app

import (
	"context"
	"fmt"

	"github.com/yungbote/reconify-backend/internal/platform/gcp"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type Clients struct {
	Locker  locks.Locker
	Archive gcp.ObjectStore
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis (optional)
	locker, err := locks.New(cfg.Locks, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init panel locker: %w", err)
	}

	// Archive
	store, err := resolveArchiveStore(ctx, log, cfg)
	if err != nil {
		return Clients{}, err
	}

	return Clients{Locker: locker, Archive: store}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if closer, ok := c.Locker.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
