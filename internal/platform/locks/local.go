package locks

import (
	"context"
	"sync"
)

type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() Locker {
	return &localLocker{held: map[string]struct{}{}}
}

func (l *localLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
