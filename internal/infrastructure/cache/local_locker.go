package cache

import (
	"context"
	"sync"
	"time"

	"mentor_payments/internal/usecase/interfaces"
)

// LocalLocker is an in-process ILocker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

var _ interfaces.ILocker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]time.Time{}, clock: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
