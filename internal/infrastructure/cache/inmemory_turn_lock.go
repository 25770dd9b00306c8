package cache

import (
	"context"
	"sync"
	"time"

	"github.com/genintake/backend/internal/domain/shared"
)

// InMemoryTurnLock serializes turns with a local map. Only turns within
// the same instance contend for it, so it is safe for single-instance
// deployments and tests only.
type InMemoryTurnLock struct {
	mu        sync.Mutex
	locks     map[string]time.Time // session ID -> expiry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryTurnLock creates the lock and starts its janitor
// goroutine. Call Close to stop it.
func NewInMemoryTurnLock() *InMemoryTurnLock {
	lock := &InMemoryTurnLock{
		locks:    make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
	lock.wg.Add(1)
	go lock.janitor()
	return lock
}

// Acquire takes the per-session lock unless a live holder exists. An
// expired holder counts as absent, which mirrors how the Redis TTL
// frees locks left behind by crashed turns.
func (l *InMemoryTurnLock) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, exists := l.locks[sessionID]; exists && time.Now().Before(expiry) {
		return false, nil
	}
	l.locks[sessionID] = time.Now().Add(ttl)
	return true, nil
}

// Release frees the lock for a session.
func (l *InMemoryTurnLock) Release(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, sessionID)
	return nil
}

// Close stops the janitor. Safe to call more than once.
func (l *InMemoryTurnLock) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

// Size returns the number of tracked locks, expired ones included
// until the janitor's next pass.
func (l *InMemoryTurnLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// janitor drops expired locks so abandoned sessions do not pin map
// entries forever.
func (l *InMemoryTurnLock) janitor() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.dropExpired()
		}
	}
}

func (l *InMemoryTurnLock) dropExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for sessionID, expiry := range l.locks {
		if now.After(expiry) {
			delete(l.locks, sessionID)
		}
	}
}

var _ shared.TurnLock = (*InMemoryTurnLock)(nil)
