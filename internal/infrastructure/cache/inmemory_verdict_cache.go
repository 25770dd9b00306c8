package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genintake/backend/internal/application/interview"
	"github.com/genintake/backend/internal/domain/assessment"
)

type verdictEntry struct {
	verdict   *assessment.AssessmentVerdict
	expiresAt time.Time
}

// InMemoryVerdictCache keeps finalized verdicts in a local map. Cache
// hits then only help requests landing on the same instance, which is
// fine for single-instance deployments and tests.
type InMemoryVerdictCache struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]verdictEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryVerdictCache creates the cache and starts its janitor
// goroutine. Call Close to stop it. A non-positive ttl falls back to
// defaultVerdictTTL.
func NewInMemoryVerdictCache(ttl time.Duration) *InMemoryVerdictCache {
	if ttl <= 0 {
		ttl = defaultVerdictTTL
	}
	cache := &InMemoryVerdictCache{
		entries:  make(map[uuid.UUID]verdictEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	cache.wg.Add(1)
	go cache.janitor()
	return cache
}

// Set stores a verdict under its session ID with the configured TTL.
func (c *InMemoryVerdictCache) Set(ctx context.Context, sessionID uuid.UUID, verdict *assessment.AssessmentVerdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sessionID] = verdictEntry{
		verdict:   verdict,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Get reads the cached verdict for a session. A miss or an expired
// entry returns nil without error; callers fall through to the session
// store.
func (c *InMemoryVerdictCache) Get(ctx context.Context, sessionID uuid.UUID) (*assessment.AssessmentVerdict, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[sessionID]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return e.verdict, nil
}

// Close stops the janitor. Safe to call more than once.
func (c *InMemoryVerdictCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Size returns the number of entries, expired ones included until the
// janitor's next pass.
func (c *InMemoryVerdictCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// janitor drops expired entries so a long-lived instance does not hold
// every verdict it ever cached.
func (c *InMemoryVerdictCache) janitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.dropExpired()
		}
	}
}

func (c *InMemoryVerdictCache) dropExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for sessionID, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, sessionID)
		}
	}
}

var _ interview.VerdictCache = (*InMemoryVerdictCache)(nil)
