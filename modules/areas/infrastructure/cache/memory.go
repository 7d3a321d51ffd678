package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

type cachedSnapshot struct {
	Areas    []area.Area
	StoredAt time.Time
}

// MemoryCache keeps one area list per tenant in process memory.
// A zero ttl keeps entries until they are invalidated.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]cachedSnapshot
	ttl     time.Duration
	now     func() time.Time
}

type MemoryOption func(*MemoryCache)

func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[uuid.UUID]cachedSnapshot),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, tenantID uuid.UUID) ([]area.Area, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().Sub(entry.StoredAt) >= c.ttl {
		c.mu.Lock()
		if cur, still := c.entries[tenantID]; still && cur.StoredAt.Equal(entry.StoredAt) {
			delete(c.entries, tenantID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneAreas(entry.Areas), true, nil
}

func (c *MemoryCache) Set(_ context.Context, tenantID uuid.UUID, areas []area.Area) error {
	if tenantID == uuid.Nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = cachedSnapshot{Areas: cloneAreas(areas), StoredAt: c.now()}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneAreas(in []area.Area) []area.Area {
	out := make([]area.Area, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
