package services

import (
	"sync"

	"github.com/google/uuid"
)

// snapshotGenerations orders cache fills against invalidations per tenant.
// A read that listed rows before a write committed must not store them after
// that write invalidated the cache, or the stale list would live until the TTL.
type snapshotGenerations struct {
	mu  sync.Mutex
	gen map[uuid.UUID]uint64
}

func (g *snapshotGenerations) current(tenantID uuid.UUID) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[tenantID]
}

// fill runs set only when no invalidation happened since seen was read.
func (g *snapshotGenerations) fill(tenantID uuid.UUID, seen uint64, set func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen[tenantID] != seen {
		return false, nil
	}
	return true, set()
}

func (g *snapshotGenerations) invalidate(tenantID uuid.UUID, invalidate func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == nil {
		g.gen = make(map[uuid.UUID]uint64)
	}
	g.gen[tenantID]++
	return invalidate()
}
