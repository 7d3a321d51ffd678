package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

type fakeRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]area.Area
	calls []string
	err   error
}

func newFakeRepo(areas ...area.Area) *fakeRepo {
	r := &fakeRepo{rows: make(map[uuid.UUID]area.Area, len(areas))}
	for _, a := range areas {
		r.rows[a.ID] = a.Clone()
	}
	return r
}

func (r *fakeRepo) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRepo) ListAreas(context.Context, uuid.UUID) ([]area.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("list")
	return r.snapshotLocked()
}

func (r *fakeRepo) LockAreas(context.Context, uuid.UUID) ([]area.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("lock")
	return r.snapshotLocked()
}

func (r *fakeRepo) snapshotLocked() ([]area.Area, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]area.Area, 0, len(r.rows))
	for _, a := range r.rows {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (r *fakeRepo) InsertArea(_ context.Context, _ uuid.UUID, a area.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("insert %s", a.ID)
	if _, ok := r.rows[a.ID]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "areas_pkey"}
	}
	r.rows[a.ID] = a.Clone()
	return nil
}

func (r *fakeRepo) UpdateArea(_ context.Context, _ uuid.UUID, a area.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("update %s", a.ID)
	prev, ok := r.rows[a.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", a.ID, area.ErrNotFound)
	}
	prev.Label = a.Label
	prev.IsActive = a.IsActive
	r.rows[a.ID] = prev
	return nil
}

func (r *fakeRepo) SetParent(_ context.Context, _ uuid.UUID, id uuid.UUID, parentID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("set_parent %s", id)
	a := r.rows[id]
	a.ParentID = parentID
	r.rows[id] = a.Clone()
	return nil
}

func (r *fakeRepo) DeleteArea(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("delete %s", id)
	for _, a := range r.rows {
		if a.ParentID != nil && *a.ParentID == id {
			return &pgconn.PgError{
				Code:           "23503",
				Message:        `update or delete on table "areas" violates foreign key constraint "areas_parent_fk" on table "areas"`,
				ConstraintName: "areas_parent_fk",
			}
		}
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeRepo) writes() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		if c != "list" && c != "lock" {
			out = append(out, c)
		}
	}
	return out
}

type fakeCache struct {
	entries     map[uuid.UUID][]area.Area
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID][]area.Area)}
}

func (c *fakeCache) Get(_ context.Context, tenantID uuid.UUID) ([]area.Area, bool, error) {
	v, ok := c.entries[tenantID]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, tenantID uuid.UUID, areas []area.Area) error {
	c.entries[tenantID] = areas
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.invalidated++
	delete(c.entries, tenantID)
	return nil
}

func passthroughTx(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	return fn(ctx)
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func ref(n int) *uuid.UUID {
	id := testID(n)
	return &id
}

func areaFixture(id, parent int, label string) area.Area {
	a := area.Area{ID: testID(id), Label: label, IsActive: true}
	if parent != 0 {
		a.ParentID = ref(parent)
	}
	return a
}

// chainRepo holds root(1) -> X(2) -> Y(3) and a second root W(4).
func chainRepo() *fakeRepo {
	return newFakeRepo(
		areaFixture(1, 0, "Gerencia"),
		areaFixture(2, 1, "Logística"),
		areaFixture(3, 2, "Almacén"),
		areaFixture(4, 0, "Alcaldía"),
	)
}
