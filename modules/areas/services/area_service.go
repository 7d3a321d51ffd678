package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/pkg/composables"
)

var tracer = otel.Tracer("github.com/pocotu/oficri-areas/modules/areas/services")

// AreaRepository persists areas for one tenant. Implementations take the
// transaction from ctx.
type AreaRepository interface {
	ListAreas(ctx context.Context, tenantID uuid.UUID) ([]area.Area, error)
	// LockAreas is ListAreas with row locks held until the transaction ends.
	LockAreas(ctx context.Context, tenantID uuid.UUID) ([]area.Area, error)
	InsertArea(ctx context.Context, tenantID uuid.UUID, a area.Area) error
	UpdateArea(ctx context.Context, tenantID uuid.UUID, a area.Area) error
	SetParent(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, parentID *uuid.UUID) error
	DeleteArea(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) error
}

// SnapshotCache keeps the full area list of a tenant between reads.
type SnapshotCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) ([]area.Area, bool, error)
	Set(ctx context.Context, tenantID uuid.UUID, areas []area.Area) error
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.AreaEventV1) error
}

// TxRunner runs fn inside one tenant-scoped transaction.
type TxRunner func(ctx context.Context, tenantID uuid.UUID, fn func(txCtx context.Context) error) error

// PostgresTx opens a transaction on the pool bound to ctx.
func PostgresTx(ctx context.Context, tenantID uuid.UUID, fn func(txCtx context.Context) error) error {
	return composables.InTenantTx(composables.WithTenantID(ctx, tenantID), fn)
}

type Option func(*AreaService)

func WithEngine(e hierarchy.Engine) Option {
	return func(s *AreaService) { s.engine = e }
}

func WithCache(c SnapshotCache) Option {
	return func(s *AreaService) { s.cache = c }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *AreaService) { s.publisher = p }
}

func WithTxRunner(r TxRunner) Option {
	return func(s *AreaService) {
		if r != nil {
			s.runTx = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *AreaService) {
		if now != nil {
			s.now = now
		}
	}
}

type AreaService struct {
	repo      AreaRepository
	engine    hierarchy.Engine
	cache     SnapshotCache
	publisher EventPublisher
	runTx     TxRunner
	now       func() time.Time

	generations snapshotGenerations
}

func NewAreaService(repo AreaRepository, opts ...Option) *AreaService {
	s := &AreaService{
		repo:   repo,
		engine: hierarchy.New(),
		runTx:  PostgresTx,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AreaService) Engine() hierarchy.Engine {
	return s.engine
}

func inTx[T any](ctx context.Context, run TxRunner, tenantID uuid.UUID, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	err := run(ctx, tenantID, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
