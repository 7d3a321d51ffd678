package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
)

type TreeQuery struct {
	RootID          *uuid.UUID
	IncludeInactive bool
}

type PathResult struct {
	Path  []area.Area `json:"path"`
	Depth int         `json:"depth"`
}

// Snapshot loads every area of the tenant, going through the cache when configured.
func (s *AreaService) Snapshot(ctx context.Context, tenantID uuid.UUID) (*area.Snapshot, error) {
	if tenantID == uuid.Nil {
		return nil, invalidBody("tenant_id is required")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "areas.cache.get_failed", logrus.Fields{
				"tenant_id": tenantID.String(),
				"error":     err.Error(),
			})
		}
		recordCacheRequest(ok && err == nil)
		if ok && err == nil {
			if snap, err := area.NewSnapshot(cached); err == nil {
				return snap, nil
			}
		}
	}

	seen := s.generations.current(tenantID)
	rows, err := inTx(ctx, s.runTx, tenantID, func(txCtx context.Context) ([]area.Area, error) {
		return s.repo.ListAreas(txCtx, tenantID)
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	snap, err := area.NewSnapshot(rows)
	if err != nil {
		return nil, mapDomainError(err)
	}

	if s.cache != nil {
		stored, err := s.generations.fill(tenantID, seen, func() error {
			return s.cache.Set(ctx, tenantID, rows)
		})
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "areas.cache.set_failed", logrus.Fields{
				"tenant_id": tenantID.String(),
				"error":     err.Error(),
			})
		}
		if !stored {
			logWithFields(ctx, logrus.DebugLevel, "areas.cache.set_skipped", logrus.Fields{
				"tenant_id": tenantID.String(),
			})
		}
	}
	return snap, nil
}

func (s *AreaService) GetTree(ctx context.Context, tenantID uuid.UUID, q TreeQuery) ([]*hierarchy.TreeNode, error) {
	ctx, span := tracer.Start(ctx, "areas.service.GetTree")
	defer span.End()

	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if q.RootID != nil {
		if _, ok := snap.Get(*q.RootID); !ok {
			return nil, notFound(*q.RootID)
		}
	}
	var opts []hierarchy.TreeOption
	if !q.IncludeInactive {
		opts = append(opts, hierarchy.WithActiveOnly())
	}
	tree := s.engine.BuildTree(snap, q.RootID, opts...)
	if tree == nil {
		tree = []*hierarchy.TreeNode{}
	}
	return tree, nil
}

func (s *AreaService) GetArea(ctx context.Context, tenantID, id uuid.UUID) (area.Area, error) {
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return area.Area{}, err
	}
	a, ok := snap.Get(id)
	if !ok {
		return area.Area{}, notFound(id)
	}
	return a, nil
}

func (s *AreaService) GetPath(ctx context.Context, tenantID, id uuid.UUID) (PathResult, error) {
	ctx, span := tracer.Start(ctx, "areas.service.GetPath")
	defer span.End()

	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return PathResult{}, err
	}
	path := s.engine.Path(snap, id)
	if len(path) == 0 {
		return PathResult{}, notFound(id)
	}
	return PathResult{Path: path, Depth: len(path) - 1}, nil
}

func (s *AreaService) GetDescendants(ctx context.Context, tenantID, id uuid.UUID) ([]area.Area, error) {
	ctx, span := tracer.Start(ctx, "areas.service.GetDescendants")
	defer span.End()

	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Get(id); !ok {
		return nil, notFound(id)
	}
	return s.engine.Descendants(snap, id), nil
}

func (s *AreaService) IsAncestor(ctx context.Context, tenantID, ancestorID, descendantID uuid.UUID) (bool, error) {
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return false, err
	}
	for _, id := range []uuid.UUID{ancestorID, descendantID} {
		if _, ok := snap.Get(id); !ok {
			return false, notFound(id)
		}
	}
	return s.engine.IsAncestorOf(snap, ancestorID, descendantID), nil
}

// Check bypasses the cache so it always inspects what is stored.
func (s *AreaService) Check(ctx context.Context, tenantID uuid.UUID) ([]hierarchy.Issue, error) {
	if tenantID == uuid.Nil {
		return nil, invalidBody("tenant_id is required")
	}
	rows, err := inTx(ctx, s.runTx, tenantID, func(txCtx context.Context) ([]area.Area, error) {
		return s.repo.ListAreas(txCtx, tenantID)
	})
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	snap, err := area.NewSnapshot(rows)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return s.engine.Check(snap), nil
}

func notFound(id uuid.UUID) *ServiceError {
	return newServiceError(http.StatusNotFound, area.ErrNotFound.Code, "area "+id.String()+" not found", area.ErrNotFound)
}
