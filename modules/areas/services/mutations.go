package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
)

const maxLabelLength = 255

type CreateAreaInput struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Label    string
	IsActive *bool
}

type UpdateAreaInput struct {
	ID       uuid.UUID
	Label    *string
	IsActive *bool
}

type MoveAreaInput struct {
	NodeID   uuid.UUID
	TargetID *uuid.UUID
	Position string
	DryRun   bool
}

type DeleteAreaInput struct {
	NodeID  uuid.UUID
	Cascade bool
	DryRun  bool
}

type MutationResult struct {
	Plan            hierarchy.Plan       `json:"plan"`
	DryRun          bool                 `json:"dry_run"`
	Area            *area.Area           `json:"area,omitempty"`
	GeneratedEvents []events.AreaEventV1 `json:"-"`
}

type mutationMeta struct {
	name        string
	tenantID    uuid.UUID
	requestID   string
	initiatorID uuid.UUID
	nodeID      uuid.UUID
	dryRun      bool
}

func (s *AreaService) CreateArea(ctx context.Context, tenantID uuid.UUID, requestID string, initiatorID uuid.UUID, in CreateAreaInput) (*MutationResult, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	meta := mutationMeta{name: "create", tenantID: tenantID, requestID: requestID, initiatorID: initiatorID, nodeID: in.ID}
	label, err := normalizeLabel(in.Label)
	if err != nil {
		s.reject(ctx, meta, err, nil)
		return nil, err
	}
	a := area.Area{ID: in.ID, Label: label, IsActive: true}
	if in.ParentID != nil {
		a.ParentID = area.ParentRef(*in.ParentID)
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}

	res, err := s.mutate(ctx, meta, func(store area.Store) (hierarchy.Plan, error) {
		return s.engine.PlanCreate(store, a)
	})
	if err != nil {
		return nil, err
	}
	res.Area = &a
	return res, nil
}

func (s *AreaService) MoveArea(ctx context.Context, tenantID uuid.UUID, requestID string, initiatorID uuid.UUID, in MoveAreaInput) (*MutationResult, error) {
	meta := mutationMeta{name: "move", tenantID: tenantID, requestID: requestID, initiatorID: initiatorID, nodeID: in.NodeID, dryRun: in.DryRun}
	position, err := hierarchy.ParsePosition(in.Position)
	if err != nil {
		err = mapDomainError(err)
		s.reject(ctx, meta, err, logrus.Fields{"position": in.Position})
		return nil, err
	}
	return s.mutate(ctx, meta, func(store area.Store) (hierarchy.Plan, error) {
		return s.engine.PlanMove(store, in.NodeID, in.TargetID, position)
	})
}

func (s *AreaService) DeleteArea(ctx context.Context, tenantID uuid.UUID, requestID string, initiatorID uuid.UUID, in DeleteAreaInput) (*MutationResult, error) {
	meta := mutationMeta{name: "delete", tenantID: tenantID, requestID: requestID, initiatorID: initiatorID, nodeID: in.NodeID, dryRun: in.DryRun}
	return s.mutate(ctx, meta, func(store area.Store) (hierarchy.Plan, error) {
		return s.engine.PlanDelete(store, in.NodeID, in.Cascade)
	})
}

// UpdateArea changes label and activity only; the parent is never touched here.
func (s *AreaService) UpdateArea(ctx context.Context, tenantID uuid.UUID, requestID string, initiatorID uuid.UUID, in UpdateAreaInput) (*MutationResult, error) {
	meta := mutationMeta{name: "update", tenantID: tenantID, requestID: requestID, initiatorID: initiatorID, nodeID: in.ID}
	if in.Label == nil && in.IsActive == nil {
		err := invalidBody("nothing to update")
		s.reject(ctx, meta, err, nil)
		return nil, err
	}
	var label string
	if in.Label != nil {
		var err error
		if label, err = normalizeLabel(*in.Label); err != nil {
			s.reject(ctx, meta, err, nil)
			return nil, err
		}
	}
	if tenantID == uuid.Nil {
		return nil, invalidBody("tenant_id is required")
	}

	ctx, span := tracer.Start(ctx, "areas.service.update")
	defer span.End()

	res, err := inTx(ctx, s.runTx, tenantID, func(txCtx context.Context) (*MutationResult, error) {
		rows, err := s.repo.LockAreas(txCtx, tenantID)
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		snap, err := area.NewSnapshot(rows)
		if err != nil {
			return nil, mapDomainError(err)
		}
		before, ok := snap.Get(in.ID)
		if !ok {
			return nil, notFound(in.ID)
		}
		after := before.Clone()
		if in.Label != nil {
			after.Label = label
		}
		if in.IsActive != nil {
			after.IsActive = *in.IsActive
		}
		if err := s.repo.UpdateArea(txCtx, tenantID, after); err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		ev, err := newEvent(meta, s.now().UTC(), events.ChangeTypeUpdated, after.ID, 0, before, after)
		if err != nil {
			return nil, err
		}
		return &MutationResult{Area: &after, GeneratedEvents: []events.AreaEventV1{ev}}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
		s.reject(ctx, meta, err, nil)
		return nil, err
	}
	s.afterCommit(ctx, meta, res)
	return res, nil
}

// mutate locks the tenant's areas, plans against the locked snapshot and applies
// the plan through the repository in one transaction. Dry runs stop after
// replaying the plan in memory.
func (s *AreaService) mutate(ctx context.Context, meta mutationMeta, planFn func(area.Store) (hierarchy.Plan, error)) (*MutationResult, error) {
	if meta.tenantID == uuid.Nil {
		return nil, invalidBody("tenant_id is required")
	}

	ctx, span := tracer.Start(ctx, "areas.service."+meta.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("areas.tenant_id", meta.tenantID.String()),
		attribute.String("areas.node_id", meta.nodeID.String()),
		attribute.Bool("areas.dry_run", meta.dryRun),
	)

	res, err := inTx(ctx, s.runTx, meta.tenantID, func(txCtx context.Context) (*MutationResult, error) {
		rows, err := s.repo.LockAreas(txCtx, meta.tenantID)
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		snap, err := area.NewSnapshot(rows)
		if err != nil {
			return nil, mapDomainError(err)
		}

		plan, err := planFn(snap)
		if err != nil {
			return nil, mapDomainError(err)
		}
		if _, err := hierarchy.Apply(snap, plan); err != nil {
			return nil, mapDomainError(err)
		}
		if meta.dryRun {
			return &MutationResult{Plan: plan, DryRun: true}, nil
		}

		txTime := s.now().UTC()
		evs := make([]events.AreaEventV1, 0, plan.Len())
		for i, op := range plan.Ops {
			ev, err := s.applyOp(txCtx, meta, snap, op, i, txTime)
			if err != nil {
				return nil, err
			}
			evs = append(evs, ev)
		}
		return &MutationResult{Plan: plan, GeneratedEvents: evs}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
		s.reject(ctx, meta, err, nil)
		return nil, err
	}
	span.SetAttributes(attribute.Int("areas.ops", res.Plan.Len()))
	s.afterCommit(ctx, meta, res)
	return res, nil
}

func (s *AreaService) applyOp(ctx context.Context, meta mutationMeta, before area.Store, op hierarchy.Operation, seq int, txTime time.Time) (events.AreaEventV1, error) {
	var (
		err        error
		changeType string
		oldValues  any
		newValues  any
	)
	switch op.Kind {
	case hierarchy.OpInsert:
		changeType = events.ChangeTypeCreated
		err = s.repo.InsertArea(ctx, meta.tenantID, *op.Area)
		newValues = op.Area
	case hierarchy.OpSetParent:
		changeType = events.ChangeTypeMoved
		err = s.repo.SetParent(ctx, meta.tenantID, op.NodeID, op.ParentID)
		prev, _ := before.Get(op.NodeID)
		oldValues = parentValues{ParentID: prev.ParentID}
		newValues = parentValues{ParentID: op.ParentID}
	case hierarchy.OpDelete:
		changeType = events.ChangeTypeDeleted
		err = s.repo.DeleteArea(ctx, meta.tenantID, op.NodeID)
		prev, _ := before.Get(op.NodeID)
		oldValues = prev
	default:
		return events.AreaEventV1{}, fmt.Errorf("unsupported operation %q", op.Kind)
	}
	if err != nil {
		return events.AreaEventV1{}, mapPgErrorToServiceError(err)
	}
	return newEvent(meta, txTime, changeType, op.NodeID, seq, oldValues, newValues)
}

func (s *AreaService) afterCommit(ctx context.Context, meta mutationMeta, res *MutationResult) {
	if res.DryRun {
		logPlanApplied(ctx, meta.name, meta.tenantID, meta.requestID, res.Plan, true)
		return
	}
	if s.cache != nil {
		err := s.generations.invalidate(meta.tenantID, func() error {
			return s.cache.Invalidate(ctx, meta.tenantID)
		})
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "areas.cache.invalidate_failed", logrus.Fields{
				"tenant_id": meta.tenantID.String(),
				"error":     err.Error(),
			})
		}
		recordCacheInvalidate("write_commit")
	}
	recordPlanOps(res.Plan)
	logPlanApplied(ctx, meta.name, meta.tenantID, meta.requestID, res.Plan, false)

	if s.publisher == nil {
		return
	}
	for _, ev := range res.GeneratedEvents {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logWithFields(ctx, logrus.ErrorLevel, "areas.event.publish_failed", logrus.Fields{
				"tenant_id":   meta.tenantID.String(),
				"event_id":    ev.EventID.String(),
				"change_type": ev.ChangeType,
				"error":       err.Error(),
			})
		}
	}
}

func (s *AreaService) reject(ctx context.Context, meta mutationMeta, err error, extra logrus.Fields) {
	recordRejection(meta.name, errorCode(err))
	logMutationRejected(ctx, meta.name, meta.tenantID, meta.requestID, meta.nodeID, err, extra)
}

func normalizeLabel(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return "", invalidBody("label is required")
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return "", invalidBody(fmt.Sprintf("label must be at most %d characters", maxLabelLength))
	}
	return label, nil
}
