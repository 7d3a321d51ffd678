package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/persistence/models"
	"github.com/pocotu/oficri-areas/pkg/composables"
)

const (
	selectAreasQuery = `
		SELECT id, parent_id, label, is_active, created_at, updated_at
		FROM areas
		WHERE tenant_id = $1`

	insertAreaQuery = `
		INSERT INTO areas (tenant_id, id, parent_id, label, is_active)
		VALUES ($1, $2, $3, $4, $5)`

	updateAreaQuery = `
		UPDATE areas
		SET label = $3, is_active = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`

	setParentQuery = `
		UPDATE areas
		SET parent_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`

	deleteAreaQuery = `DELETE FROM areas WHERE tenant_id = $1 AND id = $2`
)

// AreaRepository is the pgx implementation of services.AreaRepository.
type AreaRepository struct{}

func NewAreaRepository() *AreaRepository {
	return &AreaRepository{}
}

func (r *AreaRepository) ListAreas(ctx context.Context, tenantID uuid.UUID) ([]area.Area, error) {
	return r.queryAreas(ctx, tenantID, selectAreasQuery)
}

// LockAreas takes row locks on every area of the tenant. Writers serialize on
// them, so a plan computed from the result stays valid until commit.
func (r *AreaRepository) LockAreas(ctx context.Context, tenantID uuid.UUID) ([]area.Area, error) {
	return r.queryAreas(ctx, tenantID, selectAreasQuery+" ORDER BY id FOR UPDATE")
}

func (r *AreaRepository) queryAreas(ctx context.Context, tenantID uuid.UUID, query string) ([]area.Area, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "query areas")
	}
	defer rows.Close()

	var out []area.Area
	for rows.Next() {
		var row models.Area
		if err := rows.Scan(&row.ID, &row.ParentID, &row.Label, &row.IsActive, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan area")
		}
		out = append(out, toDomainArea(&row))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate areas")
	}
	return out, nil
}

func (r *AreaRepository) InsertArea(ctx context.Context, tenantID uuid.UUID, a area.Area) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row := toDBArea(tenantID, a)
	if _, err := tx.Exec(ctx, insertAreaQuery, row.TenantID, row.ID, row.ParentID, row.Label, row.IsActive); err != nil {
		return errors.Wrapf(err, "insert area %s", a.ID)
	}
	return nil
}

func (r *AreaRepository) UpdateArea(ctx context.Context, tenantID uuid.UUID, a area.Area) error {
	return r.execOne(ctx, "update area", a.ID, updateAreaQuery, tenantID, a.ID, a.Label, a.IsActive)
}

func (r *AreaRepository) SetParent(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, parentID *uuid.UUID) error {
	return r.execOne(ctx, "set parent", id, setParentQuery, tenantID, id, parentID)
}

func (r *AreaRepository) DeleteArea(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) error {
	return r.execOne(ctx, "delete area", id, deleteAreaQuery, tenantID, id)
}

// execOne runs a statement that must touch exactly one row; zero rows is reported
// as pgx.ErrNoRows.
func (r *AreaRepository) execOne(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "%s %s", op, id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(pgx.ErrNoRows, "%s %s", op, id)
	}
	return nil
}
