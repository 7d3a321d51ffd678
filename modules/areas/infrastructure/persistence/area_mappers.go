package persistence

import (
	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/persistence/models"
)

func toDomainArea(row *models.Area) area.Area {
	return area.Area{
		ID:       row.ID,
		ParentID: row.ParentID,
		Label:    row.Label,
		IsActive: row.IsActive,
	}
}

func toDBArea(tenantID uuid.UUID, a area.Area) *models.Area {
	return &models.Area{
		TenantID: tenantID,
		ID:       a.ID,
		ParentID: a.ParentID,
		Label:    a.Label,
		IsActive: a.IsActive,
	}
}
