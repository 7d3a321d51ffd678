package models

import (
	"time"

	"github.com/google/uuid"
)

type Area struct {
	TenantID  uuid.UUID
	ID        uuid.UUID
	ParentID  *uuid.UUID
	Label     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
