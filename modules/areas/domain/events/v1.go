package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TopicAreaChangedV1 = "areas.changed.v1"
	EventVersionV1     = 1
	EntityTypeArea     = "area"
)

const (
	ChangeTypeCreated = "area.created"
	ChangeTypeUpdated = "area.updated"
	ChangeTypeMoved   = "area.moved"
	ChangeTypeDeleted = "area.deleted"
)

// AreaEventV1 is published once per applied operation. Sequence is the position
// of the operation inside its plan, so consumers can replay a cascade in order.
type AreaEventV1 struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventVersion    int             `json:"event_version"`
	RequestID       string          `json:"request_id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	TransactionTime time.Time       `json:"transaction_time"`
	InitiatorID     uuid.UUID       `json:"initiator_id"`
	ChangeType      string          `json:"change_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        uuid.UUID       `json:"entity_id"`
	Sequence        int             `json:"sequence"`
	OldValues       json.RawMessage `json:"old_values,omitempty"`
	NewValues       json.RawMessage `json:"new_values,omitempty"`
}

func (e AreaEventV1) Topic() string {
	return TopicAreaChangedV1
}
