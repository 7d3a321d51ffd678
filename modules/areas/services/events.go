package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
)

type parentValues struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

func newEvent(meta mutationMeta, txTime time.Time, changeType string, entityID uuid.UUID, seq int, oldValues, newValues any) (events.AreaEventV1, error) {
	oldRaw, err := marshalValues(oldValues)
	if err != nil {
		return events.AreaEventV1{}, err
	}
	newRaw, err := marshalValues(newValues)
	if err != nil {
		return events.AreaEventV1{}, err
	}
	return events.AreaEventV1{
		EventID:         uuid.New(),
		EventVersion:    events.EventVersionV1,
		RequestID:       meta.requestID,
		TenantID:        meta.tenantID,
		TransactionTime: txTime,
		InitiatorID:     meta.initiatorID,
		ChangeType:      changeType,
		EntityType:      events.EntityTypeArea,
		EntityID:        entityID,
		Sequence:        seq,
		OldValues:       oldRaw,
		NewValues:       newRaw,
	}, nil
}

func marshalValues(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
