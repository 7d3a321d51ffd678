package area

import "github.com/google/uuid"

// Area is one unit of the organizational hierarchy.
type Area struct {
	ID       uuid.UUID  `json:"id"`
	ParentID *uuid.UUID `json:"parent_id"`
	Label    string     `json:"label"`
	IsActive bool       `json:"is_active"`
}

func (a Area) IsRoot() bool {
	return a.ParentID == nil
}

// ParentKey returns the parent id, or uuid.Nil for roots.
func (a Area) ParentKey() uuid.UUID {
	if a.ParentID == nil {
		return uuid.Nil
	}
	return *a.ParentID
}

// Clone detaches the ParentID pointer so callers cannot alias stored values.
func (a Area) Clone() Area {
	if a.ParentID != nil {
		p := *a.ParentID
		a.ParentID = &p
	}
	return a
}

func ParentRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
