package viewmodels

import "github.com/google/uuid"

type AreaTreeNode struct {
	ID         uuid.UUID  `json:"id"`
	ParentID   *uuid.UUID `json:"parent_id"`
	Label      string     `json:"label"`
	IsActive   bool       `json:"is_active"`
	Depth      int        `json:"depth"`
	ChildCount int        `json:"child_count"`
	Selected   bool       `json:"selected,omitempty"`
}

// AreaTree lists nodes in pre-order, so a client can render it by depth alone.
type AreaTree struct {
	Nodes []AreaTreeNode `json:"nodes"`
}
