package hierarchy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

type OpKind string

const (
	OpInsert    OpKind = "insert"
	OpSetParent OpKind = "set_parent"
	OpDelete    OpKind = "delete"
)

// Operation is one elementary change. ParentID is meaningful for OpSetParent;
// Area is set for OpInsert only.
type Operation struct {
	Kind     OpKind     `json:"kind"`
	NodeID   uuid.UUID  `json:"node_id"`
	ParentID *uuid.UUID `json:"parent_id"`
	Area     *area.Area `json:"area,omitempty"`
}

func (op Operation) String() string {
	switch op.Kind {
	case OpSetParent:
		if op.ParentID == nil {
			return fmt.Sprintf("SetParent(%s, root)", op.NodeID)
		}
		return fmt.Sprintf("SetParent(%s, %s)", op.NodeID, *op.ParentID)
	case OpDelete:
		return fmt.Sprintf("Delete(%s)", op.NodeID)
	case OpInsert:
		return fmt.Sprintf("Insert(%s)", op.NodeID)
	default:
		return fmt.Sprintf("%s(%s)", op.Kind, op.NodeID)
	}
}

// Plan is an ordered list of operations that must be applied in sequence.
type Plan struct {
	Ops []Operation `json:"ops"`
}

func (p Plan) Len() int {
	return len(p.Ops)
}

// Position says where a moved area lands relative to its target.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionInside Position = "inside"
	PositionRoot   Position = "root"
)

func (p Position) Valid() bool {
	switch p {
	case PositionBefore, PositionAfter, PositionInside, PositionRoot:
		return true
	default:
		return false
	}
}

func ParsePosition(raw string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", area.ErrInvalidPosition, raw)
	}
	return p, nil
}

// PlanMove validates a move and emits a single SetParent operation.
// before and after resolve to the target's parent; sibling order is not persisted.
func (e Engine) PlanMove(store area.Store, nodeID uuid.UUID, targetID *uuid.UUID, position Position) (Plan, error) {
	if !position.Valid() {
		return Plan{}, fmt.Errorf("%w: %q", area.ErrInvalidPosition, position)
	}
	node, ok := store.Get(nodeID)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", area.ErrNotFound, nodeID)
	}
	if targetID != nil && *targetID == nodeID {
		return Plan{}, fmt.Errorf("%w: %s cannot be moved relative to itself", area.ErrCycleRejected, nodeID)
	}

	var newParentID *uuid.UUID
	if position != PositionRoot {
		if targetID == nil {
			return Plan{}, fmt.Errorf("%w: target is required for %q", area.ErrInvalidPosition, position)
		}
		target, ok := store.Get(*targetID)
		if !ok {
			return Plan{}, fmt.Errorf("%w: target %s", area.ErrNotFound, *targetID)
		}
		if position == PositionInside {
			newParentID = &target.ID
		} else {
			newParentID = target.ParentID
		}
	}

	if e.WouldCreateCycle(store, node.ID, newParentID) {
		return Plan{}, fmt.Errorf("%w: %s under %s", area.ErrCycleRejected, node.ID, *newParentID)
	}

	return Plan{Ops: []Operation{{Kind: OpSetParent, NodeID: node.ID, ParentID: newParentID}}}, nil
}

// PlanDelete removes an area. With cascade its descendants are deleted first,
// deepest first, so a parent is never removed while a child still references it.
func (e Engine) PlanDelete(store area.Store, nodeID uuid.UUID, cascade bool) (Plan, error) {
	if _, ok := store.Get(nodeID); !ok {
		return Plan{}, fmt.Errorf("%w: %s", area.ErrNotFound, nodeID)
	}

	descendants := e.Descendants(store, nodeID)
	if len(descendants) > 0 && !cascade {
		return Plan{}, fmt.Errorf("%w: %s has %d descendants", area.ErrNonEmptySubtree, nodeID, len(descendants))
	}

	depth := make(map[uuid.UUID]int, len(descendants))
	for _, d := range descendants {
		depth[d.ID] = e.Depth(store, d.ID)
	}
	slices.SortFunc(descendants, func(a, b area.Area) int {
		if depth[a.ID] != depth[b.ID] {
			return depth[b.ID] - depth[a.ID]
		}
		return compareIDs(a.ID, b.ID)
	})

	ops := make([]Operation, 0, len(descendants)+1)
	for _, d := range descendants {
		ops = append(ops, Operation{Kind: OpDelete, NodeID: d.ID})
	}
	ops = append(ops, Operation{Kind: OpDelete, NodeID: nodeID})
	return Plan{Ops: ops}, nil
}

// PlanCreate validates a new area against the store and emits one Insert.
func (e Engine) PlanCreate(store area.Store, a area.Area) (Plan, error) {
	if a.ID == uuid.Nil {
		return Plan{}, area.ErrInvalidID
	}
	if _, exists := store.Get(a.ID); exists {
		return Plan{}, fmt.Errorf("%w: %s", area.ErrDuplicateID, a.ID)
	}
	a = a.Clone()
	if a.ParentID != nil && *a.ParentID == uuid.Nil {
		a.ParentID = nil
	}
	if a.ParentID != nil {
		if _, ok := store.Get(*a.ParentID); !ok {
			return Plan{}, fmt.Errorf("%w: parent %s", area.ErrNotFound, *a.ParentID)
		}
	}
	return Plan{Ops: []Operation{{Kind: OpInsert, NodeID: a.ID, ParentID: a.ParentID, Area: &a}}}, nil
}
