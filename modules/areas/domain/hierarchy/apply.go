package hierarchy

import (
	"fmt"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

// Apply runs a plan against a copy of store and returns the resulting snapshot.
// It enforces the same referential rules as the database: parents must exist
// and an area cannot be deleted while it still has children.
func Apply(store area.Store, plan Plan) (*area.Snapshot, error) {
	d, err := area.NewDraft(store)
	if err != nil {
		return nil, err
	}
	for i, op := range plan.Ops {
		if err := applyOp(d, op); err != nil {
			return nil, fmt.Errorf("op %d %s: %w", i, op, err)
		}
	}
	return d.Snapshot(), nil
}

func applyOp(d *area.Draft, op Operation) error {
	if op.ParentID != nil && op.Kind != OpDelete {
		if _, ok := d.Get(*op.ParentID); !ok {
			return fmt.Errorf("%w: parent %s", area.ErrNotFound, *op.ParentID)
		}
	}

	switch op.Kind {
	case OpInsert:
		if op.Area == nil {
			return fmt.Errorf("%w: insert without area", area.ErrInvalidID)
		}
		if _, exists := d.Get(op.NodeID); exists {
			return fmt.Errorf("%w: %s", area.ErrDuplicateID, op.NodeID)
		}
		a := op.Area.Clone()
		a.ID = op.NodeID
		a.ParentID = op.ParentID
		d.Put(a)
	case OpSetParent:
		a, ok := d.Get(op.NodeID)
		if !ok {
			return fmt.Errorf("%w: %s", area.ErrNotFound, op.NodeID)
		}
		a.ParentID = op.ParentID
		d.Put(a)
	case OpDelete:
		if _, ok := d.Get(op.NodeID); !ok {
			return fmt.Errorf("%w: %s", area.ErrNotFound, op.NodeID)
		}
		if n := len(d.Children(&op.NodeID)); n > 0 {
			return fmt.Errorf("%w: %s still has %d children", area.ErrNonEmptySubtree, op.NodeID, n)
		}
		d.Remove(op.NodeID)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	return nil
}
