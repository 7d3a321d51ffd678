package hierarchy

import (
	"slices"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

// Path returns the chain from the root down to id, both included.
// Unknown ids give an empty path. On a corrupt store the walk stops at the first
// revisited id or missing parent and returns what it collected.
func (e Engine) Path(store area.Store, id uuid.UUID) []area.Area {
	cur, ok := store.Get(id)
	if !ok {
		return []area.Area{}
	}

	out := []area.Area{cur}
	visited := map[uuid.UUID]struct{}{cur.ID: {}}
	for cur.ParentID != nil {
		parent, ok := store.Get(*cur.ParentID)
		if !ok {
			break
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		out = append(out, parent)
		cur = parent
	}
	slices.Reverse(out)
	return out
}

// Depth is zero for roots and for unknown ids.
func (e Engine) Depth(store area.Store, id uuid.UUID) int {
	if n := len(e.Path(store, id)); n > 0 {
		return n - 1
	}
	return 0
}

// Descendants lists every area below id, in depth-first order. The area itself is
// not included.
func (e Engine) Descendants(store area.Store, id uuid.UUID) []area.Area {
	if _, ok := store.Get(id); !ok {
		return []area.Area{}
	}

	out := make([]area.Area, 0)
	visited := map[uuid.UUID]struct{}{id: {}}
	stack := store.Children(&id)
	slices.Reverse(stack)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[cur.ID]; seen {
			continue
		}
		visited[cur.ID] = struct{}{}
		out = append(out, cur)

		children := store.Children(&cur.ID)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// IsAncestorOf reports whether ancestorID lies strictly above descendantID.
func (e Engine) IsAncestorOf(store area.Store, ancestorID, descendantID uuid.UUID) bool {
	if ancestorID == descendantID {
		return false
	}
	for _, a := range e.Path(store, descendantID) {
		if a.ID == ancestorID {
			return true
		}
	}
	return false
}
