package hierarchy

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

// WouldCreateCycle reports whether giving nodeID the parent newParentID would make
// nodeID its own ancestor. A nil parent never does. A walk that revisits an id is
// treated as a cycle, so corrupt stores fail closed.
func (e Engine) WouldCreateCycle(store area.Store, nodeID uuid.UUID, newParentID *uuid.UUID) bool {
	if newParentID == nil {
		return false
	}
	visited := make(map[uuid.UUID]struct{})
	cur := *newParentID
	for {
		if cur == nodeID {
			return true
		}
		if _, seen := visited[cur]; seen {
			return true
		}
		visited[cur] = struct{}{}

		a, ok := store.Get(cur)
		if !ok || a.ParentID == nil {
			return false
		}
		cur = *a.ParentID
	}
}

type IssueKind string

const (
	IssueDanglingParent IssueKind = "dangling_parent"
	IssueCycle          IssueKind = "cycle"
)

// Issue is one integrity violation found by Check.
type Issue struct {
	Kind     IssueKind   `json:"kind"`
	AreaID   uuid.UUID   `json:"area_id"`
	ParentID *uuid.UUID  `json:"parent_id,omitempty"`
	Members  []uuid.UUID `json:"members,omitempty"`
	Message  string      `json:"message"`
}

// Check scans a store that may not satisfy the hierarchy invariants. Each cycle is
// reported once, keyed by its smallest member id. Issues are sorted by kind and id.
func (e Engine) Check(store area.Store) []Issue {
	all := store.All()
	byID := make(map[uuid.UUID]area.Area, len(all))
	ids := make([]uuid.UUID, 0, len(all))
	for _, a := range all {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}
	slices.SortFunc(ids, compareIDs)

	issues := make([]Issue, 0)
	for _, id := range ids {
		a := byID[id]
		if a.ParentID == nil {
			continue
		}
		if _, ok := byID[*a.ParentID]; !ok {
			issues = append(issues, Issue{
				Kind:     IssueDanglingParent,
				AreaID:   a.ID,
				ParentID: a.ParentID,
				Message:  fmt.Sprintf("parent %s does not exist", *a.ParentID),
			})
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[uuid.UUID]int, len(ids))
	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		trail := make([]uuid.UUID, 0, 8)
		cur := start
		for {
			if st := state[cur]; st == visiting {
				members := slices.Clone(trail[slices.Index(trail, cur):])
				slices.SortFunc(members, compareIDs)
				issues = append(issues, Issue{
					Kind:    IssueCycle,
					AreaID:  members[0],
					Members: members,
					Message: fmt.Sprintf("%d areas form a parent cycle", len(members)),
				})
				break
			} else if st == done {
				break
			}
			state[cur] = visiting
			trail = append(trail, cur)

			parentID := byID[cur].ParentID
			if parentID == nil {
				break
			}
			if _, ok := byID[*parentID]; !ok {
				break
			}
			cur = *parentID
		}
		for _, id := range trail {
			state[id] = done
		}
	}

	slices.SortStableFunc(issues, func(a, b Issue) int {
		if a.Kind != b.Kind {
			if a.Kind == IssueDanglingParent {
				return -1
			}
			return 1
		}
		return compareIDs(a.AreaID, b.AreaID)
	})
	return issues
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
