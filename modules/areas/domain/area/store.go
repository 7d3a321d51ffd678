package area

import (
	"fmt"

	"github.com/google/uuid"
)

// Store is a read-only view over every area known at one point in time.
type Store interface {
	Get(id uuid.UUID) (Area, bool)
	// All returns every area in no particular order.
	All() []Area
	// Children returns the areas whose ParentID equals parentID; nil selects roots.
	Children(parentID *uuid.UUID) []Area
}

// Snapshot is the in-memory Store. It is immutable once built.
type Snapshot struct {
	byID     map[uuid.UUID]Area
	children map[uuid.UUID][]uuid.UUID
}

var _ Store = (*Snapshot)(nil)

// NewSnapshot indexes areas in a single pass. A ParentID of uuid.Nil is normalised to nil.
func NewSnapshot(areas []Area) (*Snapshot, error) {
	s := &Snapshot{
		byID:     make(map[uuid.UUID]Area, len(areas)),
		children: make(map[uuid.UUID][]uuid.UUID, len(areas)),
	}
	for _, a := range areas {
		if a.ID == uuid.Nil {
			return nil, ErrInvalidID
		}
		if _, ok := s.byID[a.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
		s.put(normalize(a))
	}
	return s, nil
}

// MustSnapshot is NewSnapshot for fixtures.
func MustSnapshot(areas ...Area) *Snapshot {
	s, err := NewSnapshot(areas)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Snapshot) Get(id uuid.UUID) (Area, bool) {
	a, ok := s.byID[id]
	if !ok {
		return Area{}, false
	}
	return a.Clone(), true
}

func (s *Snapshot) All() []Area {
	out := make([]Area, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a.Clone())
	}
	return out
}

func (s *Snapshot) Children(parentID *uuid.UUID) []Area {
	key := uuid.Nil
	if parentID != nil {
		key = *parentID
	}
	ids := s.children[key]
	out := make([]Area, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Snapshot) Len() int {
	return len(s.byID)
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		byID:     make(map[uuid.UUID]Area, len(s.byID)),
		children: make(map[uuid.UUID][]uuid.UUID, len(s.children)),
	}
	for id, a := range s.byID {
		out.byID[id] = a
	}
	for k, ids := range s.children {
		out.children[k] = append([]uuid.UUID(nil), ids...)
	}
	return out
}

func (s *Snapshot) put(a Area) {
	if prev, ok := s.byID[a.ID]; ok {
		s.unlink(prev)
	}
	s.byID[a.ID] = a
	s.children[a.ParentKey()] = append(s.children[a.ParentKey()], a.ID)
}

func (s *Snapshot) remove(id uuid.UUID) {
	prev, ok := s.byID[id]
	if !ok {
		return
	}
	s.unlink(prev)
	delete(s.byID, id)
}

func (s *Snapshot) unlink(a Area) {
	key := a.ParentKey()
	ids := s.children[key]
	for i, cid := range ids {
		if cid == a.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.children, key)
		return
	}
	s.children[key] = ids
}

func normalize(a Area) Area {
	a = a.Clone()
	if a.ParentID != nil && *a.ParentID == uuid.Nil {
		a.ParentID = nil
	}
	return a
}
