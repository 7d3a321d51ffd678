package area

import "github.com/google/uuid"

// Draft is a mutable working copy of a Store. It satisfies Store itself so that
// queries can run against intermediate states while a plan is being applied.
type Draft struct {
	s *Snapshot
}

var _ Store = (*Draft)(nil)

func NewDraft(store Store) (*Draft, error) {
	if snap, ok := store.(*Snapshot); ok {
		return &Draft{s: snap.clone()}, nil
	}
	snap, err := NewSnapshot(store.All())
	if err != nil {
		return nil, err
	}
	return &Draft{s: snap}, nil
}

func (d *Draft) Get(id uuid.UUID) (Area, bool) { return d.s.Get(id) }
func (d *Draft) All() []Area { return d.s.All() }
func (d *Draft) Children(parentID *uuid.UUID) []Area { return d.s.Children(parentID) }

// Put inserts or replaces an area.
func (d *Draft) Put(a Area) {
	d.s.put(normalize(a))
}

func (d *Draft) Remove(id uuid.UUID) {
	d.s.remove(id)
}

// Snapshot freezes a copy of the current state; the draft stays usable.
func (d *Draft) Snapshot() *Snapshot {
	return d.s.clone()
}
