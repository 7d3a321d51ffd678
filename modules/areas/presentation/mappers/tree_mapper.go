package mappers

import (
	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/modules/areas/presentation/viewmodels"
)

// TreeToViewModel flattens built trees in pre-order. Sibling order is kept as
// the engine produced it.
func TreeToViewModel(roots []*hierarchy.TreeNode, selectedID *uuid.UUID) *viewmodels.AreaTree {
	size := 0
	for _, r := range roots {
		size += r.Size()
	}
	out := &viewmodels.AreaTree{Nodes: make([]viewmodels.AreaTreeNode, 0, size)}

	var walk func(n *hierarchy.TreeNode)
	walk = func(n *hierarchy.TreeNode) {
		a := n.Area.Clone()
		out.Nodes = append(out.Nodes, viewmodels.AreaTreeNode{
			ID:         a.ID,
			ParentID:   a.ParentID,
			Label:      a.Label,
			IsActive:   a.IsActive,
			Depth:      n.Depth,
			ChildCount: len(n.Children),
			Selected:   selectedID != nil && *selectedID == a.ID,
		})
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}
