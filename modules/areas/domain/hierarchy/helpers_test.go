package hierarchy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func node(id int, parent int, label string) area.Area {
	a := area.Area{ID: testID(id), Label: label, IsActive: true}
	if parent != 0 {
		p := testID(parent)
		a.ParentID = &p
	}
	return a
}

func ref(n int) *uuid.UUID {
	id := testID(n)
	return &id
}

func idsOf(areas []area.Area) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(areas))
	for _, a := range areas {
		out = append(out, a.ID)
	}
	return out
}

// chain builds root(1) -> X(2) -> Y(3) -> Z(4).
func chain() *area.Snapshot {
	return area.MustSnapshot(
		node(1, 0, "root"),
		node(2, 1, "X"),
		node(3, 2, "Y"),
		node(4, 3, "Z"),
	)
}

// flatten lists a tree in pre-order.
func flatten(nodes []*TreeNode) []*TreeNode {
	out := make([]*TreeNode, 0, len(nodes))
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}
