package hierarchy

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

// DefaultLanguage is used for sibling collation when no language is configured.
var DefaultLanguage = language.Spanish

// Engine holds presentation settings only; it keeps no state between calls.
type Engine struct {
	lang language.Tag
}

type Option func(*Engine)

func WithLanguage(tag language.Tag) Option {
	return func(e *Engine) {
		if tag != language.Und {
			e.lang = tag
		}
	}
}

func New(opts ...Option) Engine {
	e := Engine{lang: DefaultLanguage}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e Engine) Language() language.Tag {
	if e.lang == language.Und {
		return DefaultLanguage
	}
	return e.lang
}

type TreeNode struct {
	Area     area.Area   `json:"area"`
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children"`
}

// Size counts the node and everything below it.
func (n *TreeNode) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

type treeOptions struct {
	activeOnly bool
}

type TreeOption func(*treeOptions)

// WithActiveOnly drops inactive areas together with everything below them.
func WithActiveOnly() TreeOption {
	return func(o *treeOptions) { o.activeOnly = true }
}

// BuildTree groups the store by parent and orders each sibling group by label.
// A nil rootID yields the whole forest; an unknown rootID yields nothing.
// Areas whose parent is missing from the store are placed at the top level.
func (e Engine) BuildTree(store area.Store, rootID *uuid.UUID, opts ...TreeOption) []*TreeNode {
	var o treeOptions
	for _, opt := range opts {
		opt(&o)
	}

	all := store.All()
	byID := make(map[uuid.UUID]area.Area, len(all))
	for _, a := range all {
		byID[a.ID] = a
	}

	childrenByParent := make(map[uuid.UUID][]area.Area, len(all))
	for _, a := range all {
		parentID := a.ParentKey()
		if _, ok := byID[parentID]; !ok {
			parentID = uuid.Nil
		}
		childrenByParent[parentID] = append(childrenByParent[parentID], a)
	}

	cmp := e.siblingOrder()
	for parentID, siblings := range childrenByParent {
		slices.SortFunc(siblings, cmp)
		childrenByParent[parentID] = siblings
	}

	visited := make(map[uuid.UUID]struct{}, len(all))
	var walk func(a area.Area, depth int) *TreeNode
	walk = func(a area.Area, depth int) *TreeNode {
		if _, ok := visited[a.ID]; ok {
			return nil
		}
		if o.activeOnly && !a.IsActive {
			return nil
		}
		visited[a.ID] = struct{}{}

		node := &TreeNode{Area: a, Depth: depth, Children: make([]*TreeNode, 0, len(childrenByParent[a.ID]))}
		for _, child := range childrenByParent[a.ID] {
			if c := walk(child, depth+1); c != nil {
				node.Children = append(node.Children, c)
			}
		}
		return node
	}

	if rootID != nil {
		root, ok := byID[*rootID]
		if !ok {
			return nil
		}
		if n := walk(root, e.Depth(store, root.ID)); n != nil {
			return []*TreeNode{n}
		}
		return nil
	}

	roots := childrenByParent[uuid.Nil]
	out := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		if n := walk(r, 0); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// siblingOrder compares labels with the engine's collator and falls back
// to the id bytes. Collators are not safe for concurrent use, so each call gets its own.
func (e Engine) siblingOrder() func(a, b area.Area) int {
	c := collate.New(e.Language())
	return func(a, b area.Area) int {
		if r := c.CompareString(a.Label, b.Label); r != 0 {
			return r
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	}
}
