// Package fieldtree models the hierarchy of field nodes as an arena indexed
// by ID, and provides the tenant-scoped service that creates, moves and
// deletes nodes.
package fieldtree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Tree is an arena of field nodes. Parent and child links are IDs. The
// children caches are derived from parent edges by Build, in input order.
type Tree struct {
	nodes map[string]*types.FieldNode
	order []string
}

// Build returns a tree over nodes. Children caches are rebuilt from the
// parent edges; a parent that is not in the set makes the node a root.
func Build(nodes []*types.FieldNode) *Tree {
	t := &Tree{nodes: make(map[string]*types.FieldNode, len(nodes))}
	for _, n := range nodes {
		c := *n
		c.Children = nil
		t.nodes[c.FieldID] = &c
		t.order = append(t.order, c.FieldID)
	}
	for _, id := range t.order {
		n := t.nodes[id]
		if p, ok := t.nodes[n.ParentID]; ok && n.ParentID != id {
			p.Children = append(p.Children, id)
		}
	}
	return t
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given ID.
func (t *Tree) Node(id string) (*types.FieldNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots returns nodes whose parent is empty or missing, in input order.
func (t *Tree) Roots() []*types.FieldNode {
	var out []*types.FieldNode
	for _, id := range t.order {
		n := t.nodes[id]
		if _, ok := t.nodes[n.ParentID]; !ok || n.ParentID == id {
			out = append(out, n)
		}
	}
	return out
}

// Children returns the direct children of id.
func (t *Tree) Children(id string) []*types.FieldNode {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*types.FieldNode, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, t.nodes[c])
	}
	return out
}

// Descendants returns every node below id, depth first.
func (t *Tree) Descendants(id string) []*types.FieldNode {
	var out []*types.FieldNode
	seen := map[string]bool{id: true}
	var walk func(string)
	walk = func(cur string) {
		for _, c := range t.Children(cur) {
			if seen[c.FieldID] {
				continue
			}
			seen[c.FieldID] = true
			out = append(out, c)
			walk(c.FieldID)
		}
	}
	walk(id)
	return out
}

// IsDescendant reports whether candidate lies below id.
func (t *Tree) IsDescendant(id, candidate string) bool {
	return slices.ContainsFunc(t.Descendants(id), func(n *types.FieldNode) bool {
		return n.FieldID == candidate
	})
}

// Path returns the node names from the root down to id.
func (t *Tree) Path(id string) []string {
	var names []string
	seen := map[string]bool{}
	for cur, ok := t.nodes[id]; ok && !seen[cur.FieldID]; cur, ok = t.nodes[cur.ParentID] {
		seen[cur.FieldID] = true
		names = append(names, cur.Name)
	}
	slices.Reverse(names)
	return names
}

// PathString joins Path with " / ".
func (t *Tree) PathString(id string) string {
	return strings.Join(t.Path(id), " / ")
}

// Walk visits every node depth first starting from the roots. depth is 0
// for roots. Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n *types.FieldNode, depth int) bool) {
	seen := map[string]bool{}
	var visit func(n *types.FieldNode, depth int)
	visit = func(n *types.FieldNode, depth int) {
		if seen[n.FieldID] {
			return
		}
		seen[n.FieldID] = true
		if !fn(n, depth) {
			return
		}
		for _, c := range t.Children(n.FieldID) {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots() {
		visit(r, 0)
	}
}

// CanReparent returns ErrCycle when parentID is id itself or one of its
// descendants, and ErrNotFound when either node is unknown. An empty
// parentID (make root) is always allowed.
func (t *Tree) CanReparent(id, parentID string) error {
	if _, ok := t.nodes[id]; !ok {
		return fmt.Errorf("field %s: %w", id, types.ErrNotFound)
	}
	if parentID == "" {
		return nil
	}
	if _, ok := t.nodes[parentID]; !ok {
		return fmt.Errorf("parent field %s: %w", parentID, types.ErrNotFound)
	}
	if parentID == id || t.IsDescendant(id, parentID) {
		return types.ErrCycle
	}
	return nil
}

// Reparent moves id under parentID and keeps both children caches in sync.
// It returns the nodes whose records changed: the moved node and any old
// or new parent.
func (t *Tree) Reparent(id, parentID string) ([]*types.FieldNode, error) {
	if err := t.CanReparent(id, parentID); err != nil {
		return nil, err
	}
	n := t.nodes[id]
	if n.ParentID == parentID {
		return nil, nil
	}
	changed := []*types.FieldNode{n}
	if old, ok := t.nodes[n.ParentID]; ok {
		old.RemoveChild(id)
		changed = append(changed, old)
	}
	n.ParentID = parentID
	if p, ok := t.nodes[parentID]; ok {
		p.AddChild(id)
		changed = append(changed, p)
	}
	return changed, nil
}
