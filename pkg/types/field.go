package types

import (
	"slices"
	"strings"
	"time"
)

// FieldNode is a node of the field tree: a category or department that
// scopes forms, agents, and, through forms, submissions. ParentID is empty
// for root nodes. Children is a denormalized cache of the reverse edges.
type FieldNode struct {
	FieldID     string    `json:"field_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    string    `json:"parent_id"`
	Children    []string  `json:"children"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (n *FieldNode) EntityID() string      { return n.FieldID }
func (n *FieldNode) SetEntityID(id string) { n.FieldID = id }
func (n *FieldNode) TenantID() string      { return n.OwnerID }

// IsRoot reports whether the node has no parent.
func (n *FieldNode) IsRoot() bool { return n.ParentID == "" }

// Rename sets the name and description. Returns ErrInvalidName if the
// trimmed name is empty.
func (n *FieldNode) Rename(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	n.Name = name
	n.Description = strings.TrimSpace(description)
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// AddChild records id in the children cache. Idempotent.
func (n *FieldNode) AddChild(id string) {
	if slices.Contains(n.Children, id) {
		return
	}
	n.Children = append(n.Children, id)
	n.UpdatedAt = time.Now().UTC()
}

// RemoveChild drops id from the children cache. Idempotent.
func (n *FieldNode) RemoveChild(id string) {
	i := slices.Index(n.Children, id)
	if i < 0 {
		return
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	n.UpdatedAt = time.Now().UTC()
}

// HasChildren reports whether the children cache is non-empty.
func (n *FieldNode) HasChildren() bool { return len(n.Children) > 0 }
