package fieldtree

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/internal/retry"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Service manages the field nodes of a tenant.
type Service struct {
	fields types.Table
	forms  types.Table
	agents types.Table
	retry  *retry.Config
	logger *zap.Logger
}

// NewService returns a service over the fields table. forms and agents are
// consulted before a delete.
func NewService(fields, forms, agents types.Table, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fields: fields, forms: forms, agents: agents, retry: retry.DefaultConfig(), logger: logger}
}

// List returns the tenant's nodes in creation order.
func (s *Service) List(ctx context.Context, sess *types.Session) ([]*types.FieldNode, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	res, err := s.fields.Fetch(ctx, sess.Scope(nil))
	if err != nil {
		return nil, fmt.Errorf("fetch fields: %w", err)
	}
	out := make([]*types.FieldNode, 0, len(res))
	for _, r := range res {
		if n, ok := r.(*types.FieldNode); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Tree returns the tenant's nodes as a Tree.
func (s *Service) Tree(ctx context.Context, sess *types.Session) (*Tree, error) {
	nodes, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	return Build(nodes), nil
}

// Get returns one node of the tenant.
func (s *Service) Get(ctx context.Context, sess *types.Session, id string) (*types.FieldNode, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	got, err := s.fields.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", id, err)
	}
	n, ok := got.(*types.FieldNode)
	if !ok || !sess.Owns(n) {
		return nil, fmt.Errorf("field %s: %w", id, types.ErrNotFound)
	}
	return n, nil
}

// Exists reports whether id names a node of the session's tenant.
func (s *Service) Exists(ctx context.Context, sess *types.Session, id string) bool {
	_, err := s.Get(ctx, sess, id)
	return err == nil
}

// Create adds a node under parentID, or a root when parentID is empty.
// Names are unique per tenant, ignoring case.
func (s *Service) Create(ctx context.Context, sess *types.Session, name, description, parentID string) (*types.FieldNode, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	tree, err := s.Tree(ctx, sess)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	n := &types.FieldNode{FieldID: docstore.NewID(), OwnerID: sess.TenantID, CreatedAt: now}
	if err := n.Rename(name, description); err != nil {
		return nil, err
	}
	if err := checkUniqueName(tree, n.Name, ""); err != nil {
		return nil, err
	}

	changed := []*types.FieldNode{n}
	if parentID != "" {
		parent, ok := tree.Node(parentID)
		if !ok {
			return nil, fmt.Errorf("parent field %s: %w", parentID, types.ErrNotFound)
		}
		n.ParentID = parentID
		parent.AddChild(n.FieldID)
		changed = append(changed, parent)
	}
	if err := s.save(ctx, changed...); err != nil {
		return n, err
	}
	s.logger.Info("field created", zap.String("field_id", n.FieldID), zap.String("parent_id", parentID))
	return n, nil
}

// Update renames id and moves it under parentID. Moving a node below
// itself or one of its descendants returns ErrCycle.
func (s *Service) Update(ctx context.Context, sess *types.Session, id, name, description, parentID string) (*types.FieldNode, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	tree, err := s.Tree(ctx, sess)
	if err != nil {
		return nil, err
	}
	n, ok := tree.Node(id)
	if !ok {
		return nil, fmt.Errorf("field %s: %w", id, types.ErrNotFound)
	}
	if err := tree.CanReparent(id, parentID); err != nil {
		return nil, err
	}
	if err := n.Rename(name, description); err != nil {
		return nil, err
	}
	if err := checkUniqueName(tree, n.Name, id); err != nil {
		return nil, err
	}

	changed, err := tree.Reparent(id, parentID)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		changed = []*types.FieldNode{n}
	}
	if err := s.save(ctx, changed...); err != nil {
		return n, err
	}
	return n, nil
}

// Delete removes a node that has no children, forms or agents.
func (s *Service) Delete(ctx context.Context, sess *types.Session, id string) error {
	if err := sess.RequireAdmin(); err != nil {
		return err
	}
	tree, err := s.Tree(ctx, sess)
	if err != nil {
		return err
	}
	n, ok := tree.Node(id)
	if !ok {
		return fmt.Errorf("field %s: %w", id, types.ErrNotFound)
	}
	if len(tree.Children(id)) > 0 {
		return types.ErrHasChildren
	}
	if err := s.refuseIfUsed(ctx, sess, s.forms, id, types.ErrHasForms); err != nil {
		return err
	}
	if err := s.refuseIfUsed(ctx, sess, s.agents, id, types.ErrHasAgents); err != nil {
		return err
	}

	err = retry.Do(ctx, s.retry, func() error { return s.fields.Delete(ctx, id) })
	if err != nil {
		return s.persistErr("delete", id, err)
	}
	if parent, ok := tree.Node(n.ParentID); ok {
		parent.RemoveChild(id)
		if err := s.save(ctx, parent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refuseIfUsed(ctx context.Context, sess *types.Session, tbl types.Table, fieldID string, sentinel error) error {
	if tbl == nil {
		return nil
	}
	res, err := tbl.Fetch(ctx, sess.Scope(types.Filter{"field_id": fieldID}))
	if err != nil {
		return fmt.Errorf("check field usage: %w", err)
	}
	if len(res) > 0 {
		return sentinel
	}
	return nil
}

func (s *Service) save(ctx context.Context, nodes ...*types.FieldNode) error {
	for _, n := range nodes {
		err := retry.Do(ctx, s.retry, func() error {
			_, err := s.fields.Set(ctx, n.FieldID, n)
			return err
		})
		if err != nil {
			return s.persistErr("set", n.FieldID, err)
		}
	}
	return nil
}

func (s *Service) persistErr(op, id string, err error) error {
	s.logger.Warn("persist field failed",
		zap.String("collection", types.TableFields),
		zap.String("op", op),
		zap.String("field_id", id),
		zap.Error(err))
	return &types.PersistenceError{Table: types.TableFields, Op: op, Err: err}
}

func checkUniqueName(tree *Tree, name, exceptID string) error {
	for _, id := range tree.order {
		n := tree.nodes[id]
		if id != exceptID && strings.EqualFold(n.Name, name) {
			return fmt.Errorf("%w: %s", types.ErrDuplicateName, name)
		}
	}
	return nil
}
