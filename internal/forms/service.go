// Package forms publishes, lists and deletes form schemas for a tenant.
// Published forms are immutable; the only way to change one is to delete
// it, which also removes its submissions.
package forms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/eventbus"
	"github.com/mesh-intelligence/fieldforms/internal/retry"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// FieldChecker reports whether a field node exists for the session.
type FieldChecker interface {
	Exists(ctx context.Context, sess *types.Session, id string) bool
}

// Service manages published forms.
type Service struct {
	forms       types.Table
	fields      FieldChecker
	submissions *submission.Store
	events      eventbus.Publisher
	retry       *retry.Config
	logger      *zap.Logger
}

// NewService returns a forms service. events may be nil.
func NewService(forms types.Table, fields FieldChecker, subs *submission.Store, events eventbus.Publisher, logger *zap.Logger) *Service {
	if events == nil {
		events = eventbus.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		forms:       forms,
		fields:      fields,
		submissions: subs,
		events:      events,
		retry:       retry.DefaultConfig(),
		logger:      logger,
	}
}

// Publish validates the builder and stores the resulting form in the
// session's tenant. req.OwnerID is ignored. A storage failure returns the
// form together with a *types.PersistenceError.
func (s *Service) Publish(ctx context.Context, sess *types.Session, b *schema.Builder, req schema.PublishRequest) (*types.Form, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	req.OwnerID = sess.TenantID
	form, err := b.Publish(req, func(id string) bool {
		return s.fields.Exists(ctx, sess, id)
	})
	if err != nil {
		return nil, err
	}
	err = retry.Do(ctx, s.retry, func() error {
		_, err := s.forms.Set(ctx, form.FormID, form)
		return err
	})
	if err != nil {
		s.logger.Warn("persist form failed",
			zap.String("collection", types.TableForms),
			zap.String("form_id", form.FormID),
			zap.Error(err))
		return form, &types.PersistenceError{Table: types.TableForms, Op: "set", Err: err}
	}
	s.events.Publish(eventbus.Event{Type: eventbus.FormPublished, TenantID: form.OwnerID, FormID: form.FormID})
	s.logger.Info("form published",
		zap.String("form_id", form.FormID),
		zap.String("field_id", form.FieldID),
		zap.Int("fields", len(form.Fields)))
	return form, nil
}

// Get returns a form of the session's tenant. Agents only see forms of
// their own field node.
func (s *Service) Get(ctx context.Context, sess *types.Session, id string) (*types.Form, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	got, err := s.forms.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", id, err)
	}
	form, ok := got.(*types.Form)
	if !ok || !s.visible(sess, form) {
		return nil, fmt.Errorf("form %s: %w", id, types.ErrNotFound)
	}
	return form, nil
}

func (s *Service) visible(sess *types.Session, form *types.Form) bool {
	if !sess.Owns(form) {
		return false
	}
	return sess.IsAdmin() || sess.FieldID == "" || form.FieldID == sess.FieldID
}

// List returns the forms visible to the session.
func (s *Service) List(ctx context.Context, sess *types.Session) ([]*types.Form, error) {
	if sess != nil && !sess.IsAdmin() {
		return s.ListForAgent(ctx, sess)
	}
	return s.fetch(ctx, sess, nil)
}

// ListByField returns the forms attached to one field node.
func (s *Service) ListByField(ctx context.Context, sess *types.Session, fieldID string) ([]*types.Form, error) {
	return s.fetch(ctx, sess, types.Filter{"field_id": fieldID})
}

// ListForAgent returns the forms of the agent's field node.
func (s *Service) ListForAgent(ctx context.Context, sess *types.Session) ([]*types.Form, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if sess.FieldID == "" {
		return []*types.Form{}, nil
	}
	return s.fetch(ctx, sess, types.Filter{"field_id": sess.FieldID})
}

func (s *Service) fetch(ctx context.Context, sess *types.Session, filter types.Filter) ([]*types.Form, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	res, err := s.forms.Fetch(ctx, sess.Scope(filter))
	if err != nil {
		return nil, fmt.Errorf("fetch forms: %w", err)
	}
	out := make([]*types.Form, 0, len(res))
	for _, r := range res {
		if f, ok := r.(*types.Form); ok && s.visible(sess, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Delete removes a form and all of its submissions. It returns the number
// of submissions removed.
func (s *Service) Delete(ctx context.Context, sess *types.Session, id string) (int, error) {
	if err := sess.RequireAdmin(); err != nil {
		return 0, err
	}
	form, err := s.Get(ctx, sess, id)
	if err != nil {
		return 0, err
	}
	removed := 0
	if s.submissions != nil {
		removed, err = s.submissions.DeleteByForm(ctx, sess, form.FormID)
		if err != nil {
			return removed, err
		}
	}
	err = retry.Do(ctx, s.retry, func() error { return s.forms.Delete(ctx, form.FormID) })
	if err != nil {
		s.logger.Warn("delete form failed", zap.String("form_id", form.FormID), zap.Error(err))
		return removed, &types.PersistenceError{Table: types.TableForms, Op: "delete", Err: err}
	}
	s.events.Publish(eventbus.Event{Type: eventbus.FormDeleted, TenantID: form.OwnerID, FormID: form.FormID})
	s.logger.Info("form deleted", zap.String("form_id", form.FormID), zap.Int("submissions", removed))
	return removed, nil
}
