package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/internal/eventbus"
	"github.com/mesh-intelligence/fieldforms/internal/retry"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Store persists and queries submissions through a types.Table.
type Store struct {
	table     types.Table
	validator *Validator
	events    eventbus.Publisher
	retry     *retry.Config
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sends submission.created events to p.
func WithPublisher(p eventbus.Publisher) Option { return func(s *Store) { s.events = p } }

// WithRetry sets the backoff used for storage writes.
func WithRetry(cfg *retry.Config) Option { return func(s *Store) { s.retry = cfg } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// WithValidator replaces the default validator.
func WithValidator(v *Validator) Option { return func(s *Store) { s.validator = v } }

// NewStore returns a store over the submissions table.
func NewStore(table types.Table, opts ...Option) *Store {
	s := &Store{
		table:     table,
		validator: defaultValidator,
		events:    eventbus.Discard{},
		retry:     retry.DefaultConfig(),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates raw against form and persists a new record authored by
// the session user. On a storage failure the built record is returned
// together with a *types.PersistenceError so the caller can retry or
// report it.
func (s *Store) Submit(ctx context.Context, sess *types.Session, form *types.Form, raw RawInput, isDraft bool) (*types.Submission, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if !sess.Owns(form) {
		return nil, fmt.Errorf("form %s: %w", form.FormID, types.ErrNotFound)
	}
	if sess.Role == types.RoleAgent && sess.FieldID != "" && form.FieldID != sess.FieldID {
		return nil, fmt.Errorf("form %s is not assigned to this agent's field: %w", form.FormID, types.ErrForbidden)
	}

	data, err := s.validator.Validate(form, raw, isDraft)
	if err != nil {
		return nil, err
	}

	status := types.StatusSubmitted
	if isDraft {
		status = types.StatusDraft
	}
	sub := &types.Submission{
		SubmissionID: docstore.NewID(),
		FormID:       form.FormID,
		AgentID:      sess.UserID,
		OwnerID:      sess.TenantID,
		Data:         data,
		Status:       status,
		SubmittedAt:  s.now(),
	}
	if err := s.Save(ctx, sub); err != nil {
		return sub, err
	}

	s.events.Publish(eventbus.Event{
		Type:         eventbus.SubmissionCreated,
		TenantID:     sub.OwnerID,
		FormID:       sub.FormID,
		SubmissionID: sub.SubmissionID,
		AgentID:      sub.AgentID,
		Status:       sub.Status,
		At:           sub.SubmittedAt,
	})
	s.logger.Info("submission stored",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("form_id", sub.FormID),
		zap.String("status", sub.Status))
	return sub, nil
}

// Save writes sub with bounded retries. Failures are logged and returned
// as *types.PersistenceError.
func (s *Store) Save(ctx context.Context, sub *types.Submission) error {
	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.table.Set(ctx, sub.SubmissionID, sub)
		return err
	})
	if err != nil {
		s.logger.Warn("persist submission failed",
			zap.String("collection", types.TableSubmissions),
			zap.String("submission_id", sub.SubmissionID),
			zap.Error(err))
		return &types.PersistenceError{Table: types.TableSubmissions, Op: "set", Err: err}
	}
	return nil
}

// Get returns one submission visible to the session. Agents only see
// their own.
func (s *Store) Get(ctx context.Context, sess *types.Session, id string) (*types.Submission, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	got, err := s.table.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, err)
	}
	sub, ok := got.(*types.Submission)
	if !ok {
		return nil, types.ErrInvalidData
	}
	if !s.visible(sess, sub) {
		return nil, fmt.Errorf("submission %s: %w", id, types.ErrNotFound)
	}
	return sub, nil
}

func (s *Store) visible(sess *types.Session, sub *types.Submission) bool {
	if !sess.Owns(sub) {
		return false
	}
	return sess.IsAdmin() || sub.AgentID == sess.UserID
}

// ListByTenant returns every submission the session may see.
func (s *Store) ListByTenant(ctx context.Context, sess *types.Session) ([]*types.Submission, error) {
	return s.list(ctx, sess, nil)
}

// ListByForm returns the submissions of one form.
func (s *Store) ListByForm(ctx context.Context, sess *types.Session, formID string) ([]*types.Submission, error) {
	return s.list(ctx, sess, types.Filter{"form_id": formID})
}

// ListByAgent returns the submissions authored by one agent. Agents may
// only list their own.
func (s *Store) ListByAgent(ctx context.Context, sess *types.Session, agentID string) ([]*types.Submission, error) {
	if sess != nil && sess.Role == types.RoleAgent && agentID != sess.UserID {
		return nil, types.ErrForbidden
	}
	return s.list(ctx, sess, types.Filter{"agent_id": agentID})
}

func (s *Store) list(ctx context.Context, sess *types.Session, filter types.Filter) ([]*types.Submission, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	filter = sess.Scope(filter)
	if !sess.IsAdmin() {
		filter = filter.With("agent_id", sess.UserID)
	}
	res, err := s.table.Fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	out := make([]*types.Submission, 0, len(res))
	for _, r := range res {
		if sub, ok := r.(*types.Submission); ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

// DeleteByForm removes every submission of formID in the session's
// tenant and returns how many were deleted. Admin only.
func (s *Store) DeleteByForm(ctx context.Context, sess *types.Session, formID string) (int, error) {
	if err := sess.RequireAdmin(); err != nil {
		return 0, err
	}
	subs, err := s.list(ctx, sess, types.Filter{"form_id": formID})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sub := range subs {
		err := retry.Do(ctx, s.retry, func() error {
			return s.table.Delete(ctx, sub.SubmissionID)
		})
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			s.logger.Warn("delete submission failed",
				zap.String("submission_id", sub.SubmissionID), zap.Error(err))
			return n, &types.PersistenceError{Table: types.TableSubmissions, Op: "delete", Err: err}
		}
		n++
	}
	return n, nil
}
