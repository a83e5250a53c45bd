// Package agents manages field agents and resolves agent logins into
// sessions.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/internal/retry"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// FieldChecker reports whether a field node exists for the session.
type FieldChecker interface {
	Exists(ctx context.Context, sess *types.Session, id string) bool
}

// Input carries the values for a new agent.
type Input struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FieldID  string `json:"field_id"`
	Password string `json:"password"`
}

// Service manages agents.
type Service struct {
	agents types.Table
	fields FieldChecker
	retry  *retry.Config
	cost   int
	now    func() time.Time
	logger *zap.Logger
}

// NewService returns an agent service.
func NewService(agents types.Table, fields FieldChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		agents: agents,
		fields: fields,
		retry:  retry.DefaultConfig(),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger,
	}
}

// Create registers an agent in the session's tenant. Codes are unique per
// tenant; a non-empty email is unique across tenants so Login can resolve it.
func (s *Service) Create(ctx context.Context, sess *types.Session, in Input) (*types.Agent, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	verr := &types.ValidationError{}
	if in.Name == "" {
		verr.Add("Agent name is required")
	}
	if in.Code == "" {
		verr.Add("Agent ID is required")
	}
	if in.FieldID == "" {
		verr.Add("Please select a field for this agent")
	} else if !s.fields.Exists(ctx, sess, in.FieldID) {
		verr.Add("Field %s does not exist", in.FieldID)
	}
	if in.Password == "" {
		verr.Add("Password is required")
	}
	if !verr.Empty() {
		return nil, verr
	}

	existing, err := s.agents.Fetch(ctx, sess.Scope(types.Filter{"code": in.Code}))
	if err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("agent %s: %w", in.Code, types.ErrDuplicateCode)
	}
	if in.Email != "" {
		taken, err := s.agents.Fetch(ctx, types.Filter{"email": in.Email})
		if err != nil {
			return nil, fmt.Errorf("fetch agents: %w", err)
		}
		if len(taken) > 0 {
			return nil, fmt.Errorf("agent %s: %w", in.Email, types.ErrDuplicateEmail)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &types.Agent{
		AgentID:      docstore.NewID(),
		Code:         in.Code,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		FieldID:      in.FieldID,
		PasswordHash: string(hash),
		OwnerID:      sess.TenantID,
		CreatedAt:    s.now(),
	}
	err = retry.Do(ctx, s.retry, func() error {
		_, err := s.agents.Set(ctx, a.AgentID, a)
		return err
	})
	if err != nil {
		s.logger.Warn("persist agent failed", zap.String("agent_id", a.AgentID), zap.Error(err))
		return nil, &types.PersistenceError{Table: types.TableAgents, Op: "set", Err: err}
	}
	s.logger.Info("agent created", zap.String("agent_id", a.AgentID), zap.String("field_id", a.FieldID))
	return a, nil
}

// Get returns an agent of the session's tenant. Agents may only read
// themselves.
func (s *Service) Get(ctx context.Context, sess *types.Session, id string) (*types.Agent, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	got, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}
	a, ok := got.(*types.Agent)
	if !ok || !sess.Owns(a) || (!sess.IsAdmin() && a.AgentID != sess.UserID) {
		return nil, fmt.Errorf("agent %s: %w", id, types.ErrNotFound)
	}
	return a, nil
}

// List returns the tenant's agents. Admin only.
func (s *Service) List(ctx context.Context, sess *types.Session) ([]*types.Agent, error) {
	return s.fetch(ctx, sess, nil)
}

// ListByField returns the agents assigned to one field node. Admin only.
func (s *Service) ListByField(ctx context.Context, sess *types.Session, fieldID string) ([]*types.Agent, error) {
	return s.fetch(ctx, sess, types.Filter{"field_id": fieldID})
}

func (s *Service) fetch(ctx context.Context, sess *types.Session, filter types.Filter) ([]*types.Agent, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	res, err := s.agents.Fetch(ctx, sess.Scope(filter))
	if err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	out := make([]*types.Agent, 0, len(res))
	for _, r := range res {
		if a, ok := r.(*types.Agent); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Delete removes an agent. Submissions made by the agent are kept.
func (s *Service) Delete(ctx context.Context, sess *types.Session, id string) error {
	if err := sess.RequireAdmin(); err != nil {
		return err
	}
	if _, err := s.Get(ctx, sess, id); err != nil {
		return err
	}
	err := retry.Do(ctx, s.retry, func() error { return s.agents.Delete(ctx, id) })
	if err != nil {
		return &types.PersistenceError{Table: types.TableAgents, Op: "delete", Err: err}
	}
	s.logger.Info("agent deleted", zap.String("agent_id", id))
	return nil
}

// Login resolves an agent by email and password into an agent session.
// Email matching is case-insensitive. Unknown emails and wrong passwords
// both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*types.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, types.ErrInvalidCredentials
	}
	res, err := s.agents.Fetch(ctx, types.Filter{"email": email})
	if err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	for _, r := range res {
		a, ok := r.(*types.Agent)
		if !ok {
			continue
		}
		err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
		if err == nil {
			s.logger.Info("agent login", zap.String("agent_id", a.AgentID), zap.String("tenant_id", a.OwnerID))
			return types.NewAgentSession(a), nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("password check failed", zap.String("agent_id", a.AgentID), zap.Error(err))
		}
	}
	s.logger.Debug("agent login rejected")
	return nil, types.ErrInvalidCredentials
}
