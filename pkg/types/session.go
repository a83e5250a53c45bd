package types

// Role identifies what a session may do.
type Role string

// Session roles.
const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Session is the explicit context every service call receives: the acting
// tenant, the role, and the user. Admin sessions use the tenant ID as the
// user ID; agent sessions carry the agent's ID and field node.
type Session struct {
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email,omitempty"`
	FieldID  string `json:"field_id,omitempty"`
}

// NewAdminSession returns a session for the administrator of tenantID.
func NewAdminSession(tenantID, name string) *Session {
	if name == "" {
		name = "Administrator"
	}
	return &Session{TenantID: tenantID, Role: RoleAdmin, UserID: tenantID, UserName: name}
}

// NewAgentSession returns a session acting as the given agent inside the
// agent's tenant.
func NewAgentSession(a *Agent) *Session {
	return &Session{
		TenantID: a.OwnerID,
		Role:     RoleAgent,
		UserID:   a.AgentID,
		UserName: a.Name,
		Email:    a.Email,
		FieldID:  a.FieldID,
	}
}

// Validate returns ErrUnauthenticated for a nil or tenant-less session and
// ErrInvalidRole for an unknown role.
func (s *Session) Validate() error {
	if s == nil || s.TenantID == "" || s.UserID == "" {
		return ErrUnauthenticated
	}
	if s.Role != RoleAdmin && s.Role != RoleAgent {
		return ErrInvalidRole
	}
	return nil
}

// IsAdmin reports whether the session has the admin role.
func (s *Session) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }

// RequireAdmin validates the session and returns ErrForbidden for agents.
func (s *Session) RequireAdmin() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Scope returns a copy of f restricted to the session's tenant.
func (s *Session) Scope(f Filter) Filter {
	return f.With("owner_id", s.TenantID)
}

// Owns reports whether e belongs to the session's tenant.
func (s *Session) Owns(e Entity) bool {
	return s != nil && e != nil && e.TenantID() == s.TenantID
}
