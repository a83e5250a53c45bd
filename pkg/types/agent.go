package types

import "time"

// Agent is a field worker who fills in forms for one field node. Code is the
// tenant-assigned agent number; PasswordHash is a bcrypt hash.
type Agent struct {
	AgentID      string    `json:"agent_id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	FieldID      string    `json:"field_id"`
	PasswordHash string    `json:"password_hash,omitempty"`
	OwnerID      string    `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *Agent) EntityID() string      { return a.AgentID }
func (a *Agent) SetEntityID(id string) { a.AgentID = id }
func (a *Agent) TenantID() string      { return a.OwnerID }

// Public returns a copy without the password hash, for output and export.
func (a *Agent) Public() Agent {
	out := *a
	out.PasswordHash = ""
	return out
}
