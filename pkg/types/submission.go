package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Submission statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
)

// Submission is one filled-in instance of a Form. Data maps field definition
// IDs to values: strings for scalar types, []any of strings for multiselect,
// "true"/"false" for checkboxes. Submissions are never updated in place.
type Submission struct {
	SubmissionID string         `json:"submission_id"`
	FormID       string         `json:"form_id"`
	AgentID      string         `json:"agent_id"`
	OwnerID      string         `json:"owner_id"`
	Data         map[string]any `json:"data"`
	Status       string         `json:"status"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

func (s *Submission) EntityID() string      { return s.SubmissionID }
func (s *Submission) SetEntityID(id string) { s.SubmissionID = id }
func (s *Submission) TenantID() string      { return s.OwnerID }

// IsDraft reports whether the submission was saved as a draft.
func (s *Submission) IsDraft() bool { return s.Status == StatusDraft }

// Value returns the stored value for a field ID.
func (s *Submission) Value(fieldID string) (any, bool) {
	if s.Data == nil {
		return nil, false
	}
	v, ok := s.Data[fieldID]
	return v, ok
}

// ValueString flattens a stored value to text. Lists are joined with ", ",
// nil becomes the empty string.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, ValueString(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}
