// Package export writes a form's submissions as CSV and a tenant's whole
// data set as a JSON bundle.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/fieldtree"
	"github.com/mesh-intelligence/fieldforms/internal/forms"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// UnknownAgent is written for submissions whose agent no longer exists.
const UnknownAgent = "Unknown"

// ErrNothingToExport is returned when a form has no submissions.
var ErrNothingToExport = errors.New("no submissions to export")

// Fixed leading CSV columns.
var baseHeader = []string{"Submission ID", "Agent", "Submitted At"}

// CSV writes one row per submission: id, agent name, submit time, then one
// column per non-section field in form order.
func CSV(w io.Writer, form *types.Form, subs []*types.Submission, agentNames map[string]string) error {
	inputs := form.InputFields()
	header := append([]string{}, baseHeader...)
	for _, d := range inputs {
		header = append(header, d.Label)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, sub := range subs {
		name, ok := agentNames[sub.AgentID]
		if !ok || name == "" {
			name = UnknownAgent
		}
		row := make([]string, 0, len(header))
		row = append(row, sub.SubmissionID, name, sub.SubmittedAt.Format(time.RFC3339))
		for _, d := range inputs {
			v, _ := sub.Value(d.ID)
			row = append(row, types.ValueString(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", sub.SubmissionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename returns the download name for a form's CSV export.
func CSVFilename(form *types.Form, at time.Time) string {
	return fmt.Sprintf("%s_export_%d.csv", strings.ReplaceAll(form.Name, " ", "_"), at.UnixMilli())
}

// BundleFilename returns the download name for a full JSON export.
func BundleFilename(at time.Time) string {
	return fmt.Sprintf("field_management_export_%d.json", at.UnixMilli())
}

// Bundle is a tenant's full data set. Agents carry no password hash.
type Bundle struct {
	Fields      []*types.FieldNode  `json:"fields"`
	Agents      []types.Agent       `json:"agents"`
	Forms       []*types.Form       `json:"forms"`
	Submissions []*types.Submission `json:"submissions"`
	ExportedAt  time.Time           `json:"exportedAt"`
}

// JSON writes b as indented JSON.
func JSON(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return nil
}

// Service gathers export data through the domain services.
type Service struct {
	fields      *fieldtree.Service
	agents      *agents.Service
	forms       *forms.Service
	submissions *submission.Store
	now         func() time.Time
}

// NewService returns an export service.
func NewService(fields *fieldtree.Service, ag *agents.Service, fm *forms.Service, subs *submission.Store) *Service {
	return &Service{fields: fields, agents: ag, forms: fm, submissions: subs, now: time.Now}
}

// FormCSV writes the CSV export of one form and returns its filename.
func (s *Service) FormCSV(ctx context.Context, sess *types.Session, formID string, w io.Writer) (string, error) {
	if err := sess.RequireAdmin(); err != nil {
		return "", err
	}
	form, err := s.forms.Get(ctx, sess, formID)
	if err != nil {
		return "", err
	}
	subs, err := s.submissions.ListByForm(ctx, sess, formID)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "", fmt.Errorf("form %s: %w", form.Name, ErrNothingToExport)
	}
	names, err := s.agentNames(ctx, sess)
	if err != nil {
		return "", err
	}
	if err := CSV(w, form, subs, names); err != nil {
		return "", err
	}
	return CSVFilename(form, s.now()), nil
}

func (s *Service) agentNames(ctx context.Context, sess *types.Session) (map[string]string, error) {
	list, err := s.agents.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(list))
	for _, a := range list {
		names[a.AgentID] = a.Name
	}
	return names, nil
}

// Collect loads every record of the session's tenant.
func (s *Service) Collect(ctx context.Context, sess *types.Session) (*Bundle, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	b := &Bundle{ExportedAt: s.now().UTC()}
	var err error
	if b.Fields, err = s.fields.List(ctx, sess); err != nil {
		return nil, err
	}
	list, err := s.agents.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	b.Agents = make([]types.Agent, 0, len(list))
	for _, a := range list {
		b.Agents = append(b.Agents, a.Public())
	}
	if b.Forms, err = s.forms.List(ctx, sess); err != nil {
		return nil, err
	}
	if b.Submissions, err = s.submissions.ListByTenant(ctx, sess); err != nil {
		return nil, err
	}
	return b, nil
}
