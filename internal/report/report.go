// Package report summarizes a tenant's activity: record counts, submission
// counts per field node and per form, and a daily submission series.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/fieldtree"
	"github.com/mesh-intelligence/fieldforms/internal/forms"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// DateLayout is the day key used by Daily.
const DateLayout = "2006-01-02"

// Count is one labelled submission count.
type Count struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Day is the number of submissions on one calendar day.
type Day struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summary is the tenant dashboard.
type Summary struct {
	Fields      int     `json:"fields"`
	Forms       int     `json:"forms"`
	Agents      int     `json:"agents"`
	Submissions int     `json:"submissions"`
	Submitted   int     `json:"submitted"`
	Drafts      int     `json:"drafts"`
	ByField     []Count `json:"by_field"`
	ByForm      []Count `json:"by_form"`
	Daily       []Day   `json:"daily"`
}

// Daily groups submissions by calendar day in loc, oldest first. A nil loc
// means UTC.
func Daily(subs []*types.Submission, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	counts := map[string]int{}
	for _, s := range subs {
		counts[s.SubmittedAt.In(loc).Format(DateLayout)]++
	}
	out := make([]Day, 0, len(counts))
	for d, n := range counts {
		out = append(out, Day{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Label renders n with a singular or plural noun, e.g. "1 form", "3 forms".
func Label(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// Lines renders the headline counts for terminal output.
func (s *Summary) Lines() []string {
	return []string{
		Label(s.Fields, "field"),
		Label(s.Forms, "form"),
		Label(s.Agents, "agent"),
		fmt.Sprintf("%s (%d submitted, %s)", Label(s.Submissions, "submission"), s.Submitted, Label(s.Drafts, "draft")),
	}
}

// Service builds summaries from the domain services.
type Service struct {
	fields      *fieldtree.Service
	agents      *agents.Service
	forms       *forms.Service
	submissions *submission.Store
	loc         *time.Location
}

// NewService returns a report service that buckets days in UTC.
func NewService(fields *fieldtree.Service, ag *agents.Service, fm *forms.Service, subs *submission.Store) *Service {
	return &Service{fields: fields, agents: ag, forms: fm, submissions: subs, loc: time.UTC}
}

// Summary computes the dashboard for the session's tenant. Admin only.
func (s *Service) Summary(ctx context.Context, sess *types.Session) (*Summary, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	nodes, err := s.fields.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	fms, err := s.forms.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	ags, err := s.agents.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	subs, err := s.submissions.ListByTenant(ctx, sess)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Fields:      len(nodes),
		Forms:       len(fms),
		Agents:      len(ags),
		Submissions: len(subs),
		Daily:       Daily(subs, s.loc),
	}
	perForm := map[string]int{}
	for _, sub := range subs {
		if sub.IsDraft() {
			out.Drafts++
		} else {
			out.Submitted++
		}
		perForm[sub.FormID]++
	}

	perField := map[string]int{}
	out.ByForm = make([]Count, 0, len(fms))
	for _, f := range fms {
		out.ByForm = append(out.ByForm, Count{ID: f.FormID, Name: f.Name, Count: perForm[f.FormID]})
		perField[f.FieldID] += perForm[f.FormID]
	}
	out.ByField = make([]Count, 0, len(nodes))
	for _, n := range nodes {
		out.ByField = append(out.ByField, Count{ID: n.FieldID, Name: n.Name, Count: perField[n.FieldID]})
	}
	return out, nil
}
