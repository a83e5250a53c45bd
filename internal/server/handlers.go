package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/export"
	"github.com/mesh-intelligence/fieldforms/internal/render"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Fields.

type fieldRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
}

type treeEntry struct {
	*types.FieldNode
	Depth int    `json:"depth"`
	Path  string `json:"path"`
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.app.Fields.List(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleFieldTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.app.Fields.Tree(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := []treeEntry{}
	tree.Walk(func(n *types.FieldNode, depth int) bool {
		out = append(out, treeEntry{FieldNode: n, Depth: depth, Path: tree.PathString(n.FieldID)})
		return true
	})
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.Fields.Get(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	n, err := s.app.Fields.Create(r.Context(), SessionFrom(r.Context()), req.Name, req.Description, req.ParentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	n, err := s.app.Fields.Update(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"), req.Name, req.Description, req.ParentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Fields.Delete(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Agents. Responses never carry password hashes.

func publicAgents(list []*types.Agent) []types.Agent {
	out := make([]types.Agent, 0, len(list))
	for _, a := range list {
		out = append(out, a.Public())
	}
	return out
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	var (
		list []*types.Agent
		err  error
	)
	if fieldID := r.URL.Query().Get("field_id"); fieldID != "" {
		list, err = s.app.Agents.ListByField(r.Context(), sess, fieldID)
	} else {
		list, err = s.app.Agents.List(r.Context(), sess)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, publicAgents(list))
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in agents.Input
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	a, err := s.app.Agents.Create(r.Context(), SessionFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, a.Public())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.app.Agents.Get(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a.Public())
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Agents.Delete(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Forms.

// publishRequest publishes either a template or an explicit field list.
type publishRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	FieldID     string                  `json:"field_id"`
	Template    string                  `json:"template,omitempty"`
	Fields      []types.FieldDefinition `json:"fields,omitempty"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, schema.TemplateNames())
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	var (
		list []*types.Form
		err  error
	)
	if fieldID := r.URL.Query().Get("field_id"); fieldID != "" {
		list, err = s.app.Forms.ListByField(r.Context(), sess, fieldID)
	} else {
		list, err = s.app.Forms.List(r.Context(), sess)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePublishForm(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	var b *schema.Builder
	if req.Template != "" {
		var err error
		if b, err = schema.Template(req.Template); err != nil {
			s.writeServiceError(w, err)
			return
		}
	} else {
		b = schema.BuilderFromFields(req.Fields)
	}
	s.publish(w, r, b, schema.PublishRequest{Name: req.Name, Description: req.Description, FieldID: req.FieldID})
}

// handleImportForm publishes a definition document (the structure export
// format, JSON or YAML) to the field node named by ?field_id.
func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body")
		return
	}
	format := schema.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = schema.FormatYAML
	}
	b, def, err := schema.ImportDefinition(body, format)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	name := def.Name
	if q := r.URL.Query().Get("name"); q != "" {
		name = q
	}
	s.publish(w, r, b, schema.PublishRequest{Name: name, Description: def.Description, FieldID: r.URL.Query().Get("field_id")})
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, b *schema.Builder, req schema.PublishRequest) {
	form, err := s.app.Forms.Publish(r.Context(), SessionFrom(r.Context()), b, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, form)
}

func (s *Server) loadForm(w http.ResponseWriter, r *http.Request) (*types.Form, bool) {
	form, err := s.app.Forms.Get(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	return form, true
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	if form, ok := s.loadForm(w, r); ok {
		s.writeJSON(w, http.StatusOK, form)
	}
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	removed, err := s.app.Forms.Delete(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"submissions_deleted": removed})
}

func (s *Server) handleFormWidgets(w http.ResponseWriter, r *http.Request) {
	if form, ok := s.loadForm(w, r); ok {
		s.writeJSON(w, http.StatusOK, render.Entry(form, nil))
	}
}

func (s *Server) handleFormPreview(w http.ResponseWriter, r *http.Request) {
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WriteHTML(&buf, render.Entry(form, nil)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleFormStructure(w http.ResponseWriter, r *http.Request) {
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	data, err := schema.ExportStructure(form)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(schema.StructureFilename(form)))
	_, _ = w.Write(data)
}

// Submissions.

type submitRequest struct {
	Data  map[string]any `json:"data"`
	Draft bool           `json:"draft"`
}

// submissionView pairs a record with its display rows.
type submissionView struct {
	*types.Submission
	Rows []render.Row `json:"rows"`
}

// handleSubmit accepts a JSON body or a browser form post. Form posts
// mark drafts with a "_draft" value.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	var (
		raw   submission.RawInput
		draft bool
	)
	if isFormPost(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && err != http.ErrNotMultipart {
			s.writeError(w, http.StatusBadRequest, "INVALID_FORM", "could not parse form body")
			return
		}
		raw = submission.FromValues(r.PostForm)
		draft = schema.IsChecked(r.PostForm.Get("_draft"))
		delete(raw, "_draft")
	} else {
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}
		raw = submission.FromJSON(req.Data)
		draft = req.Draft
	}

	sub, err := s.app.Submissions.Submit(r.Context(), SessionFrom(r.Context()), form, raw, draft)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListFormSubmissions(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Submissions.ListByForm(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	q := r.URL.Query()
	var (
		list []*types.Submission
		err  error
	)
	switch {
	case q.Get("form_id") != "":
		list, err = s.app.Submissions.ListByForm(r.Context(), sess, q.Get("form_id"))
	case q.Get("agent_id") != "":
		list, err = s.app.Submissions.ListByAgent(r.Context(), sess, q.Get("agent_id"))
	default:
		list, err = s.app.Submissions.ListByTenant(r.Context(), sess)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	sub, err := s.app.Submissions.Get(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view := submissionView{Submission: sub, Rows: []render.Row{}}
	// Rows need the form; a deleted form leaves only the raw data.
	if form, err := s.app.Forms.Get(r.Context(), sess, sub.FormID); err == nil {
		view.Rows = render.Display(form, sub.Data)
	}
	s.writeJSON(w, http.StatusOK, view)
}

// Export and report.

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := s.app.Export.FormCSV(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "id"), &buf)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(name))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.app.Export.Collect(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(export.BundleFilename(bundle.ExportedAt)))
	if err := export.JSON(w, bundle); err != nil {
		s.logger.Warn("write export bundle")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sum, err := s.app.Reports.Summary(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
