// Package mcptools exposes an agent's form work as MCP tools: listing the
// forms of the agent's field, describing a form's entry widgets, submitting
// and listing submissions. Every tool runs under one agent session fixed
// when the server is built.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/render"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// ServerName is reported in the MCP implementation info.
const ServerName = "fieldforms"

// Tools holds the handlers' dependencies.
type Tools struct {
	App     *app.App
	Session *types.Session
	Logger  *zap.Logger
}

type ListFormsInput struct{}

type DescribeFormInput struct {
	FormID string `json:"form_id" jsonschema:"ID of the form to describe"`
}

type SubmitFormInput struct {
	FormID string         `json:"form_id" jsonschema:"ID of the form to submit"`
	Data   map[string]any `json:"data" jsonschema:"Values keyed by field ID; lists for multiselect, true/false for checkboxes"`
	Draft  bool           `json:"draft,omitempty" jsonschema:"Save as a draft without checking required fields"`
}

type ListSubmissionsInput struct {
	FormID string `json:"form_id,omitempty" jsonschema:"Only list submissions of this form"`
}

// formSummary is the list_forms entry.
type formSummary struct {
	FormID      string `json:"form_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Fields      int    `json:"fields"`
}

type formDescription struct {
	FormID      string          `json:"form_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Widgets     []render.Widget `json:"widgets"`
}

// New returns an MCP server with every tool registered.
func New(a *app.App, sess *types.Session, version string, logger *zap.Logger) (*mcp.Server, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tools{App: a, Session: sess, Logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_forms",
		Description: "List the forms available to the current agent",
	}, t.ListForms)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "describe_form",
		Description: "Describe a form's input widgets: ids, labels, types, options and required flags",
	}, t.DescribeForm)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "submit_form",
		Description: "Submit values for a form, or save them as a draft",
	}, t.SubmitForm)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_submissions",
		Description: "List the current agent's submissions, optionally for one form",
	}, t.ListSubmissions)
	return srv, nil
}

func (t *Tools) ListForms(ctx context.Context, _ *mcp.CallToolRequest, _ ListFormsInput) (*mcp.CallToolResult, any, error) {
	forms, err := t.App.Forms.List(ctx, t.Session)
	if err != nil {
		return t.toolError("Failed to list forms", err), nil, nil
	}
	out := make([]formSummary, 0, len(forms))
	for _, f := range forms {
		out = append(out, formSummary{FormID: f.FormID, Name: f.Name, Description: f.Description, Fields: len(f.InputFields())})
	}
	return toolJSON(out)
}

func (t *Tools) DescribeForm(ctx context.Context, _ *mcp.CallToolRequest, in DescribeFormInput) (*mcp.CallToolResult, any, error) {
	if in.FormID == "" {
		return toolText(true, "form_id is required"), nil, nil
	}
	form, err := t.App.Forms.Get(ctx, t.Session, in.FormID)
	if err != nil {
		return t.toolError("Failed to load form", err), nil, nil
	}
	return toolJSON(formDescription{
		FormID:      form.FormID,
		Name:        form.Name,
		Description: form.Description,
		Widgets:     render.Entry(form, nil),
	})
}

func (t *Tools) SubmitForm(ctx context.Context, _ *mcp.CallToolRequest, in SubmitFormInput) (*mcp.CallToolResult, any, error) {
	if in.FormID == "" {
		return toolText(true, "form_id is required"), nil, nil
	}
	form, err := t.App.Forms.Get(ctx, t.Session, in.FormID)
	if err != nil {
		return t.toolError("Failed to load form", err), nil, nil
	}
	sub, err := t.App.Submissions.Submit(ctx, t.Session, form, submission.FromJSON(in.Data), in.Draft)
	if err != nil {
		return t.toolError("Submission rejected", err), nil, nil
	}
	t.Logger.Info("submission via mcp",
		zap.String("form_id", form.FormID),
		zap.String("submission_id", sub.SubmissionID),
		zap.String("status", sub.Status))
	return toolJSON(sub)
}

func (t *Tools) ListSubmissions(ctx context.Context, _ *mcp.CallToolRequest, in ListSubmissionsInput) (*mcp.CallToolResult, any, error) {
	var (
		subs []*types.Submission
		err  error
	)
	if in.FormID != "" {
		subs, err = t.App.Submissions.ListByForm(ctx, t.Session, in.FormID)
	} else {
		subs, err = t.App.Submissions.ListByAgent(ctx, t.Session, t.Session.UserID)
	}
	if err != nil {
		return t.toolError("Failed to list submissions", err), nil, nil
	}
	return toolJSON(subs)
}

// toolError turns a service error into a tool result the model can read.
// Missing required fields are listed by id so the caller can fill them in.
func (t *Tools) toolError(prefix string, err error) *mcp.CallToolResult {
	var missing *types.MissingRequiredFieldError
	var verr *types.ValidationError
	switch {
	case errors.As(err, &missing):
		return toolText(true, "%s: missing required fields: %s", prefix, strings.Join(missing.FieldIDs, ", "))
	case errors.As(err, &verr):
		return toolText(true, "%s: %s", prefix, strings.Join(verr.Messages, "; "))
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrForbidden):
		return toolText(true, "%s: %v", prefix, err)
	}
	t.Logger.Error("mcp tool failed", zap.Error(err))
	return toolText(true, "%s: internal error", prefix)
}

func toolText(isError bool, format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: isError,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolText(true, "Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// Serve runs the tools over stdio until ctx is done or the client leaves.
func Serve(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}
