package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/memory"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

type fixture struct {
	session *mcp.ClientSession
	form    *types.Form
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	cup := memory.NewBackend()
	require.NoError(t, cup.Attach(types.Config{Backend: types.BackendMemory}))
	a, err := app.New(cup, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	admin := types.NewAdminSession("t1", "")
	node, err := a.Fields.Create(ctx, admin, "North", "", "")
	require.NoError(t, err)
	_, err = a.Agents.Create(ctx, admin, agents.Input{Name: "Ada", Code: "A1", Email: "ada@example.org", FieldID: node.FieldID, Password: "pw"})
	require.NoError(t, err)
	b, err := schema.Template("contact")
	require.NoError(t, err)
	form, err := a.Forms.Publish(ctx, admin, b, schema.PublishRequest{Name: "Contact", FieldID: node.FieldID})
	require.NoError(t, err)

	sess, err := a.Agents.Login(ctx, "ada@example.org", "pw")
	require.NoError(t, err)

	srv, err := New(a, sess, "test", nil)
	require.NoError(t, err)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return fixture{session: cs, form: form}
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text, res.IsError
}

func TestNewRejectsInvalidSession(t *testing.T) {
	_, err := New(nil, &types.Session{}, "test", nil)
	assert.Error(t, err)
}

func TestToolsRegistered(t *testing.T) {
	f := setup(t)
	res, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_forms", "describe_form", "submit_form", "list_submissions"}, names)
}

func TestListAndDescribe(t *testing.T) {
	f := setup(t)

	text, isErr := call(t, f.session, "list_forms", map[string]any{})
	require.False(t, isErr, text)
	var forms []formSummary
	require.NoError(t, json.Unmarshal([]byte(text), &forms))
	require.Len(t, forms, 1)
	assert.Equal(t, f.form.FormID, forms[0].FormID)
	assert.Equal(t, len(f.form.InputFields()), forms[0].Fields)

	text, isErr = call(t, f.session, "describe_form", map[string]any{"form_id": f.form.FormID})
	require.False(t, isErr, text)
	var desc formDescription
	require.NoError(t, json.Unmarshal([]byte(text), &desc))
	assert.Len(t, desc.Widgets, len(f.form.Fields))

	text, isErr = call(t, f.session, "describe_form", map[string]any{"form_id": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to load form")
}

func TestSubmitAndList(t *testing.T) {
	f := setup(t)

	text, isErr := call(t, f.session, "submit_form", map[string]any{"form_id": f.form.FormID, "data": map[string]any{}})
	assert.True(t, isErr)
	assert.Contains(t, text, "missing required fields")

	data := map[string]any{}
	for _, d := range f.form.Fields {
		if d.Required {
			data[d.ID] = "x"
		}
	}
	text, isErr = call(t, f.session, "submit_form", map[string]any{"form_id": f.form.FormID, "data": data})
	require.False(t, isErr, text)
	var sub types.Submission
	require.NoError(t, json.Unmarshal([]byte(text), &sub))
	assert.Equal(t, types.StatusSubmitted, sub.Status)

	_, isErr = call(t, f.session, "submit_form", map[string]any{"form_id": f.form.FormID, "data": map[string]any{}, "draft": true})
	require.False(t, isErr)

	text, isErr = call(t, f.session, "list_submissions", map[string]any{})
	require.False(t, isErr, text)
	var subs []types.Submission
	require.NoError(t, json.Unmarshal([]byte(text), &subs))
	assert.Len(t, subs, 2)

	text, isErr = call(t, f.session, "list_submissions", map[string]any{"form_id": f.form.FormID})
	require.False(t, isErr, text)
	require.NoError(t, json.Unmarshal([]byte(text), &subs))
	assert.Len(t, subs, 2)
}
