package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/eventbus"
	"github.com/mesh-intelligence/fieldforms/internal/memory"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

type harness struct {
	t   *testing.T
	srv *httptest.Server
	app *app.App
	s   *Server
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cup := memory.NewBackend()
	require.NoError(t, cup.Attach(types.Config{Backend: types.BackendMemory}))
	a, err := app.New(cup, app.Options{})
	require.NoError(t, err)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "test-secret"
	}
	s := New(a, cfg, nil)
	a.Start(ctx)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = a.Close()
	})
	return &harness{t: t, srv: srv, app: a, s: s}
}

// do sends a JSON request and decodes a JSON response into out when set.
func (h *harness) do(method, path, token string, body, out any) *http.Response {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, out), string(raw))
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp
}

func (h *harness) adminToken(tenant string) string {
	h.t.Helper()
	var lr loginResponse
	resp := h.do(http.MethodPost, "/api/login/admin", "", map[string]string{"tenant_id": tenant, "name": "Boss"}, &lr)
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	return lr.Token
}

// seed creates a field node, an agent and a published contact form.
func (h *harness) seed(admin string) (fieldID string, form types.Form) {
	h.t.Helper()
	var node types.FieldNode
	resp := h.do(http.MethodPost, "/api/fields", admin, map[string]string{"name": "North"}, &node)
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/agents", admin, agents.Input{
		Name: "Ada", Code: "A1", Email: "ada@example.org", FieldID: node.FieldID, Password: "secret",
	}, nil)
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/forms", admin, map[string]string{
		"name": "Contact", "field_id": node.FieldID, "template": "contact",
	}, &form)
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)
	return node.FieldID, form
}

func (h *harness) agentToken() string {
	h.t.Helper()
	var lr loginResponse
	resp := h.do(http.MethodPost, "/api/login/agent", "", map[string]string{"email": "ADA@example.org", "password": "secret"}, &lr)
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	return lr.Token
}

func requiredData(form types.Form) map[string]any {
	data := map[string]any{}
	for _, d := range form.Fields {
		if d.Required {
			data[d.ID] = "x"
		}
	}
	return data
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, Config{})
	resp := h.do(http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, Config{AdminKey: "letmein"})

	tests := []struct {
		name   string
		path   string
		method string
		token  string
		body   any
		want   int
	}{
		{"no token", "/api/fields", http.MethodGet, "", nil, http.StatusUnauthorized},
		{"garbage token", "/api/fields", http.MethodGet, "nope", nil, http.StatusUnauthorized},
		{"admin key mismatch", "/api/login/admin", http.MethodPost, "", map[string]string{"tenant_id": "t1", "key": "wrong"}, http.StatusUnauthorized},
		{"tenant required", "/api/login/admin", http.MethodPost, "", map[string]string{"key": "letmein"}, http.StatusBadRequest},
		{"unknown agent", "/api/login/agent", http.MethodPost, "", map[string]string{"email": "x@y.z", "password": "pw"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(tt.method, tt.path, tt.token, tt.body, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	var lr loginResponse
	resp := h.do(http.MethodPost, "/api/login/admin", "", map[string]string{"tenant_id": "t1", "key": "letmein"}, &lr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess types.Session
	h.do(http.MethodGet, "/api/session", lr.Token, nil, &sess)
	assert.Equal(t, "t1", sess.TenantID)
	assert.True(t, sess.IsAdmin())
}

func TestCookieSession(t *testing.T) {
	h := newHarness(t, Config{})
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := h.srv.Client()
	client.Jar = jar

	body := strings.NewReader(`{"tenant_id":"t1"}`)
	resp, err := client.Post(h.srv.URL+"/api/login/admin", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(h.srv.URL + "/api/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(h.srv.URL+"/api/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAgentCannotAdminister(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	fieldID, form := h.seed(admin)
	agent := h.agentToken()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/fields"},
		{http.MethodDelete, "/api/fields/" + fieldID},
		{http.MethodGet, "/api/agents"},
		{http.MethodDelete, "/api/forms/" + form.FormID},
		{http.MethodGet, "/api/forms/" + form.FormID + "/export.csv"},
		{http.MethodGet, "/api/report"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := h.do(tc.method, tc.path, agent, map[string]string{"name": "x"}, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestFieldTree(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")

	var root, child types.FieldNode
	h.do(http.MethodPost, "/api/fields", admin, map[string]string{"name": "Region"}, &root)
	h.do(http.MethodPost, "/api/fields", admin, map[string]string{"name": "Farm", "parent_id": root.FieldID}, &child)

	var tree []treeEntry
	resp := h.do(http.MethodGet, "/api/fields/tree", admin, nil, &tree)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, tree, 2)
	assert.Equal(t, 0, tree[0].Depth)
	assert.Equal(t, 1, tree[1].Depth)
	assert.Equal(t, "Farm", tree[1].Name)

	resp = h.do(http.MethodDelete, "/api/fields/"+root.FieldID, admin, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(http.MethodPut, "/api/fields/"+root.FieldID, admin, map[string]string{"name": "Region", "parent_id": child.FieldID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Other tenants see nothing.
	other := h.adminToken("t2")
	resp = h.do(http.MethodGet, "/api/fields/"+root.FieldID, other, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishValidation(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	var node types.FieldNode
	h.do(http.MethodPost, "/api/fields", admin, map[string]string{"name": "North"}, &node)

	var body validationBody
	resp := h.do(http.MethodPost, "/api/forms", admin, map[string]any{
		"name": "", "field_id": node.FieldID,
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.NotEmpty(t, body.Messages)

	resp = h.do(http.MethodPost, "/api/forms", admin, map[string]any{
		"name": "X", "field_id": node.FieldID, "template": "no-such-template",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body = validationBody{}
	resp = h.do(http.MethodPost, "/api/forms", admin, map[string]any{
		"name": "X", "field_id": node.FieldID,
		"fields": []types.FieldDefinition{
			{ID: "f1", Type: types.FieldText, Label: "Name"},
			{ID: "f1", Type: types.FieldText, Label: "Other"},
		},
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Messages, `Field ID "f1" is used more than once`)
}

func TestAgentEmailConflict(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(h.adminToken("t1"))

	other := h.adminToken("t2")
	var node types.FieldNode
	h.do(http.MethodPost, "/api/fields", other, map[string]string{"name": "South"}, &node)
	resp := h.do(http.MethodPost, "/api/agents", other, agents.Input{
		Name: "Imposter", Code: "A1", Email: "Ada@Example.org", FieldID: node.FieldID, Password: "secret",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitFlow(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	_, form := h.seed(admin)
	agent := h.agentToken()

	var forms []types.Form
	h.do(http.MethodGet, "/api/forms", agent, nil, &forms)
	require.Len(t, forms, 1)

	var widgets []map[string]any
	resp := h.do(http.MethodGet, "/api/forms/"+form.FormID+"/widgets", agent, nil, &widgets)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, widgets)

	resp = h.do(http.MethodGet, "/api/forms/"+form.FormID+"/preview", agent, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	// Missing required values are all reported.
	var missing validationBody
	resp = h.do(http.MethodPost, "/api/forms/"+form.FormID+"/submissions", agent, submitRequest{Data: map[string]any{}}, &missing)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", missing.Code)
	assert.Len(t, missing.FieldIDs, len(requiredData(form)))

	// Drafts skip the required check.
	var draft types.Submission
	resp = h.do(http.MethodPost, "/api/forms/"+form.FormID+"/submissions", agent, submitRequest{Data: map[string]any{}, Draft: true}, &draft)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, types.StatusDraft, draft.Status)

	var sub types.Submission
	resp = h.do(http.MethodPost, "/api/forms/"+form.FormID+"/submissions", agent, submitRequest{Data: requiredData(form)}, &sub)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, types.StatusSubmitted, sub.Status)

	var view struct {
		SubmissionID string `json:"submission_id"`
		Rows         []struct {
			Label string `json:"label"`
			Value string `json:"value"`
		} `json:"rows"`
	}
	resp = h.do(http.MethodGet, "/api/submissions/"+sub.SubmissionID, admin, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sub.SubmissionID, view.SubmissionID)
	assert.NotEmpty(t, view.Rows)

	var list []types.Submission
	h.do(http.MethodGet, "/api/submissions?form_id="+form.FormID, admin, nil, &list)
	assert.Len(t, list, 2)

	resp = h.do(http.MethodGet, "/api/forms/"+form.FormID+"/export.csv", admin, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Contact_export_")
	csvBody, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(csvBody), "Ada")

	var deleted map[string]int
	resp = h.do(http.MethodDelete, "/api/forms/"+form.FormID, admin, nil, &deleted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, deleted["submissions_deleted"])
}

func TestSubmitFormPost(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	_, form := h.seed(admin)
	agent := h.agentToken()

	values := url.Values{}
	for id := range requiredData(form) {
		values.Set(id, "posted")
	}
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/forms/"+form.FormID+"/submissions", strings.NewReader(values.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+agent)
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestExportAndReport(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	_, form := h.seed(admin)

	resp := h.do(http.MethodGet, "/api/forms/"+form.FormID+"/export.csv", admin, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var bundle struct {
		Fields []types.FieldNode `json:"fields"`
		Agents []types.Agent     `json:"agents"`
	}
	resp = h.do(http.MethodGet, "/api/export", admin, nil, &bundle)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, bundle.Fields, 1)
	require.Len(t, bundle.Agents, 1)
	assert.Empty(t, bundle.Agents[0].PasswordHash)

	var sum map[string]any
	resp = h.do(http.MethodGet, "/api/report", admin, nil, &sum)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, sum)
}

func TestFeed(t *testing.T) {
	h := newHarness(t, Config{})
	admin := h.adminToken("t1")
	_, form := h.seed(admin)
	agent := h.agentToken()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/feed"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + admin}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	// The subscription is registered once the handler has run.
	require.Eventually(t, func() bool { return h.s.feed.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := h.do(http.MethodPost, "/api/forms/"+form.FormID+"/submissions", agent, submitRequest{Data: requiredData(form)}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var evt eventbus.Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	assert.Equal(t, eventbus.SubmissionCreated, evt.Type)
	assert.Equal(t, form.FormID, evt.FormID)
}

func TestFeedVisibility(t *testing.T) {
	adminSess := types.NewAdminSession("t1", "")
	agentSess := &types.Session{TenantID: "t1", Role: types.RoleAgent, UserID: "a1"}

	tests := []struct {
		name string
		sess *types.Session
		evt  eventbus.Event
		want bool
	}{
		{"admin same tenant", adminSess, eventbus.Event{TenantID: "t1", AgentID: "a2"}, true},
		{"admin other tenant", adminSess, eventbus.Event{TenantID: "t2"}, false},
		{"agent own event", agentSess, eventbus.Event{TenantID: "t1", AgentID: "a1"}, true},
		{"agent other agent", agentSess, eventbus.Event{TenantID: "t1", AgentID: "a2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, visible(tt.sess, tt.evt))
		})
	}
}

func TestTokens(t *testing.T) {
	tokens := NewTokens("s", time.Minute)
	sess := types.NewAdminSession("t1", "Boss")
	tok, exp, err := tokens.Issue(sess)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	got, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, sess.TenantID, got.TenantID)
	assert.Equal(t, sess.UserID, got.UserID)

	_, err = NewTokens("other", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
