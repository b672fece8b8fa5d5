package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sumire/projects/internal/domain"
	"github.com/sumire/projects/internal/handler"
	"github.com/sumire/projects/internal/repository"
	"github.com/sumire/projects/internal/service"
)

type testServer struct {
	t    *testing.T
	e    *echo.Echo
	auth *service.AuthService
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error *handler.APIError `json:"error"`
}

func newTestServer(t *testing.T, devTokens bool) *testServer {
	t.Helper()
	auth := service.NewAuthService(repository.NewMemoryUserRepository(), service.AuthConfig{
		JWTSecret:        "test-secret",
		JWTIssuer:        "projects-test",
		DevTokensEnabled: devTokens,
	})
	projects := service.NewProjectService(repository.NewMemoryProjectRepository())

	return &testServer{
		t:    t,
		auth: auth,
		e: handler.NewRouter(handler.Deps{
			Projects:       projects,
			Auth:           auth,
			AllowedOrigins: []string{"http://localhost:5173"},
		}),
	}
}

// token returns an access token for a fresh user with the given role.
func (s *testServer) token(role domain.Role) (uuid.UUID, string) {
	s.t.Helper()
	id := uuid.New()
	pair, err := s.auth.IssueTokens(domain.User{ID: id, Role: role})
	if err != nil {
		s.t.Fatalf("issue tokens: %v", err)
	}
	return id, pair.AccessToken
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (s *testServer) createProject(token string) handler.ProjectResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/projects", token, `{
		"name": "Launch",
		"expected_start_date": "2025-02-01T00:00:00Z",
		"budget": 1000.00
	}`)
	expectStatus(s.t, rec, http.StatusCreated)

	var p handler.ProjectResponse
	decode(s.t, rec, &p)
	return p
}

func (s *testServer) createTask(token string, projectID, assignee uuid.UUID) handler.TaskResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/projects/"+projectID.String()+"/tasks", token, map[string]any{
		"title":            "Design",
		"assigned_user_id": assignee,
	})
	expectStatus(s.t, rec, http.StatusCreated)

	var task handler.TaskResponse
	decode(s.t, rec, &task)
	return task
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestProjects_RequireAuthentication(t *testing.T) {
	s := newTestServer(t, false)

	for _, token := range []string{"", "garbage"} {
		rec := s.do(http.MethodGet, "/api/v1/projects", token, nil)
		expectStatus(t, rec, http.StatusUnauthorized)
		if env := decode(t, rec, nil); env.Error == nil || env.Error.Code != "unauthorized" {
			t.Errorf("expected unauthorized error body, got %s", rec.Body.String())
		}
	}
}

func TestProjects_PermissionPolicy(t *testing.T) {
	s := newTestServer(t, false)
	_, member := s.token(domain.RoleMember)

	rec := s.do(http.MethodPost, "/api/v1/projects", member, `{"name":"x","expected_start_date":"2025-02-01T00:00:00Z","budget":1}`)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodGet, "/api/v1/projects", member, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestCreateProject(t *testing.T) {
	s := newTestServer(t, false)
	ownerID, owner := s.token(domain.RoleProjectManager)

	rec := s.do(http.MethodPost, "/api/v1/projects", owner, `{
		"name": "Launch",
		"description": "first release",
		"expected_start_date": "2025-02-01T00:00:00Z",
		"budget": 1000
	}`)
	expectStatus(t, rec, http.StatusCreated)

	var p handler.ProjectResponse
	decode(t, rec, &p)

	if got, want := rec.Header().Get(echo.HeaderLocation), "/api/v1/projects/"+p.ID.String(); got != want {
		t.Errorf("expected Location %q, got %q", want, got)
	}
	if p.OwnerID != ownerID {
		t.Errorf("expected owner %s, got %s", ownerID, p.OwnerID)
	}
	if p.ActualEndDate != nil || len(p.Tasks) != 0 || p.Currency != nil {
		t.Errorf("unexpected fresh project: %+v", p)
	}
	if !strings.Contains(rec.Body.String(), `"budget":1000.00`) {
		t.Errorf("expected budget with two decimals, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "currency") {
		t.Errorf("v1 must not expose currency: %s", rec.Body.String())
	}
}

func TestCreateProject_Validation(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "missing name", body: `{"expected_start_date":"2025-02-01T00:00:00Z","budget":1}`, wantField: "name"},
		{name: "long name", body: `{"name":"` + strings.Repeat("a", 201) + `","expected_start_date":"2025-02-01T00:00:00Z","budget":1}`, wantField: "name"},
		{name: "missing start date", body: `{"name":"x","budget":1}`, wantField: "expected_start_date"},
		{name: "missing budget", body: `{"name":"x","expected_start_date":"2025-02-01T00:00:00Z"}`, wantField: "budget"},
		{name: "negative budget", body: `{"name":"x","expected_start_date":"2025-02-01T00:00:00Z","budget":-1}`, wantField: "budget"},
		{name: "three decimals", body: `{"name":"x","expected_start_date":"2025-02-01T00:00:00Z","budget":1.001}`, wantField: "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/projects", owner, tt.body)
			expectStatus(t, rec, http.StatusBadRequest)

			env := decode(t, rec, nil)
			if env.Error == nil || env.Error.Code != "validation_error" {
				t.Fatalf("expected validation_error, got %s", rec.Body.String())
			}
			if len(env.Error.Details) != 1 || env.Error.Details[0].Field != tt.wantField {
				t.Errorf("expected field %q, got %+v", tt.wantField, env.Error.Details)
			}
		})
	}

	rec := s.do(http.MethodPost, "/api/v1/projects", owner, `{not json`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestGetProject_MalformedOrMissingID(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)

	for _, path := range []string{
		"/api/v1/projects/not-a-uuid",
		"/api/v1/projects/" + uuid.NewString(),
		"/api/v1/projects/" + uuid.NewString() + "/tasks/" + uuid.NewString(),
		"/api/v2/projects/42",
	} {
		rec := s.do(http.MethodGet, path, owner, nil)
		expectStatus(t, rec, http.StatusNotFound)
	}
}

func TestV2Projects_AddCurrency(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)
	created := s.createProject(owner)

	rec := s.do(http.MethodGet, "/api/v2/projects/"+created.ID.String(), owner, nil)
	expectStatus(t, rec, http.StatusOK)
	var p handler.ProjectResponse
	decode(t, rec, &p)
	if p.Currency == nil || *p.Currency != "USD" {
		t.Errorf("expected USD currency, got %v", p.Currency)
	}

	rec = s.do(http.MethodGet, "/api/v2/projects", owner, nil)
	expectStatus(t, rec, http.StatusOK)
	var list []handler.ProjectResponse
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Currency == nil || *list[0].Currency != "USD" {
		t.Errorf("expected one project with USD currency, got %+v", list)
	}

	rec = s.do(http.MethodGet, "/api/v1/projects", owner, nil)
	expectStatus(t, rec, http.StatusOK)
	var v1 []handler.ProjectResponse
	decode(t, rec, &v1)
	if len(v1) != 1 || v1[0].Currency != nil {
		t.Errorf("v1 list must not carry currency, got %+v", v1)
	}
	if strings.Contains(rec.Body.String(), "currency") {
		t.Errorf("v1 list body must not mention currency: %s", rec.Body.String())
	}
}

func TestProjectOwnership(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)
	_, other := s.token(domain.RoleProjectManager)
	p := s.createProject(owner)
	base := "/api/v1/projects/" + p.ID.String()

	rec := s.do(http.MethodPut, base, other, `{"name":"Hijack","expected_start_date":"2025-02-01T00:00:00Z"}`)
	expectStatus(t, rec, http.StatusForbidden)
	if env := decode(t, rec, nil); env.Error.Message == "" {
		t.Error("expected a message on forbidden")
	}

	rec = s.do(http.MethodPut, base+"/budget", other, `{"budget":5}`)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodDelete, base, other, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodPut, base, owner, `{"name":"Relaunch","expected_start_date":"2025-03-01T00:00:00Z"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodPut, base+"/budget", owner, `{"budget":"2500.5"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodGet, base, owner, nil)
	var got handler.ProjectResponse
	decode(t, rec, &got)
	if got.Name != "Relaunch" || got.Budget.String() != "2500.50" {
		t.Errorf("unexpected project after updates: %+v", got)
	}

	rec = s.do(http.MethodDelete, base, owner, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = s.do(http.MethodGet, base, owner, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)
	assigneeID, assignee := s.token(domain.RoleMember)
	_, stranger := s.token(domain.RoleMember)

	p := s.createProject(owner)
	task := s.createTask(owner, p.ID, assigneeID)
	taskPath := "/api/v1/projects/" + p.ID.String() + "/tasks/" + task.ID.String()

	if task.Status != "NotStarted" {
		t.Errorf("expected NotStarted, got %s", task.Status)
	}

	rec := s.do(http.MethodGet, taskPath, assignee, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPut, taskPath+"/status", stranger, `{"status":"InProgress"}`)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodPut, taskPath+"/status", assignee, `{"status":"Done"}`)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(http.MethodPut, taskPath+"/status", assignee, `{"status":"InProgress"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodPut, taskPath, assignee, `{"title":"Design v2","status":"Blocked"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodGet, taskPath, assignee, nil)
	var got handler.TaskResponse
	decode(t, rec, &got)
	if got.Title != "Design v2" || got.Status != "Blocked" {
		t.Errorf("unexpected task: %+v", got)
	}

	// Members lack the assign and delete permissions.
	rec = s.do(http.MethodPut, taskPath+"/assignment", assignee, map[string]any{"user_id": uuid.New()})
	expectStatus(t, rec, http.StatusForbidden)
	rec = s.do(http.MethodDelete, taskPath, assignee, nil)
	expectStatus(t, rec, http.StatusForbidden)

	newAssignee := uuid.New()
	rec = s.do(http.MethodPut, taskPath+"/assignment", owner, map[string]any{"user_id": newAssignee})
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodGet, taskPath, owner, nil)
	decode(t, rec, &got)
	if got.AssignedUserID != newAssignee {
		t.Errorf("expected assignee %s, got %s", newAssignee, got.AssignedUserID)
	}

	rec = s.do(http.MethodDelete, taskPath, owner, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = s.do(http.MethodGet, taskPath, owner, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, false)
	_, owner := s.token(domain.RoleProjectManager)
	assigneeID, assignee := s.token(domain.RoleMember)

	p := s.createProject(owner)
	base := "/api/v1/projects/" + p.ID.String()
	task := s.createTask(owner, p.ID, assigneeID)

	rec := s.do(http.MethodPut, base+"/completion", owner, nil)
	expectStatus(t, rec, http.StatusConflict)
	if env := decode(t, rec, nil); env.Error.Code != "conflict" {
		t.Errorf("expected conflict code, got %+v", env.Error)
	}

	rec = s.do(http.MethodPut, base+"/tasks/"+task.ID.String()+"/status", assignee, `{"status":"Completed"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodPut, base+"/completion", owner, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodGet, base, owner, nil)
	var got handler.ProjectResponse
	decode(t, rec, &got)
	if got.ActualEndDate == nil {
		t.Fatal("expected actual_end_date set")
	}

	rec = s.do(http.MethodPut, base+"/budget", owner, `{"budget":2000}`)
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(http.MethodPost, base+"/tasks", owner, map[string]any{"title": "Late", "assigned_user_id": assigneeID})
	expectStatus(t, rec, http.StatusConflict)
}

func TestTokenGenerate(t *testing.T) {
	disabled := newTestServer(t, false)
	rec := disabled.do(http.MethodPost, "/token/generate", "", `{}`)
	expectStatus(t, rec, http.StatusNotFound)

	s := newTestServer(t, true)
	rec = s.do(http.MethodPost, "/token/generate", "", `{"display_name":"Dana","role":"member"}`)
	expectStatus(t, rec, http.StatusOK)

	var login struct {
		User   domain.User       `json:"user"`
		Tokens service.TokenPair `json:"tokens"`
	}
	decode(t, rec, &login)
	if login.User.Role != domain.RoleMember {
		t.Errorf("expected member role, got %s", login.User.Role)
	}

	rec = s.do(http.MethodGet, "/api/v1/auth/me", login.Tokens.AccessToken, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.Tokens.RefreshToken})
	expectStatus(t, rec, http.StatusOK)
	var pair service.TokenPair
	decode(t, rec, &pair)
	if pair.AccessToken == "" {
		t.Error("expected refreshed access token")
	}

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.Tokens.AccessToken})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.do(http.MethodPost, "/token/generate", "", `{"role":"admin"}`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestOAuthCallback_RejectsStateMismatch(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=x", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "y"})
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(http.MethodGet, "/api/v1/auth/github", "", nil)
	expectStatus(t, rec, http.StatusTemporaryRedirect)
	if !strings.Contains(rec.Header().Get(echo.HeaderLocation), "github.com") {
		t.Errorf("expected redirect to github, got %q", rec.Header().Get(echo.HeaderLocation))
	}
}
