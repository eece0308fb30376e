package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/middleware"
	"worksphere-backend/pkg/models"

	"github.com/stretchr/testify/require"
)

// fixture wires a memory database with one organization, its owner, a
// regular member, a viewer and a project. Handler tests build on it.
type fixture struct {
	db      *database.MemoryDatabase
	cfg     *config.Config
	org     *models.Organization
	project *models.Project
	owner   *models.User
	member  *models.User
	viewer  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewMemoryDatabase()

	owner := &models.User{Email: "owner@example.com", Name: "Owner"}
	require.NoError(t, db.CreateUser(owner))
	member := &models.User{Email: "member@example.com", Name: "Member"}
	require.NoError(t, db.CreateUser(member))
	viewer := &models.User{Email: "viewer@example.com", Name: "Viewer"}
	require.NoError(t, db.CreateUser(viewer))

	org := &models.Organization{Name: "Acme", OwnerID: owner.ID}
	require.NoError(t, db.CreateOrganization(org))
	require.NoError(t, db.AddOrganizationMember(&models.OrganizationMembership{
		OrganizationID: org.ID, UserID: member.ID, Role: models.RoleMember, Status: models.MembershipActive,
	}))
	require.NoError(t, db.AddOrganizationMember(&models.OrganizationMembership{
		OrganizationID: org.ID, UserID: viewer.ID, Role: models.RoleViewer, Status: models.MembershipActive,
	}))

	project := &models.Project{OrganizationID: org.ID, Name: "Launch", CreatedBy: owner.ID}
	require.NoError(t, db.CreateProject(project))

	return &fixture{
		db:      db,
		cfg:     &config.Config{Environment: "test", JWTSecret: "test-secret-test-secret-test-key"},
		org:     org,
		project: project,
		owner:   owner,
		member:  member,
		viewer:  viewer,
	}
}

// addTask inserts a task directly, bypassing the HTTP layer.
func (f *fixture) addTask(t *testing.T, title string, duration *float64) *models.Task {
	t.Helper()
	task := &models.Task{ProjectID: f.project.ID, Title: title, DurationEstimate: duration, CreatedBy: f.owner.ID}
	require.NoError(t, f.db.CreateTask(task))
	return task
}

func durationPtr(v float64) *float64 { return &v }

// doJSON runs a handler with the given user on the request context.
func doJSON(t *testing.T, h http.HandlerFunc, method, target string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// doJSONWithHeader is doJSON for GET requests that need an extra header.
func doJSONWithHeader(t *testing.T, h http.HandlerFunc, target string, user *models.User, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(header, value)
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// decodeEnvelope unwraps the standard response envelope.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    json.RawMessage        `json:"data"`
		Error   map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	var data map[string]interface{}
	if len(envelope.Data) > 0 {
		// Data may be an object or an array; only objects decode here.
		_ = json.Unmarshal(envelope.Data, &data)
	}
	return data, envelope.Error
}
