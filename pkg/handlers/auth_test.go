package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"worksphere-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLogin(t *testing.T, body []byte) models.UserLoginResponse {
	t.Helper()
	var envelope struct {
		Success bool                     `json:"success"`
		Data    models.UserLoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestRegisterCreatesDefaultOrganization(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email":    "new@example.com",
		"password": "supersecret",
		"name":     "Newbie",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeLogin(t, w.Body.Bytes())
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.OrgID)
	assert.Empty(t, resp.User.Password)

	// The default organization is owned by the new user with an owner
	// membership and a seeded project.
	org, err := f.db.GetOrganization(resp.OrgID)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, org.OwnerID)
	assert.Equal(t, "Newbie's Workspace", org.Name)

	m, err := f.db.GetOrganizationMember(org.ID, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	projects, err := f.db.ListProjectsByOrganization(org.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "General", projects[0].Name)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email": "not-an-email", "password": "supersecret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email": "short@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	body := map[string]string{"email": "dup@example.com", "password": "supersecret"}
	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginRoundTrip(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email": "login@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h.Login, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email": "login@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeLogin(t, w.Body.Bytes())
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.User.Password)
}

func TestLoginWrongCredentials(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email": "victim@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Wrong password and unknown email return the same message, so an
	// attacker cannot probe which emails exist.
	wrongPass := doJSON(t, h.Login, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email": "victim@example.com", "password": "wrongpassword",
	})
	unknown := doJSON(t, h.Login, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email": "ghost@example.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.cfg, f.db)

	w := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"email": "refresh@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeLogin(t, w.Body.Bytes())

	w = doJSON(t, h.RefreshToken, http.MethodPost, "/api/auth/refresh", nil, map[string]string{
		"refresh_token": resp.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h.RefreshToken, http.MethodPost, "/api/auth/refresh", nil, map[string]string{
		"refresh_token": "garbage",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
