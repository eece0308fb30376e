package handlers

import (
	"net/http"
	"testing"

	"worksphere-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationLifecycle(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	invitee := &models.User{Email: "invitee@example.com"}
	require.NoError(t, f.db.CreateUser(invitee))

	w := doJSON(t, h.InviteMember, http.MethodPost, "/api/orgs/invite", f.owner, map[string]string{
		"organization_id": f.org.ID,
		"email":           invitee.Email,
		"role":            "admin",
	})
	require.Equal(t, http.StatusOK, w.Code)

	invs, err := f.db.ListInvitationsByEmail(invitee.Email)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.NotEmpty(t, invs[0].Token)

	w = doJSON(t, h.AcceptInvitation, http.MethodPost, "/api/invitations/accept", invitee, map[string]string{
		"token": invs[0].Token,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The invite's role carries over to the membership.
	m, err := f.db.GetOrganizationMember(f.org.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, m.Role)
	assert.True(t, m.IsActive())

	// A consumed token cannot be replayed.
	w = doJSON(t, h.AcceptInvitation, http.MethodPost, "/api/invitations/accept", invitee, map[string]string{
		"token": invs[0].Token,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInviteRejectsOwnerRole(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.InviteMember, http.MethodPost, "/api/orgs/invite", f.owner, map[string]string{
		"organization_id": f.org.ID, "email": "x@example.com", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h.InviteMember, http.MethodPost, "/api/orgs/invite", f.owner, map[string]string{
		"organization_id": f.org.ID, "email": "x@example.com", "role": "superuser",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, apiErr := decodeEnvelope(t, w)
	assert.Equal(t, "UNKNOWN_ROLE", apiErr["code"])
}

func TestInviteRequiresOwner(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.InviteMember, http.MethodPost, "/api/orgs/invite", f.member, map[string]string{
		"organization_id": f.org.ID, "email": "x@example.com",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChangeMemberRole(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.ChangeMemberRole, http.MethodPut, "/api/orgs/members/role", f.owner, map[string]string{
		"organization_id": f.org.ID, "user_id": f.viewer.ID, "role": "member",
	})
	require.Equal(t, http.StatusOK, w.Code)
	m, err := f.db.GetOrganizationMember(f.org.ID, f.viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	// Ownership transfer is refused.
	w = doJSON(t, h.ChangeMemberRole, http.MethodPut, "/api/orgs/members/role", f.owner, map[string]string{
		"organization_id": f.org.ID, "user_id": f.viewer.ID, "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Non-owners cannot change roles.
	w = doJSON(t, h.ChangeMemberRole, http.MethodPut, "/api/orgs/members/role", f.member, map[string]string{
		"organization_id": f.org.ID, "user_id": f.viewer.ID, "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeactivateAndReactivateMember(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.DeactivateMember, http.MethodPost, "/api/orgs/members/deactivate", f.owner, map[string]string{
		"organization_id": f.org.ID, "user_id": f.member.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	m, err := f.db.GetOrganizationMember(f.org.ID, f.member.ID)
	require.NoError(t, err)
	assert.False(t, m.IsActive())

	// Deactivated members lose access but their membership row survives.
	w = doJSON(t, h.ListMembers, http.MethodGet, "/api/orgs/members?org_id="+f.org.ID, f.member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h.ReactivateMember, http.MethodPost, "/api/orgs/members/reactivate", f.owner, map[string]string{
		"organization_id": f.org.ID, "user_id": f.member.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	m, _ = f.db.GetOrganizationMember(f.org.ID, f.member.ID)
	assert.True(t, m.IsActive())
}

func TestOwnerCannotDeactivateSelf(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.DeactivateMember, http.MethodPost, "/api/orgs/members/deactivate", f.owner, map[string]string{
		"organization_id": f.org.ID, "user_id": f.owner.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectRoleGates(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	// Members cannot create projects.
	w := doJSON(t, h.CreateProject, http.MethodPost, "/api/projects", f.member, map[string]string{
		"organization_id": f.org.ID, "name": "Skunkworks",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h.CreateProject, http.MethodPost, "/api/projects", f.owner, map[string]string{
		"organization_id": f.org.ID, "name": "Skunkworks",
	})
	require.Equal(t, http.StatusOK, w.Code)

	projects, err := f.db.ListProjectsByOrganization(f.org.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestListMyOrganizationsETag(t *testing.T) {
	f := newFixture(t)
	h := NewOrgsHandler(f.cfg, f.db)

	w := doJSON(t, h.ListMyOrganizations, http.MethodGet, "/api/orgs", f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := doJSONWithHeader(t, h.ListMyOrganizations, "/api/orgs", f.owner, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, second.Code)
}
