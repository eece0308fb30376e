package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/middleware"
	"worksphere-backend/pkg/models"
	"worksphere-backend/pkg/permissions"
	"worksphere-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db}
}

// ==== helpers: membership/role checks ====

func (h *OrgsHandler) getUserRoleInOrg(userID, orgID string) (models.OrgMemberRole, bool) {
	// owner fast-path
	if org, err := h.db.GetOrganization(orgID); err == nil {
		if org.OwnerID == userID {
			return models.RoleOwner, true
		}
	}
	m, err := h.db.GetOrganizationMember(orgID, userID)
	if err != nil || !m.IsActive() {
		return "", false
	}
	return m.Role, true
}

func (h *OrgsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (models.OrgMemberRole, bool) {
	role, ok := h.getUserRoleInOrg(userID, orgID)
	if !ok {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return "", false
	}
	return role, true
}

func (h *OrgsHandler) requireOwner(w http.ResponseWriter, userID, orgID string) bool {
	role, ok := h.getUserRoleInOrg(userID, orgID)
	if !ok || role != models.RoleOwner {
		utils.WriteForbiddenResponse(w, "Owner privileges required")
		return false
	}
	return true
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		Avatar          string `json:"avatar"`
		Color           string `json:"color"`
		DefaultProjects []struct{ Name, Description string }  `json:"default_projects"`
		InviteEmails    []string                              `json:"invite_emails"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if strings.TrimSpace(req.Name) == "" { utils.WriteBadRequestResponse(w, "Name required"); return }

	color := strings.TrimSpace(req.Color)
	if color == "" { color = "#3b82f6" }
	org := &models.Organization{Name: req.Name, Description: req.Description, Avatar: req.Avatar, Color: color, OwnerID: user.ID}
	if err := h.db.CreateOrganization(org); err != nil { utils.WriteInternalServerErrorResponse(w, "Create org failed: "+err.Error()); return }

	for _, p := range req.DefaultProjects {
		_ = h.db.CreateProject(&models.Project{OrganizationID: org.ID, Name: p.Name, Description: p.Description, CreatedBy: user.ID})
	}

	// Invitations are created here; email delivery is out of scope
	for _, email := range req.InviteEmails {
		email = strings.TrimSpace(email)
		if email == "" { continue }
		tok, err := utils.GenerateURLToken(24)
		if err != nil { fmt.Printf("[warn] failed to generate token for %s: %v\n", email, err); continue }
		inv := &models.OrganizationInvitation{OrganizationID: org.ID, Email: email, InviterID: user.ID, Role: models.RoleMember, Token: tok, Status: models.InvitationPending, ExpiresAt: time.Now().Add(14 * 24 * time.Hour)}
		if err := h.db.CreateInvitation(inv); err != nil { fmt.Printf("[warn] failed to create invitation for %s: %v\n", email, err) }
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// PUT /api/orgs/{id}
func (h *OrgsHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	orgID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(orgID) == "" { utils.WriteBadRequestResponse(w, "organization id required"); return }
	role, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok { return }
	if role != models.RoleOwner && role != models.RoleAdmin {
		utils.WriteForbiddenResponse(w, "Only owner/admin can update organization")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
		Color       string `json:"color"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	org, err := h.db.GetOrganization(orgID)
	if err != nil { utils.WriteNotFoundResponse(w, "organization not found"); return }
	if strings.TrimSpace(req.Name) != "" { org.Name = req.Name }
	if strings.TrimSpace(req.Description) != "" { org.Description = req.Description }
	if strings.TrimSpace(req.Avatar) != "" { org.Avatar = req.Avatar }
	if strings.TrimSpace(req.Color) != "" { org.Color = req.Color }
	if err := h.db.UpdateOrganization(org); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err != nil {
		fmt.Printf("[error] ListMyOrganizations failed for user=%s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	// Weak ETag: orgs:<user>:<count>:<maxUpdated>
	var maxUpdated int64
	for _, o := range orgs {
		if ts := o.UpdatedAt.UnixMilli(); ts > maxUpdated { maxUpdated = ts }
	}
	etag := fmt.Sprintf("W/\"orgs:%s:%d:%d\"", user.ID, len(orgs), maxUpdated)
	ifNone := r.Header.Get("If-None-Match")
	w.Header().Set("ETag", etag)
	if ifNone == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// GET /api/orgs/members?org_id=
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" { utils.WriteBadRequestResponse(w, "org_id required"); return }
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok { return }
	members, err := h.db.ListOrganizationMemberDetails(orgID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members, "total_count": len(members)})
}

// POST /api/orgs/invite
func (h *OrgsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string `json:"organization_id"`
		Email          string `json:"email"`
		Role           string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" || req.Email == "" { utils.WriteBadRequestResponse(w, "organization_id and email required"); return }

	role := models.OrgMemberRole(strings.TrimSpace(req.Role))
	if role == "" { role = models.RoleMember }
	if _, err := permissions.CapabilitiesFor(role); err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", "Unknown role: "+req.Role, "")
		return
	}
	// Owner is granted by creating the organization, never by invite
	if role == models.RoleOwner {
		utils.WriteBadRequestResponse(w, "Cannot invite a member as owner")
		return
	}

	if !h.requireOwner(w, user.ID, req.OrganizationID) { return }
	tok, err := utils.GenerateURLToken(24)
	if err != nil { utils.WriteInternalServerErrorResponse(w, "failed to generate token"); return }
	inv := &models.OrganizationInvitation{OrganizationID: req.OrganizationID, Email: req.Email, InviterID: user.ID, Role: role, Token: tok, Status: models.InvitationPending, ExpiresAt: time.Now().Add(14 * 24 * time.Hour)}
	if err := h.db.CreateInvitation(inv); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}

// GET /api/invitations/my
func (h *OrgsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	invs, err := h.db.ListInvitationsByEmail(user.Email)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invs})
}

// POST /api/invitations/accept
func (h *OrgsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.Token == "" { utils.WriteBadRequestResponse(w, "token required"); return }
	inv, err := h.db.GetInvitationByToken(req.Token)
	if err != nil { utils.WriteNotFoundResponse(w, "Invitation not found"); return }
	if inv.Status != models.InvitationPending || time.Now().After(inv.ExpiresAt) { utils.WriteBadRequestResponse(w, "Invitation invalid or expired"); return }

	role := inv.Role
	if role == "" { role = models.RoleMember }
	if err := h.db.AddOrganizationMember(&models.OrganizationMembership{OrganizationID: inv.OrganizationID, UserID: user.ID, Role: role, Status: models.MembershipActive}); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to add membership: "+err.Error())
		return
	}
	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &user.ID
	if err := h.db.UpdateInvitation(inv); err != nil { fmt.Printf("[warn] update invitation failed: %v\n", err) }

	utils.WriteSuccessResponse(w, map[string]interface{}{"organization_id": inv.OrganizationID, "role": role})
}

// PUT /api/orgs/members/role
func (h *OrgsHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string `json:"organization_id"`
		UserID         string `json:"user_id"`
		Role           string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" || req.UserID == "" || req.Role == "" {
		utils.WriteBadRequestResponse(w, "organization_id, user_id and role required")
		return
	}

	role := models.OrgMemberRole(req.Role)
	if _, err := permissions.CapabilitiesFor(role); err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", "Unknown role: "+req.Role, "")
		return
	}

	// Only the owner reassigns roles, and never their own
	if !h.requireOwner(w, user.ID, req.OrganizationID) { return }
	if req.UserID == user.ID {
		utils.WriteBadRequestResponse(w, "Owner cannot change their own role")
		return
	}
	if role == models.RoleOwner {
		utils.WriteBadRequestResponse(w, "Ownership transfer is not supported")
		return
	}

	if err := h.db.UpdateMembershipRole(req.OrganizationID, req.UserID, role); err != nil {
		utils.WriteNotFoundResponse(w, "Membership not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization_id": req.OrganizationID, "user_id": req.UserID, "role": role})
}

// POST /api/orgs/members/deactivate
// Memberships are soft-deactivated so task history keeps its authors.
func (h *OrgsHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string `json:"organization_id"`
		UserID         string `json:"user_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" || req.UserID == "" { utils.WriteBadRequestResponse(w, "organization_id and user_id required"); return }
	if !h.requireOwner(w, user.ID, req.OrganizationID) { return }
	if req.UserID == user.ID {
		utils.WriteBadRequestResponse(w, "Owner cannot deactivate themselves")
		return
	}
	if err := h.db.SetMembershipStatus(req.OrganizationID, req.UserID, models.MembershipInactive); err != nil {
		utils.WriteNotFoundResponse(w, "Membership not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deactivated": true, "user_id": req.UserID})
}

// POST /api/orgs/members/reactivate
func (h *OrgsHandler) ReactivateMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string `json:"organization_id"`
		UserID         string `json:"user_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" || req.UserID == "" { utils.WriteBadRequestResponse(w, "organization_id and user_id required"); return }
	if !h.requireOwner(w, user.ID, req.OrganizationID) { return }
	if err := h.db.SetMembershipStatus(req.OrganizationID, req.UserID, models.MembershipActive); err != nil {
		utils.WriteNotFoundResponse(w, "Membership not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"reactivated": true, "user_id": req.UserID})
}

// POST /api/projects
func (h *OrgsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string `json:"organization_id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" || strings.TrimSpace(req.Name) == "" { utils.WriteBadRequestResponse(w, "organization_id and name required"); return }
	role, ok := h.requireOrgMember(w, user.ID, req.OrganizationID)
	if !ok { return }
	if role != models.RoleOwner && role != models.RoleAdmin {
		utils.WriteForbiddenResponse(w, "Only owner/admin can create projects")
		return
	}
	project := &models.Project{OrganizationID: req.OrganizationID, Name: req.Name, Description: req.Description, CreatedBy: user.ID}
	if err := h.db.CreateProject(project); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// GET /api/projects?org_id=
func (h *OrgsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" { utils.WriteBadRequestResponse(w, "org_id required"); return }
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok { return }
	projects, err := h.db.ListProjectsByOrganization(orgID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	var maxUpdated int64
	for _, p := range projects {
		if ts := p.UpdatedAt.UnixMilli(); ts > maxUpdated { maxUpdated = ts }
	}
	etag := fmt.Sprintf("W/\"projects:%s:%d:%d\"", orgID, len(projects), maxUpdated)
	ifNone := r.Header.Get("If-None-Match")
	w.Header().Set("ETag", etag)
	if ifNone == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": projects})
}

// PUT /api/projects/{id}
func (h *OrgsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	projectID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(projectID) == "" { utils.WriteBadRequestResponse(w, "project id required"); return }
	project, err := h.db.GetProject(projectID)
	if err != nil { utils.WriteNotFoundResponse(w, "project not found"); return }
	role, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok { return }
	if role != models.RoleOwner && role != models.RoleAdmin {
		utils.WriteForbiddenResponse(w, "Only owner/admin can update projects")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if strings.TrimSpace(req.Name) != "" { project.Name = req.Name }
	if strings.TrimSpace(req.Description) != "" { project.Description = req.Description }
	if err := h.db.UpdateProject(project); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// DELETE /api/projects/{id}
func (h *OrgsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	projectID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(projectID) == "" { utils.WriteBadRequestResponse(w, "project id required"); return }
	project, err := h.db.GetProject(projectID)
	if err != nil { utils.WriteNotFoundResponse(w, "project not found"); return }
	role, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok { return }
	if role != models.RoleOwner && role != models.RoleAdmin {
		utils.WriteForbiddenResponse(w, "Only owner/admin can delete projects")
		return
	}
	if err := h.db.DeleteProject(projectID); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": projectID})
}
