package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/middleware"
	"worksphere-backend/pkg/models"
	"worksphere-backend/pkg/permissions"
	"worksphere-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// AssignmentsHandler exposes assignment validation and the acceptance
// workflow on top of the permissions package.
type AssignmentsHandler struct {
	config    *config.Config
	db        database.DatabaseInterface
	validator *permissions.Validator
}

func NewAssignmentsHandler(cfg *config.Config, db database.DatabaseInterface) *AssignmentsHandler {
	return &AssignmentsHandler{config: cfg, db: db, validator: permissions.NewValidator(db)}
}

// POST /api/assignments/validate
// Dry-run check used by the frontend before submitting an assignment.
func (h *AssignmentsHandler) ValidateAssignment(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string   `json:"organization_id"`
		AssigneeIDs    []string `json:"assignee_ids"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" { utils.WriteBadRequestResponse(w, "organization_id required"); return }

	decision, err := h.validator.Validate(r.Context(), req.OrganizationID, user.ID, req.AssigneeIDs)
	if err != nil {
		fmt.Printf("[error] assignment validation failed: %v\n", err)
		utils.WriteInternalServerErrorResponse(w, "Assignment validation failed")
		return
	}
	utils.WriteSuccessResponse(w, decision)
}

// POST /api/assignments/validate/batch
// Validates several target sets in one call, one decision each.
func (h *AssignmentsHandler) ValidateAssignmentBatch(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		OrganizationID string     `json:"organization_id"`
		Batches        [][]string `json:"batches"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.OrganizationID == "" { utils.WriteBadRequestResponse(w, "organization_id required"); return }

	decisions := make([]*permissions.Decision, 0, len(req.Batches))
	for _, targets := range req.Batches {
		decision, err := h.validator.Validate(r.Context(), req.OrganizationID, user.ID, targets)
		if err != nil {
			fmt.Printf("[error] batch assignment validation failed: %v\n", err)
			utils.WriteInternalServerErrorResponse(w, "Assignment validation failed")
			return
		}
		decisions = append(decisions, decision)
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"decisions": decisions})
}

// GET /api/assignments/assignable-members?org_id=
// Lists the members the caller may assign tasks to, scoped by role.
func (h *AssignmentsHandler) AssignableMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" { utils.WriteBadRequestResponse(w, "org_id required"); return }

	membership, err := h.db.GetOrganizationMember(orgID, user.ID)
	if err != nil || !membership.IsActive() {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeNotOrganizationMember, "You are not an active member of this organization", "")
		return
	}

	caps, err := permissions.CapabilitiesFor(membership.Role)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), "")
		return
	}
	restriction, err := permissions.RestrictionMessage(membership.Role)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	members, err := h.db.ListOrganizationMemberDetails(orgID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }

	assignable := make([]models.OrganizationMemberDetail, 0, len(members))
	for _, m := range members {
		if m.Status != models.MembershipActive {
			continue
		}
		if !caps.CanAssignTasksToOthers && m.UserID != user.ID {
			continue
		}
		assignable = append(assignable, m)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"members":             assignable,
		"total_count":         len(assignable),
		"user_role":           membership.Role,
		"assignment_scope":    caps.AssignmentScope,
		"restriction_message": restriction,
	})
}

// POST /api/assignments/assign
func (h *AssignmentsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		TaskID      string   `json:"task_id"`
		AssigneeIDs []string `json:"assignee_ids"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.TaskID == "" || len(req.AssigneeIDs) == 0 { utils.WriteBadRequestResponse(w, "task_id and assignee_ids required"); return }

	task, err := h.db.GetTask(req.TaskID)
	if err != nil { utils.WriteNotFoundResponse(w, "task not found"); return }
	project, err := h.db.GetProject(task.ProjectID)
	if err != nil { utils.WriteNotFoundResponse(w, "project not found"); return }

	decision, err := h.validator.Validate(r.Context(), project.OrganizationID, user.ID, req.AssigneeIDs)
	if err != nil {
		fmt.Printf("[error] assignment validation failed: %v\n", err)
		utils.WriteInternalServerErrorResponse(w, "Assignment validation failed")
		return
	}
	if !decision.Valid {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, decision.ErrorCode, decision.Message, strings.Join(decision.InvalidUsers, ","))
		return
	}

	batch := make([]*models.TaskAssignment, 0, len(req.AssigneeIDs))
	for _, target := range req.AssigneeIDs {
		a := &models.TaskAssignment{TaskID: task.ID, UserID: target, AssignedBy: user.ID}
		if target == user.ID {
			a.Status = models.AssignmentAccepted
		}
		batch = append(batch, a)
	}
	if err := h.db.AssignTasks(batch); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to save assignments: "+err.Error())
		return
	}
	created := make([]models.TaskAssignment, 0, len(batch))
	for _, a := range batch {
		created = append(created, *a)
	}

	fmt.Printf("✅ Assigned task %s to %d member(s)\n", task.ID, len(created))
	utils.WriteSuccessResponse(w, map[string]interface{}{"assignments": created})
}

// GET /api/assignments/my?status=
func (h *AssignmentsHandler) MyAssignments(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	assignments, err := h.db.ListAssignmentsForUser(user.ID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]models.TaskAssignment, 0, len(assignments))
		for _, a := range assignments {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		assignments = filtered
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"assignments": assignments, "total_count": len(assignments)})
}

// POST /api/assignments/{taskID}/respond
// Assignees accept or decline their own pending assignments.
func (h *AssignmentsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	taskID := chiRoute.URLParam(r, "taskID")
	if strings.TrimSpace(taskID) == "" { utils.WriteBadRequestResponse(w, "task id required"); return }
	var req struct {
		Response string `json:"response"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }

	var status models.AssignmentStatus
	switch req.Response {
	case "accept":
		status = models.AssignmentAccepted
	case "decline":
		status = models.AssignmentDeclined
	default:
		utils.WriteBadRequestResponse(w, "response must be accept or decline")
		return
	}

	if err := h.db.UpdateAssignmentStatus(taskID, user.ID, status); err != nil {
		utils.WriteNotFoundResponse(w, "assignment not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task_id": taskID, "status": status})
}
