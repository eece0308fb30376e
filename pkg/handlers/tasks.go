package handlers

import (
	"errors"
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

// TasksHandler owns task CRUD. Every mutation is gated on the caller's
// role capabilities within the task's organization.
type TasksHandler struct {
	config    *config.Config
	db        database.DatabaseInterface
	validator *permissions.Validator
}

func NewTasksHandler(cfg *config.Config, db database.DatabaseInterface) *TasksHandler {
	return &TasksHandler{config: cfg, db: db, validator: permissions.NewValidator(db)}
}

// resolveRole finds the caller's role in the organization owning projectID
func (h *TasksHandler) resolveRole(w http.ResponseWriter, userID, projectID string) (*models.Project, models.OrgMemberRole, bool) {
	project, err := h.db.GetProject(projectID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "project not found")
		return nil, "", false
	}
	if org, err := h.db.GetOrganization(project.OrganizationID); err == nil && org.OwnerID == userID {
		return project, models.RoleOwner, true
	}
	m, err := h.db.GetOrganizationMember(project.OrganizationID, userID)
	if err != nil || !m.IsActive() {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return nil, "", false
	}
	return project, m.Role, true
}

// POST /api/tasks
func (h *TasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		ProjectID        string     `json:"project_id"`
		Title            string     `json:"title"`
		Description      string     `json:"description"`
		Priority         string     `json:"priority"`
		DurationEstimate *float64   `json:"duration_estimate"`
		DueDate          *time.Time `json:"due_date"`
		Position         int        `json:"position"`
		AssignedTo       []string   `json:"assigned_to"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.ProjectID == "" || strings.TrimSpace(req.Title) == "" { utils.WriteBadRequestResponse(w, "project_id and title required"); return }
	if req.DurationEstimate != nil && *req.DurationEstimate < 0 {
		utils.WriteValidationErrorResponse(w, "duration_estimate must not be negative", "")
		return
	}

	project, role, ok := h.resolveRole(w, user.ID, req.ProjectID)
	if !ok { return }

	caps, err := permissions.CapabilitiesFor(role)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), "")
		return
	}
	if !caps.CanCreateTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot create tasks", "")
		return
	}

	// Assignment rules apply at creation too
	if len(req.AssignedTo) > 0 {
		decision, err := h.validator.Validate(r.Context(), project.OrganizationID, user.ID, req.AssignedTo)
		if err != nil {
			fmt.Printf("[error] assignment validation failed: %v\n", err)
			utils.WriteInternalServerErrorResponse(w, "Assignment validation failed")
			return
		}
		if !decision.Valid {
			utils.WriteErrorResponseWithCode(w, http.StatusForbidden, decision.ErrorCode, decision.Message, strings.Join(decision.InvalidUsers, ","))
			return
		}
	}

	task := &models.Task{
		ProjectID:        req.ProjectID,
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		DurationEstimate: req.DurationEstimate,
		DueDate:          req.DueDate,
		Position:         req.Position,
		CreatedBy:        user.ID,
	}
	if err := h.db.CreateTask(task); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }

	batch := make([]*models.TaskAssignment, 0, len(req.AssignedTo))
	for _, target := range req.AssignedTo {
		a := &models.TaskAssignment{TaskID: task.ID, UserID: target, AssignedBy: user.ID}
		if target == user.ID {
			// Self-assignments skip the acceptance step
			a.Status = models.AssignmentAccepted
		}
		batch = append(batch, a)
	}
	if err := h.db.AssignTasks(batch); err != nil {
		fmt.Printf("[error] failed to assign task %s: %v\n", task.ID, err)
		// Roll back the half-created task so the request is all or nothing
		if derr := h.db.DeleteTask(task.ID); derr != nil { fmt.Printf("[warn] failed to clean up task %s: %v\n", task.ID, derr) }
		utils.WriteInternalServerErrorResponse(w, "Failed to persist task assignments")
		return
	}
	task.AssignedTo = req.AssignedTo

	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GET /api/tasks?project_id=
func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" { utils.WriteBadRequestResponse(w, "project_id required"); return }
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	if _, _, ok := h.resolveRole(w, user.ID, projectID); !ok { return }
	tasks, err := h.db.ListTasksByProject(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	var maxUpdated int64
	for _, t := range tasks {
		if ts := t.UpdatedAt.UnixMilli(); ts > maxUpdated { maxUpdated = ts }
	}
	etag := fmt.Sprintf("W/\"tasks:%s:%d:%d\"", projectID, len(tasks), maxUpdated)
	ifNone := r.Header.Get("If-None-Match")
	w.Header().Set("ETag", etag)
	if ifNone == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tasks": tasks})
}

// GET /api/tasks/{id}
func (h *TasksHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	taskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(taskID) == "" { utils.WriteBadRequestResponse(w, "task id required"); return }
	task, err := h.db.GetTask(taskID)
	if err != nil { utils.WriteNotFoundResponse(w, "task not found"); return }
	if _, _, ok := h.resolveRole(w, user.ID, task.ProjectID); !ok { return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// PUT /api/tasks/{id}
func (h *TasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	taskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(taskID) == "" { utils.WriteBadRequestResponse(w, "task id required"); return }
	task, err := h.db.GetTask(taskID)
	if err != nil { utils.WriteNotFoundResponse(w, "task not found"); return }
	_, role, ok := h.resolveRole(w, user.ID, task.ProjectID)
	if !ok { return }

	caps, err := permissions.CapabilitiesFor(role)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), "")
		return
	}
	if task.CreatedBy != user.ID && !caps.CanEditOthersTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot edit tasks created by others", "")
		return
	}

	var req struct {
		Title            string     `json:"title"`
		Description      string     `json:"description"`
		Priority         string     `json:"priority"`
		Status           string     `json:"status"`
		DurationEstimate *float64   `json:"duration_estimate"`
		DueDate          *time.Time `json:"due_date"`
		Position         *int       `json:"position"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.DurationEstimate != nil && *req.DurationEstimate < 0 {
		utils.WriteValidationErrorResponse(w, "duration_estimate must not be negative", "")
		return
	}
	if strings.TrimSpace(req.Title) != "" { task.Title = req.Title }
	if strings.TrimSpace(req.Description) != "" { task.Description = req.Description }
	if strings.TrimSpace(req.Priority) != "" { task.Priority = req.Priority }
	if strings.TrimSpace(req.Status) != "" { task.Status = models.TaskStatus(req.Status) }
	if req.DurationEstimate != nil { task.DurationEstimate = req.DurationEstimate }
	if req.DueDate != nil { task.DueDate = req.DueDate }
	if req.Position != nil { task.Position = *req.Position }
	if err := h.db.UpdateTask(task); err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DELETE /api/tasks/{id}
func (h *TasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	taskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(taskID) == "" { utils.WriteBadRequestResponse(w, "task id required"); return }
	task, err := h.db.GetTask(taskID)
	if err != nil { utils.WriteNotFoundResponse(w, "task not found"); return }
	_, role, ok := h.resolveRole(w, user.ID, task.ProjectID)
	if !ok { return }

	caps, err := permissions.CapabilitiesFor(role)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), "")
		return
	}
	if !caps.CanDeleteTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot delete tasks", "")
		return
	}

	if err := h.db.DeleteTask(taskID); err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			utils.WriteNotFoundResponse(w, "task not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": taskID})
}
