package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/depgraph"
	"worksphere-backend/pkg/middleware"
	"worksphere-backend/pkg/models"
	"worksphere-backend/pkg/permissions"
	"worksphere-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// DependenciesHandler manages task dependency edges and the derived
// scheduling views. Graphs are cached per project and invalidated on
// every mutation.
type DependenciesHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	cache  *depgraph.Cache
}

func NewDependenciesHandler(cfg *config.Config, db database.DatabaseInterface) *DependenciesHandler {
	return &DependenciesHandler{config: cfg, db: db, cache: depgraph.NewCache()}
}

// resolveRole mirrors the task handler's membership check.
func (h *DependenciesHandler) resolveRole(w http.ResponseWriter, userID, projectID string) (*models.Project, models.OrgMemberRole, bool) {
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

// loadProjectGraph returns the cached graph for a project, rebuilding it
// from storage on a miss. Edges loaded from storage were validated on
// insert, so AddEdge failures here indicate stale rows and are skipped.
func (h *DependenciesHandler) loadProjectGraph(projectID string) (*depgraph.Graph, error) {
	if g := h.cache.Get(projectID); g != nil {
		return g, nil
	}
	tasks, err := h.db.ListTasksByProject(projectID)
	if err != nil {
		return nil, err
	}
	deps, err := h.db.ListDependenciesByProject(projectID)
	if err != nil {
		return nil, err
	}
	g := depgraph.NewGraph()
	for _, t := range tasks {
		g.AddTask(t.ID)
	}
	for _, d := range deps {
		if err := g.AddEdge(d.PredecessorTaskID, d.SuccessorTaskID); err != nil {
			fmt.Printf("[warn] skipping stored dependency %s: %v\n", d.ID, err)
		}
	}
	h.cache.Put(projectID, g)
	return g, nil
}

func writeGraphError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, depgraph.ErrSelfDependency):
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "SELF_DEPENDENCY", "A task cannot depend on itself", err.Error())
	case errors.Is(err, depgraph.ErrDuplicateDependency):
		utils.WriteErrorResponseWithCode(w, http.StatusConflict, "DUPLICATE_DEPENDENCY", "This dependency already exists", err.Error())
	case errors.Is(err, depgraph.ErrCyclicDependency):
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "CYCLIC_DEPENDENCY", "This dependency would create a cycle", err.Error())
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}

// POST /api/dependencies
func (h *DependenciesHandler) CreateDependency(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		ProjectID         string `json:"project_id"`
		PredecessorTaskID string `json:"predecessor_task_id"`
		SuccessorTaskID   string `json:"successor_task_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.ProjectID == "" || req.PredecessorTaskID == "" || req.SuccessorTaskID == "" {
		utils.WriteBadRequestResponse(w, "project_id, predecessor_task_id and successor_task_id required")
		return
	}

	_, role, ok := h.resolveRole(w, user.ID, req.ProjectID)
	if !ok { return }
	caps, err := permissions.CapabilitiesFor(role)
	if err != nil { utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), ""); return }
	if !caps.CanCreateTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot modify dependencies", "")
		return
	}

	for _, taskID := range []string{req.PredecessorTaskID, req.SuccessorTaskID} {
		task, err := h.db.GetTask(taskID)
		if err != nil { utils.WriteNotFoundResponse(w, "task not found: "+taskID); return }
		if task.ProjectID != req.ProjectID {
			utils.WriteBadRequestResponse(w, "tasks must belong to the same project")
			return
		}
	}

	g, err := h.loadProjectGraph(req.ProjectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	if err := g.AddEdge(req.PredecessorTaskID, req.SuccessorTaskID); err != nil {
		writeGraphError(w, err)
		return
	}

	dep := &models.TaskDependency{
		ProjectID:         req.ProjectID,
		PredecessorTaskID: req.PredecessorTaskID,
		SuccessorTaskID:   req.SuccessorTaskID,
		CreatedBy:         user.ID,
	}
	if err := h.db.CreateDependency(dep); err != nil {
		// Cached graph already holds the edge, drop it so the next read rebuilds.
		h.cache.Invalidate(req.ProjectID)
		utils.WriteInternalServerErrorResponse(w, "Failed to save dependency: "+err.Error())
		return
	}

	fmt.Printf("✅ Dependency created: %s -> %s (project %s)\n", req.PredecessorTaskID, req.SuccessorTaskID, req.ProjectID)
	utils.WriteCreatedResponse(w, dep)
}

// DELETE /api/dependencies/{id}
func (h *DependenciesHandler) DeleteDependency(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	depID := chiRoute.URLParam(r, "id")

	dep, err := h.db.GetDependency(depID)
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "DEPENDENCY_NOT_FOUND", "Dependency not found", "")
		return
	}
	_, role, ok := h.resolveRole(w, user.ID, dep.ProjectID)
	if !ok { return }
	caps, err := permissions.CapabilitiesFor(role)
	if err != nil { utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), ""); return }
	if !caps.CanCreateTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot modify dependencies", "")
		return
	}

	if err := h.db.DeleteDependency(depID); err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "DEPENDENCY_NOT_FOUND", "Dependency not found", "")
		return
	}
	h.cache.Invalidate(dep.ProjectID)
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": depID})
}

// GET /api/dependencies/project/{projectID}
func (h *DependenciesHandler) ListProjectDependencies(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	projectID := chiRoute.URLParam(r, "projectID")
	if _, _, ok := h.resolveRole(w, user.ID, projectID); !ok { return }

	deps, err := h.db.ListDependenciesByProject(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	utils.WriteSuccessResponse(w, map[string]interface{}{"dependencies": deps, "total_count": len(deps)})
}

// POST /api/dependencies/validate
// Checks whether a candidate edge set is acyclic without persisting it.
func (h *DependenciesHandler) ValidateDependencies(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		ProjectID    string `json:"project_id"`
		Dependencies []struct {
			PredecessorTaskID string `json:"predecessor_task_id"`
			SuccessorTaskID   string `json:"successor_task_id"`
		} `json:"dependencies"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.ProjectID == "" { utils.WriteBadRequestResponse(w, "project_id required"); return }
	if _, _, ok := h.resolveRole(w, user.ID, req.ProjectID); !ok { return }

	g, invalid := buildCandidateGraph(depPairs(req.Dependencies))
	cycle, err := g.ValidateAcyclic()
	if err != nil {
		utils.WriteSuccessResponse(w, map[string]interface{}{"valid": false, "cycle": cycle, "rejected_edges": invalid})
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"valid": len(invalid) == 0, "cycle": []string{}, "rejected_edges": invalid})
}

type depPair struct {
	Predecessor string `json:"predecessor_task_id"`
	Successor   string `json:"successor_task_id"`
}

func depPairs(in []struct {
	PredecessorTaskID string `json:"predecessor_task_id"`
	SuccessorTaskID   string `json:"successor_task_id"`
}) []depPair {
	out := make([]depPair, 0, len(in))
	for _, d := range in {
		out = append(out, depPair{Predecessor: d.PredecessorTaskID, Successor: d.SuccessorTaskID})
	}
	return out
}

// buildCandidateGraph inserts edges one by one and reports the edges
// AddEdge refused together with the reason.
func buildCandidateGraph(pairs []depPair) (*depgraph.Graph, []map[string]string) {
	g := depgraph.NewGraph()
	var invalid []map[string]string
	for _, p := range pairs {
		if err := g.AddEdge(p.Predecessor, p.Successor); err != nil {
			invalid = append(invalid, map[string]string{
				"predecessor_task_id": p.Predecessor,
				"successor_task_id":   p.Successor,
				"reason":              err.Error(),
			})
		}
	}
	return g, invalid
}

// POST /api/dependencies/import
// Replaces a project's entire edge set atomically. The incoming set must
// be acyclic as a whole or nothing is written.
func (h *DependenciesHandler) ImportDependencies(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	var req struct {
		ProjectID    string    `json:"project_id"`
		Dependencies []depPair `json:"dependencies"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil { utils.WriteBadRequestResponse(w, "Invalid body"); return }
	if req.ProjectID == "" { utils.WriteBadRequestResponse(w, "project_id required"); return }

	_, role, ok := h.resolveRole(w, user.ID, req.ProjectID)
	if !ok { return }
	caps, err := permissions.CapabilitiesFor(role)
	if err != nil { utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "UNKNOWN_ROLE", err.Error(), ""); return }
	if !caps.CanCreateTasks {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, permissions.CodeInsufficientPermissions, "Your role cannot modify dependencies", "")
		return
	}

	tasks, err := h.db.ListTasksByProject(req.ProjectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	g := depgraph.NewGraph()
	deps := make([]models.TaskDependency, 0, len(req.Dependencies))
	for _, p := range req.Dependencies {
		if !known[p.Predecessor] || !known[p.Successor] {
			utils.WriteBadRequestResponse(w, fmt.Sprintf("unknown task in edge %s -> %s", p.Predecessor, p.Successor))
			return
		}
		if err := g.AddEdge(p.Predecessor, p.Successor); err != nil {
			writeGraphError(w, err)
			return
		}
		deps = append(deps, models.TaskDependency{
			ProjectID:         req.ProjectID,
			PredecessorTaskID: p.Predecessor,
			SuccessorTaskID:   p.Successor,
			CreatedBy:         user.ID,
		})
	}

	if err := h.db.ReplaceProjectDependencies(req.ProjectID, deps); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to import dependencies: "+err.Error())
		return
	}
	h.cache.Invalidate(req.ProjectID)

	fmt.Printf("✅ Imported %d dependencies for project %s\n", len(deps), req.ProjectID)
	utils.WriteSuccessResponse(w, map[string]interface{}{"imported": len(deps)})
}

// GET /api/dependencies/visualization?project_id=
// Nodes plus edges plus topological levels, ready for a frontend DAG view.
func (h *DependenciesHandler) Visualization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" { utils.WriteBadRequestResponse(w, "project_id required"); return }
	if _, _, ok := h.resolveRole(w, user.ID, projectID); !ok { return }

	tasks, err := h.db.ListTasksByProject(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	g, err := h.loadProjectGraph(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }

	levels, err := g.TopologicalLevels()
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusConflict, "CYCLIC_DEPENDENCY", "Stored dependency graph contains a cycle", "")
		return
	}

	nodes := make([]map[string]interface{}, 0, len(tasks))
	for _, t := range tasks {
		duration := 0.0
		if t.DurationEstimate != nil {
			duration = *t.DurationEstimate
		}
		nodes = append(nodes, map[string]interface{}{
			"id":       t.ID,
			"title":    t.Title,
			"status":   t.Status,
			"duration": duration,
		})
	}

	edges := make([]map[string]string, 0)
	for _, e := range g.Edges() {
		edges = append(edges, map[string]string{"from": e.Predecessor, "to": e.Successor})
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"nodes":  nodes,
		"edges":  edges,
		"levels": levels,
	})
}

// GET /api/dependencies/critical-path?project_id=
func (h *DependenciesHandler) CriticalPathView(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil { utils.WriteUnauthorizedResponse(w, "Authentication required"); return }
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" { utils.WriteBadRequestResponse(w, "project_id required"); return }
	if _, _, ok := h.resolveRole(w, user.ID, projectID); !ok { return }

	tasks, err := h.db.ListTasksByProject(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }
	g, err := h.loadProjectGraph(projectID)
	if err != nil { utils.WriteInternalServerErrorResponse(w, err.Error()); return }

	durations := make(map[string]float64, len(tasks))
	for _, t := range tasks {
		if t.DurationEstimate != nil {
			durations[t.ID] = *t.DurationEstimate
		}
	}

	schedule, err := depgraph.CriticalPath(g, durations)
	if err != nil {
		if errors.Is(err, depgraph.ErrGraphNotAcyclic) {
			utils.WriteErrorResponseWithCode(w, http.StatusConflict, "CYCLIC_DEPENDENCY", "Stored dependency graph contains a cycle", "")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, schedule)
}
