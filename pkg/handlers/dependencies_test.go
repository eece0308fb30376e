package handlers

import (
	"net/http"
	"testing"

	"worksphere-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depBody(f *fixture, pred, succ string) map[string]string {
	return map[string]string{
		"project_id":          f.project.ID,
		"predecessor_task_id": pred,
		"successor_task_id":   succ,
	}
}

func TestCreateDependency(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, a.ID, b.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	deps, err := f.db.ListDependenciesByProject(f.project.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, a.ID, deps[0].PredecessorTaskID)
	assert.Equal(t, b.ID, deps[0].SuccessorTaskID)
}

func TestCreateDependencyRejectsSelf(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, a.ID, a.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, apiErr := decodeEnvelope(t, w)
	assert.Equal(t, "SELF_DEPENDENCY", apiErr["code"])
}

func TestCreateDependencyRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, a.ID, b.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, a.ID, b.ID))
	require.Equal(t, http.StatusConflict, w.Code)
	_, apiErr := decodeEnvelope(t, w)
	assert.Equal(t, "DUPLICATE_DEPENDENCY", apiErr["code"])
}

func TestCreateDependencyRejectsCycle(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)
	c := f.addTask(t, "Ship", nil)

	for _, edge := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}} {
		w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, edge[0], edge[1]))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, c.ID, a.ID))
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, apiErr := decodeEnvelope(t, w)
	assert.Equal(t, "CYCLIC_DEPENDENCY", apiErr["code"])

	deps, _ := f.db.ListDependenciesByProject(f.project.ID)
	assert.Len(t, deps, 2)
}

func TestCreateDependencyForbiddenForViewer(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.viewer, depBody(f, a.ID, b.ID))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteDependencyReopensEdge(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)

	w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, a.ID, b.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	deps, _ := f.db.ListDependenciesByProject(f.project.ID)
	require.Len(t, deps, 1)

	w = doJSON(t, withURLParam(h.DeleteDependency, "id", deps[0].ID), http.MethodDelete, "/api/dependencies/"+deps[0].ID, f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Cache was invalidated, so the reverse edge is legal again.
	w = doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, b.ID, a.ID))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestDeleteDependencyNotFound(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)

	w := doJSON(t, withURLParam(h.DeleteDependency, "id", "missing"), http.MethodDelete, "/api/dependencies/missing", f.owner, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	_, apiErr := decodeEnvelope(t, w)
	assert.Equal(t, "DEPENDENCY_NOT_FOUND", apiErr["code"])
}

func TestValidateDependenciesReportsCycle(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)

	w := doJSON(t, h.ValidateDependencies, http.MethodPost, "/api/dependencies/validate", f.owner, map[string]interface{}{
		"project_id": f.project.ID,
		"dependencies": []map[string]string{
			{"predecessor_task_id": "a", "successor_task_id": "b"},
			{"predecessor_task_id": "b", "successor_task_id": "a"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := decodeEnvelope(t, w)
	assert.Equal(t, false, data["valid"])
	// The cycle-closing edge is refused during insertion.
	assert.NotEmpty(t, data["rejected_edges"])
}

func TestImportDependenciesAtomic(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)
	c := f.addTask(t, "Ship", nil)

	// Cycle in the payload leaves storage untouched.
	w := doJSON(t, h.ImportDependencies, http.MethodPost, "/api/dependencies/import", f.owner, map[string]interface{}{
		"project_id": f.project.ID,
		"dependencies": []map[string]string{
			{"predecessor_task_id": a.ID, "successor_task_id": b.ID},
			{"predecessor_task_id": b.ID, "successor_task_id": a.ID},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	deps, _ := f.db.ListDependenciesByProject(f.project.ID)
	assert.Empty(t, deps)

	// Unknown task ids are rejected.
	w = doJSON(t, h.ImportDependencies, http.MethodPost, "/api/dependencies/import", f.owner, map[string]interface{}{
		"project_id": f.project.ID,
		"dependencies": []map[string]string{
			{"predecessor_task_id": a.ID, "successor_task_id": "ghost"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// A valid set replaces everything.
	w = doJSON(t, h.ImportDependencies, http.MethodPost, "/api/dependencies/import", f.owner, map[string]interface{}{
		"project_id": f.project.ID,
		"dependencies": []map[string]string{
			{"predecessor_task_id": a.ID, "successor_task_id": b.ID},
			{"predecessor_task_id": b.ID, "successor_task_id": c.ID},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	deps, _ = f.db.ListDependenciesByProject(f.project.ID)
	assert.Len(t, deps, 2)
}

func TestVisualizationLevels(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", nil)
	b := f.addTask(t, "Build", nil)
	c := f.addTask(t, "Ship", nil)

	for _, edge := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}} {
		w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, edge[0], edge[1]))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, h.Visualization, http.MethodGet, "/api/dependencies/visualization?project_id="+f.project.ID, f.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := decodeEnvelope(t, w)
	assert.Len(t, data["nodes"], 3)
	assert.Len(t, data["edges"], 2)
	levels := data["levels"].([]interface{})
	require.Len(t, levels, 3)
	assert.Equal(t, a.ID, levels[0].([]interface{})[0])
}

func TestCriticalPathEndpoint(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)
	a := f.addTask(t, "Design", durationPtr(2))
	b := f.addTask(t, "Build", durationPtr(3))
	c := f.addTask(t, "Review", durationPtr(1))
	d := f.addTask(t, "Ship", durationPtr(1))

	// a -> b -> d and a -> c -> d, the b branch is longer.
	for _, edge := range [][2]string{{a.ID, b.ID}, {a.ID, c.ID}, {b.ID, d.ID}, {c.ID, d.ID}} {
		w := doJSON(t, h.CreateDependency, http.MethodPost, "/api/dependencies", f.owner, depBody(f, edge[0], edge[1]))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, h.CriticalPathView, http.MethodGet, "/api/dependencies/critical-path?project_id="+f.project.ID, f.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := decodeEnvelope(t, w)
	assert.EqualValues(t, 6, data["total_duration"])

	path := data["critical_path"].([]interface{})
	require.Len(t, path, 3)
	assert.Equal(t, a.ID, path[0])
	assert.Equal(t, b.ID, path[1])
	assert.Equal(t, d.ID, path[2])

	slack := data["slack"].(map[string]interface{})
	assert.EqualValues(t, 0, slack[a.ID])
	assert.EqualValues(t, 2, slack[c.ID])
}

func TestCriticalPathRequiresMembership(t *testing.T) {
	f := newFixture(t)
	h := NewDependenciesHandler(f.cfg, f.db)

	outsider := &models.User{Email: "nobody@example.com"}
	require.NoError(t, f.db.CreateUser(outsider))

	w := doJSON(t, h.CriticalPathView, http.MethodGet, "/api/dependencies/critical-path?project_id="+f.project.ID, outsider, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}
