package database

import (
	"testing"

	"worksphere-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignTasksAllOrNothing(t *testing.T) {
	db := NewMemoryDatabase()

	user := &models.User{Email: "dev@example.com", Name: "Dev"}
	require.NoError(t, db.CreateUser(user))
	org := &models.Organization{Name: "Acme", OwnerID: user.ID}
	require.NoError(t, db.CreateOrganization(org))
	project := &models.Project{OrganizationID: org.ID, Name: "Launch", CreatedBy: user.ID}
	require.NoError(t, db.CreateProject(project))
	task := &models.Task{ProjectID: project.ID, Title: "Ship it", CreatedBy: user.ID}
	require.NoError(t, db.CreateTask(task))

	// One row points at a task that does not exist; the whole batch fails.
	err := db.AssignTasks([]*models.TaskAssignment{
		{TaskID: task.ID, UserID: user.ID, AssignedBy: user.ID},
		{TaskID: "missing-task", UserID: user.ID, AssignedBy: user.ID},
	})
	require.ErrorIs(t, err, models.ErrTaskNotFound)

	assignments, err := db.ListTaskAssignments(task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	// A clean batch lands every row.
	require.NoError(t, db.AssignTasks([]*models.TaskAssignment{
		{TaskID: task.ID, UserID: user.ID, AssignedBy: user.ID, Status: models.AssignmentAccepted},
	}))
	assignments, err = db.ListTaskAssignments(task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.AssignmentAccepted, assignments[0].Status)
}
