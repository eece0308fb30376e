package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worksphere-backend/pkg/models"
)

func TestCapabilitiesForEveryRole(t *testing.T) {
	cases := []struct {
		role models.OrgMemberRole
		want Capabilities
	}{
		{models.RoleViewer, Capabilities{
			CanAssignTasksToSelf: true,
			AssignmentScope:      ScopeSelf,
		}},
		{models.RoleMember, Capabilities{
			CanAssignTasksToSelf: true,
			CanCreateTasks:       true,
			AssignmentScope:      ScopeSelf,
		}},
		{models.RoleAdmin, Capabilities{
			CanAssignTasksToSelf:   true,
			CanAssignTasksToOthers: true,
			CanCreateTasks:         true,
			CanEditOthersTasks:     true,
			CanDeleteTasks:         true,
			AssignmentScope:        ScopeProject,
		}},
		{models.RoleOwner, Capabilities{
			CanAssignTasksToSelf:   true,
			CanAssignTasksToOthers: true,
			CanCreateTasks:         true,
			CanEditOthersTasks:     true,
			CanDeleteTasks:         true,
			AssignmentScope:        ScopeOrganization,
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			got, err := CapabilitiesFor(tc.role)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCapabilitiesForUnknownRole(t *testing.T) {
	_, err := CapabilitiesFor(models.OrgMemberRole("superuser"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRolesCoversRegistry(t *testing.T) {
	for _, role := range Roles() {
		_, err := CapabilitiesFor(role)
		assert.NoError(t, err, "role %s missing from capability table", role)
	}
	assert.Len(t, Roles(), 4)
}

func TestRestrictionMessage(t *testing.T) {
	msg, err := RestrictionMessage(models.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, "You can only assign tasks to yourself", msg)

	msg, err = RestrictionMessage(models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "You can assign tasks to any project member", msg)

	msg, err = RestrictionMessage(models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, "You can assign tasks to any organization member", msg)

	_, err = RestrictionMessage(models.OrgMemberRole("ghost"))
	assert.ErrorIs(t, err, ErrUnknownRole)
}
