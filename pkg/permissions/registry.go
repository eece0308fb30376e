package permissions

import (
	"errors"
	"fmt"

	"worksphere-backend/pkg/models"
)

// ErrUnknownRole is returned when a role string is not part of the
// registry. Callers should treat it as a client error, not a crash.
var ErrUnknownRole = errors.New("unknown role")

// Scope bounds which members a role may hand tasks to
type Scope string

const (
	ScopeSelf         Scope = "self"
	ScopeProject      Scope = "project"
	ScopeOrganization Scope = "organization"
)

// Capabilities is the closed per-role capability table. Every role in the
// registry has exactly one entry; there is no dynamic policy layer.
type Capabilities struct {
	CanAssignTasksToSelf   bool  `json:"can_assign_tasks_to_self"`
	CanAssignTasksToOthers bool  `json:"can_assign_tasks_to_others"`
	CanCreateTasks         bool  `json:"can_create_tasks"`
	CanEditOthersTasks     bool  `json:"can_edit_others_tasks"`
	CanDeleteTasks         bool  `json:"can_delete_tasks"`
	AssignmentScope        Scope `json:"assignment_scope"`
}

var roleCapabilities = map[models.OrgMemberRole]Capabilities{
	models.RoleViewer: {
		CanAssignTasksToSelf:   true,
		CanAssignTasksToOthers: false,
		CanCreateTasks:         false,
		CanEditOthersTasks:     false,
		CanDeleteTasks:         false,
		AssignmentScope:        ScopeSelf,
	},
	models.RoleMember: {
		CanAssignTasksToSelf:   true,
		CanAssignTasksToOthers: false,
		CanCreateTasks:         true,
		CanEditOthersTasks:     false,
		CanDeleteTasks:         false,
		AssignmentScope:        ScopeSelf,
	},
	models.RoleAdmin: {
		CanAssignTasksToSelf:   true,
		CanAssignTasksToOthers: true,
		CanCreateTasks:         true,
		CanEditOthersTasks:     true,
		CanDeleteTasks:         true,
		AssignmentScope:        ScopeProject,
	},
	models.RoleOwner: {
		CanAssignTasksToSelf:   true,
		CanAssignTasksToOthers: true,
		CanCreateTasks:         true,
		CanEditOthersTasks:     true,
		CanDeleteTasks:         true,
		AssignmentScope:        ScopeOrganization,
	},
}

// CapabilitiesFor looks up the capability set for a role
func CapabilitiesFor(role models.OrgMemberRole) (Capabilities, error) {
	caps, ok := roleCapabilities[role]
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return caps, nil
}

// Roles returns every role the registry knows about
func Roles() []models.OrgMemberRole {
	return []models.OrgMemberRole{
		models.RoleViewer,
		models.RoleMember,
		models.RoleAdmin,
		models.RoleOwner,
	}
}

// RestrictionMessage is a human readable summary of who a role can assign
// tasks to, shown in the UI next to the assignee picker.
func RestrictionMessage(role models.OrgMemberRole) (string, error) {
	caps, err := CapabilitiesFor(role)
	if err != nil {
		return "", err
	}
	switch caps.AssignmentScope {
	case ScopeSelf:
		return "You can only assign tasks to yourself", nil
	case ScopeProject:
		return "You can assign tasks to any project member", nil
	case ScopeOrganization:
		return "You can assign tasks to any organization member", nil
	default:
		return "", fmt.Errorf("%w: scope %q", ErrUnknownRole, caps.AssignmentScope)
	}
}
