package models

import "errors"

// Lookup errors shared by the storage implementations. Handlers match on
// these with errors.Is to pick the right HTTP status.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrDependencyNotFound   = errors.New("dependency not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrDuplicateEmail       = errors.New("email already registered")
)
