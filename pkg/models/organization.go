package models

import "time"

// Organization represents a collaborative workspace (owner + members)
type Organization struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	Color       string    `json:"color,omitempty" db:"color"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type OrgMemberRole string

const (
	RoleViewer OrgMemberRole = "viewer"
	RoleMember OrgMemberRole = "member"
	RoleAdmin  OrgMemberRole = "admin"
	RoleOwner  OrgMemberRole = "owner"
)

// roleLevels orders roles by privilege: viewer < member < admin < owner.
var roleLevels = map[OrgMemberRole]int{
	RoleViewer: 0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Level returns the privilege rank of the role, -1 for unknown roles.
func (r OrgMemberRole) Level() int {
	if lvl, ok := roleLevels[r]; ok {
		return lvl
	}
	return -1
}

// AtLeast reports whether the role has privilege >= required.
func (r OrgMemberRole) AtLeast(required OrgMemberRole) bool {
	return r.Level() >= 0 && r.Level() >= required.Level()
}

type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// OrganizationMembership relates users to organizations with a role.
// Memberships are never physically deleted; deactivation flips Status.
type OrganizationMembership struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	UserID         string           `json:"user_id" db:"user_id"`
	Role           OrgMemberRole    `json:"role" db:"role"`
	Status         MembershipStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership currently grants access.
func (m *OrganizationMembership) IsActive() bool {
	return m != nil && m.Status == MembershipActive
}

// OrganizationMemberDetail joins a membership with user profile fields,
// used by member listings and the assignable-members endpoint.
type OrganizationMemberDetail struct {
	UserID   string           `json:"id"`
	Email    string           `json:"email"`
	Name     string           `json:"name,omitempty"`
	Avatar   string           `json:"avatar_url,omitempty"`
	Role     OrgMemberRole    `json:"role"`
	Status   MembershipStatus `json:"status"`
	JoinedAt time.Time        `json:"joined_at"`
}
