package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worksphere-backend/pkg/models"
)

// fakeResolver serves memberships from a map keyed by orgID+userID
type fakeResolver struct {
	memberships map[string]*models.OrganizationMembership
	err         error
}

func (f *fakeResolver) ResolveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.memberships[orgID+"/"+userID]
	if !ok {
		return nil, models.ErrMembershipNotFound
	}
	return m, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{memberships: make(map[string]*models.OrganizationMembership)}
}

func (f *fakeResolver) add(orgID, userID string, role models.OrgMemberRole, status models.MembershipStatus) {
	f.memberships[orgID+"/"+userID] = &models.OrganizationMembership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         status,
	}
}

func TestValidateSelfAssignment(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleViewer, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"alice"})
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Empty(t, decision.ErrorCode)
}

func TestValidateViewerCannotAssignOthers(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleViewer, models.MembershipActive)
	resolver.add("org-1", "bob", models.RoleMember, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"bob"})
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	// The target is a valid active member, yet the viewer may not assign
	// to them, so the target id itself is reported as invalid.
	assert.Equal(t, CodeInvalidAssignment, decision.ErrorCode)
	assert.Equal(t, []string{"bob"}, decision.InvalidUsers)
	assert.Equal(t, "You can only assign tasks to yourself", decision.Message)
}

func TestValidateMemberCannotAssignOthersEvenWithSelfIncluded(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleMember, models.MembershipActive)
	resolver.add("org-1", "bob", models.RoleMember, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	// Self-assignment is fine, the other member is not; only that other
	// member appears in the invalid list.
	assert.Equal(t, CodeInvalidAssignment, decision.ErrorCode)
	assert.Equal(t, []string{"bob"}, decision.InvalidUsers)
}

func TestValidateAdminAssignsOthers(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleAdmin, models.MembershipActive)
	resolver.add("org-1", "bob", models.RoleMember, models.MembershipActive)
	resolver.add("org-1", "carol", models.RoleViewer, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"bob", "carol"})
	require.NoError(t, err)
	assert.True(t, decision.Valid)
}

func TestValidateActorNotMember(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "bob", models.RoleMember, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"bob"})
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, CodeNotOrganizationMember, decision.ErrorCode)
}

func TestValidateInactiveActorTreatedAsNonMember(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleOwner, models.MembershipInactive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"alice"})
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, CodeNotOrganizationMember, decision.ErrorCode)
}

func TestValidateRejectsNonMemberTargetsAllOrNothing(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleOwner, models.MembershipActive)
	resolver.add("org-1", "bob", models.RoleMember, models.MembershipActive)
	resolver.add("org-1", "dave", models.RoleMember, models.MembershipInactive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", []string{"bob", "carol", "dave", "carol"})
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, CodeInvalidAssignment, decision.ErrorCode)
	assert.Equal(t, []string{"carol", "dave"}, decision.InvalidUsers)
}

func TestValidateEmptyTargets(t *testing.T) {
	resolver := newFakeResolver()
	resolver.add("org-1", "alice", models.RoleViewer, models.MembershipActive)

	v := NewValidator(resolver)
	decision, err := v.Validate(context.Background(), "org-1", "alice", nil)
	require.NoError(t, err)
	assert.True(t, decision.Valid)
}

func TestValidateResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("connection reset")}

	v := NewValidator(resolver)
	_, err := v.Validate(context.Background(), "org-1", "alice", []string{"bob"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMembershipResolution)
}
