package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"worksphere-backend/pkg/models"
)

// Assignment error codes. The first two are carried in a Decision; the
// third is the request layer's code for actor-side capability shortfalls
// (a role that cannot create or delete tasks). The frontend keys its
// messaging on these, so changing one is a breaking change.
const (
	CodeInvalidAssignment       = "INVALID_ASSIGNMENT"
	CodeNotOrganizationMember   = "NOT_ORGANIZATION_MEMBER"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
)

// ErrMembershipResolution wraps backend failures while looking up a
// membership. It is distinct from a clean "not a member" outcome, which is
// a valid Decision, not an error.
var ErrMembershipResolution = errors.New("membership resolution failed")

// MembershipResolver answers who holds which role in an organization.
// The database layer implements it; tests substitute an in-memory map.
type MembershipResolver interface {
	ResolveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error)
}

// Decision is the outcome of validating one assignment request. Valid is
// all-or-nothing: a single bad target invalidates the whole request and
// every offending user id is listed in InvalidUsers.
type Decision struct {
	Valid        bool     `json:"valid"`
	ErrorCode    string   `json:"error_code,omitempty"`
	Message      string   `json:"error,omitempty"`
	InvalidUsers []string `json:"invalid_users,omitempty"`
}

// Validator checks task assignment requests against the role registry
type Validator struct {
	resolver MembershipResolver
}

func NewValidator(resolver MembershipResolver) *Validator {
	return &Validator{resolver: resolver}
}

// Validate decides whether actorID may assign a task to every user in
// targets within orgID. A nil error with Decision.Valid == false means the
// request was understood and rejected; an error means we could not decide.
func (v *Validator) Validate(ctx context.Context, orgID, actorID string, targets []string) (*Decision, error) {
	actor, err := v.resolveActive(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return &Decision{
			Valid:     false,
			ErrorCode: CodeNotOrganizationMember,
			Message:   "You are not an active member of this organization",
		}, nil
	}

	caps, err := CapabilitiesFor(actor.Role)
	if err != nil {
		return nil, err
	}

	// Each target is judged on its own; every offender is collected so
	// the caller learns the full list in one pass. Dedupe so one bad
	// user id is reported once.
	seen := make(map[string]bool, len(targets))
	var invalid []string
	for _, target := range targets {
		if seen[target] {
			continue
		}
		seen[target] = true

		if target == actorID {
			if !caps.CanAssignTasksToSelf {
				invalid = append(invalid, target)
			}
			continue
		}
		if !caps.CanAssignTasksToOthers {
			invalid = append(invalid, target)
			continue
		}
		member, err := v.resolveActive(ctx, orgID, target)
		if err != nil {
			return nil, err
		}
		if member == nil {
			invalid = append(invalid, target)
		}
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		msg, err := RestrictionMessage(actor.Role)
		if err != nil {
			return nil, err
		}
		return &Decision{
			Valid:        false,
			ErrorCode:    CodeInvalidAssignment,
			Message:      msg,
			InvalidUsers: invalid,
		}, nil
	}

	return &Decision{Valid: true}, nil
}

// resolveActive returns the membership when it exists and is active,
// nil when the user is not an active member, and an error only when the
// lookup itself failed.
func (v *Validator) resolveActive(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error) {
	membership, err := v.resolver.ResolveMembership(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, models.ErrMembershipNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMembershipResolution, err)
	}
	if membership == nil || !membership.IsActive() {
		return nil, nil
	}
	return membership, nil
}
