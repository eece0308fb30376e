package database

import (
	"context"
	"fmt"
	"os"

	"worksphere-backend/pkg/models"
)

// DatabaseInterface is the storage access contract shared by the Postgres
// and in-memory implementations.
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error

	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	ListUserOrganizations(userID string) ([]models.Organization, error)
	UpdateOrganization(org *models.Organization) error

	// Memberships
	AddOrganizationMember(m *models.OrganizationMembership) error
	GetOrganizationMember(orgID, userID string) (*models.OrganizationMembership, error)
	ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error)
	// ListOrganizationMemberDetails joins memberships with user profiles
	// for member pickers and assignment scope listings.
	ListOrganizationMemberDetails(orgID string) ([]models.OrganizationMemberDetail, error)
	UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) error
	SetMembershipStatus(orgID, userID string, status models.MembershipStatus) error
	// ResolveMembership backs the assignment validator. Returns
	// models.ErrMembershipNotFound when no row exists.
	ResolveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error)

	// Invitations
	CreateInvitation(inv *models.OrganizationInvitation) error
	GetInvitationByToken(token string) (*models.OrganizationInvitation, error)
	ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error)
	UpdateInvitation(inv *models.OrganizationInvitation) error

	// Projects
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	ListProjectsByOrganization(orgID string) ([]models.Project, error)
	UpdateProject(p *models.Project) error
	DeleteProject(id string) error

	// Tasks
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListTasksByProject(projectID string) ([]models.Task, error)
	UpdateTask(t *models.Task) error
	DeleteTask(id string) error

	// Task assignments
	AssignTask(a *models.TaskAssignment) error
	// AssignTasks persists the batch atomically. On error no row is written.
	AssignTasks(assignments []*models.TaskAssignment) error
	ListTaskAssignments(taskID string) ([]models.TaskAssignment, error)
	ListAssignmentsForUser(userID string) ([]models.TaskAssignment, error)
	UpdateAssignmentStatus(taskID, userID string, status models.AssignmentStatus) error

	// Task dependencies
	CreateDependency(d *models.TaskDependency) error
	GetDependency(id string) (*models.TaskDependency, error)
	DeleteDependency(id string) error
	ListDependenciesByProject(projectID string) ([]models.TaskDependency, error)
	// ReplaceProjectDependencies swaps a project's whole edge set in one
	// transaction, used by bulk import.
	ReplaceProjectDependencies(projectID string, deps []models.TaskDependency) error

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and parameterizes the storage backend
type DatabaseConfig struct {
	PostgresDSN string
	UseLocalDB  bool
	Debug       bool
}

// NewDatabase picks the storage implementation from the config. Serverless
// deploys must configure Postgres; the in-memory store is for local
// development and tests only.
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.UseLocalDB {
		fmt.Printf("🧪 Using in-memory database (local development mode)\n")
		return NewMemoryDatabase()
	}

	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if isServerlessEnvironment() {
		panic("No valid database configured for serverless environment. Please set POSTGRES_DSN")
	}

	fmt.Printf("⚠️  POSTGRES_DSN not set, falling back to in-memory database\n")
	return NewMemoryDatabase()
}

// isServerlessEnvironment reports whether we run inside Vercel or Lambda
func isServerlessEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
