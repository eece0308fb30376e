package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"worksphere-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is a map-backed DatabaseInterface used for local
// development and tests. It is safe for concurrent use but nothing
// survives a restart.
type MemoryDatabase struct {
	mu sync.RWMutex

	users       map[string]*models.User
	orgs        map[string]*models.Organization
	memberships map[string]*models.OrganizationMembership // orgID/userID
	invitations map[string]*models.OrganizationInvitation // by ID
	projects    map[string]*models.Project
	tasks       map[string]*models.Task
	assignments map[string]*models.TaskAssignment // taskID/userID
	deps        map[string]*models.TaskDependency // by ID
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:       make(map[string]*models.User),
		orgs:        make(map[string]*models.Organization),
		memberships: make(map[string]*models.OrganizationMembership),
		invitations: make(map[string]*models.OrganizationInvitation),
		projects:    make(map[string]*models.Project),
		tasks:       make(map[string]*models.Task),
		assignments: make(map[string]*models.TaskAssignment),
		deps:        make(map[string]*models.TaskDependency),
	}
}

func membershipKey(orgID, userID string) string { return orgID + "/" + userID }

// ================= Users =================

func (m *MemoryDatabase) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemoryDatabase) UpdateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return models.ErrUserNotFound
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	if user.Avatar != "" {
		existing.Avatar = user.Avatar
	}
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// ================= Organizations & Memberships =================

func (m *MemoryDatabase) CreateOrganization(org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.ID = uuid.NewString()
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	copied := *org
	m.orgs[org.ID] = &copied

	// owner membership
	key := membershipKey(org.ID, org.OwnerID)
	m.memberships[key] = &models.OrganizationMembership{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		UserID:         org.OwnerID,
		Role:           models.RoleOwner,
		Status:         models.MembershipActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (m *MemoryDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return nil, models.ErrOrganizationNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *MemoryDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Organization
	for _, o := range m.orgs {
		if o.OwnerID == userID {
			result = append(result, *o)
			continue
		}
		mem := m.memberships[membershipKey(o.ID, userID)]
		if mem != nil && mem.IsActive() {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryDatabase) UpdateOrganization(org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orgs[org.ID]
	if !ok {
		return models.ErrOrganizationNotFound
	}
	if org.Name != "" {
		existing.Name = org.Name
	}
	if org.Description != "" {
		existing.Description = org.Description
	}
	if org.Avatar != "" {
		existing.Avatar = org.Avatar
	}
	if org.Color != "" {
		existing.Color = org.Color
	}
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDatabase) AddOrganizationMember(mem *models.OrganizationMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem.Status == "" {
		mem.Status = models.MembershipActive
	}
	now := time.Now().UTC()
	key := membershipKey(mem.OrganizationID, mem.UserID)
	if existing, ok := m.memberships[key]; ok {
		existing.Role = mem.Role
		existing.Status = mem.Status
		existing.UpdatedAt = now
		mem.ID = existing.ID
		return nil
	}
	mem.ID = uuid.NewString()
	mem.CreatedAt = now
	mem.UpdatedAt = now
	copied := *mem
	m.memberships[key] = &copied
	return nil
}

func (m *MemoryDatabase) GetOrganizationMember(orgID, userID string) (*models.OrganizationMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memberships[membershipKey(orgID, userID)]
	if !ok {
		return nil, models.ErrMembershipNotFound
	}
	copied := *mem
	return &copied, nil
}

func (m *MemoryDatabase) ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.OrganizationMembership
	for _, mem := range m.memberships {
		if mem.OrganizationID == orgID {
			result = append(result, *mem)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryDatabase) ListOrganizationMemberDetails(orgID string) ([]models.OrganizationMemberDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.OrganizationMemberDetail
	for _, mem := range m.memberships {
		if mem.OrganizationID != orgID {
			continue
		}
		d := models.OrganizationMemberDetail{
			UserID:   mem.UserID,
			Role:     mem.Role,
			Status:   mem.Status,
			JoinedAt: mem.CreatedAt,
		}
		if u, ok := m.users[mem.UserID]; ok {
			d.Email = u.Email
			d.Name = u.Name
			d.Avatar = u.Avatar
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (m *MemoryDatabase) UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memberships[membershipKey(orgID, userID)]
	if !ok {
		return models.ErrMembershipNotFound
	}
	mem.Role = role
	mem.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDatabase) SetMembershipStatus(orgID, userID string, status models.MembershipStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memberships[membershipKey(orgID, userID)]
	if !ok {
		return models.ErrMembershipNotFound
	}
	mem.Status = status
	mem.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDatabase) ResolveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error) {
	return m.GetOrganizationMember(orgID, userID)
}

// ================= Invitations =================

func (m *MemoryDatabase) CreateInvitation(inv *models.OrganizationInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = uuid.NewString()
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	copied := *inv
	m.invitations[inv.ID] = &copied
	return nil
}

func (m *MemoryDatabase) GetInvitationByToken(token string) (*models.OrganizationInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invitations {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, models.ErrInvitationNotFound
}

func (m *MemoryDatabase) ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.OrganizationInvitation
	for _, inv := range m.invitations {
		if strings.EqualFold(inv.Email, email) {
			result = append(result, *inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryDatabase) UpdateInvitation(inv *models.OrganizationInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.invitations[inv.ID]
	if !ok {
		return models.ErrInvitationNotFound
	}
	existing.Status = inv.Status
	existing.AcceptedBy = inv.AcceptedBy
	existing.ExpiresAt = inv.ExpiresAt
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// ================= Projects =================

func (m *MemoryDatabase) CreateProject(p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	copied := *p
	m.projects[p.ID] = &copied
	return nil
}

func (m *MemoryDatabase) GetProject(id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MemoryDatabase) ListProjectsByOrganization(orgID string) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Project
	for _, p := range m.projects {
		if p.OrganizationID == orgID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryDatabase) UpdateProject(p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[p.ID]
	if !ok {
		return models.ErrProjectNotFound
	}
	if p.Name != "" {
		existing.Name = p.Name
	}
	if p.Description != "" {
		existing.Description = p.Description
	}
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDatabase) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return models.ErrProjectNotFound
	}
	delete(m.projects, id)
	// cascade tasks, assignments, dependencies
	for taskID, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, taskID)
			for key, a := range m.assignments {
				if a.TaskID == taskID {
					delete(m.assignments, key)
				}
			}
		}
	}
	for depID, d := range m.deps {
		if d.ProjectID == id {
			delete(m.deps, depID)
		}
	}
	return nil
}

// ================= Tasks =================

func (m *MemoryDatabase) CreateTask(t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	copied := *t
	copied.AssignedTo = nil
	m.tasks[t.ID] = &copied
	return nil
}

func (m *MemoryDatabase) GetTask(id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	copied := *t
	copied.AssignedTo = m.assigneesLocked(id)
	return &copied, nil
}

func (m *MemoryDatabase) ListTasksByProject(projectID string) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Task
	for _, t := range m.tasks {
		if t.ProjectID != projectID {
			continue
		}
		copied := *t
		copied.AssignedTo = m.assigneesLocked(t.ID)
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryDatabase) UpdateTask(t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[t.ID]
	if !ok {
		return models.ErrTaskNotFound
	}
	if t.Title != "" {
		existing.Title = t.Title
	}
	if t.Description != "" {
		existing.Description = t.Description
	}
	if t.Priority != "" {
		existing.Priority = t.Priority
	}
	if t.Status != "" {
		existing.Status = t.Status
	}
	existing.DurationEstimate = t.DurationEstimate
	existing.Position = t.Position
	existing.DueDate = t.DueDate
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDatabase) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return models.ErrTaskNotFound
	}
	delete(m.tasks, id)
	for key, a := range m.assignments {
		if a.TaskID == id {
			delete(m.assignments, key)
		}
	}
	for depID, d := range m.deps {
		if d.PredecessorTaskID == id || d.SuccessorTaskID == id {
			delete(m.deps, depID)
		}
	}
	return nil
}

func (m *MemoryDatabase) assigneesLocked(taskID string) []string {
	var ids []string
	for _, a := range m.assignments {
		if a.TaskID == taskID {
			ids = append(ids, a.UserID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ================= Task Assignments =================

func (m *MemoryDatabase) AssignTask(a *models.TaskAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignLocked(a)
}

// AssignTasks applies the whole batch under one lock. If any row refers to
// an unknown task nothing is written.
func (m *MemoryDatabase) AssignTasks(assignments []*models.TaskAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assignments {
		if _, ok := m.tasks[a.TaskID]; !ok {
			return models.ErrTaskNotFound
		}
	}
	for _, a := range assignments {
		if err := m.assignLocked(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryDatabase) assignLocked(a *models.TaskAssignment) error {
	if a.Status == "" {
		a.Status = models.AssignmentPending
	}
	now := time.Now().UTC()
	key := a.TaskID + "/" + a.UserID
	if existing, ok := m.assignments[key]; ok {
		existing.AssignedBy = a.AssignedBy
		existing.Status = a.Status
		existing.AssignedAt = now
		existing.AcceptedAt = nil
		a.ID = existing.ID
		a.AssignedAt = now
		return nil
	}
	a.ID = uuid.NewString()
	a.AssignedAt = now
	copied := *a
	m.assignments[key] = &copied
	return nil
}

func (m *MemoryDatabase) ListTaskAssignments(taskID string) ([]models.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.TaskAssignment
	for _, a := range m.assignments {
		if a.TaskID == taskID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignedAt.Before(result[j].AssignedAt) })
	return result, nil
}

func (m *MemoryDatabase) ListAssignmentsForUser(userID string) ([]models.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.TaskAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignedAt.After(result[j].AssignedAt) })
	return result, nil
}

func (m *MemoryDatabase) UpdateAssignmentStatus(taskID, userID string, status models.AssignmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[taskID+"/"+userID]
	if !ok {
		return models.ErrAssignmentNotFound
	}
	a.Status = status
	if status == models.AssignmentAccepted {
		now := time.Now().UTC()
		a.AcceptedAt = &now
	}
	return nil
}

// ================= Task Dependencies =================

func (m *MemoryDatabase) CreateDependency(d *models.TaskDependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	copied := *d
	m.deps[d.ID] = &copied
	return nil
}

func (m *MemoryDatabase) GetDependency(id string) (*models.TaskDependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deps[id]
	if !ok {
		return nil, models.ErrDependencyNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *MemoryDatabase) DeleteDependency(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deps[id]; !ok {
		return models.ErrDependencyNotFound
	}
	delete(m.deps, id)
	return nil
}

func (m *MemoryDatabase) ListDependenciesByProject(projectID string) ([]models.TaskDependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.TaskDependency
	for _, d := range m.deps {
		if d.ProjectID == projectID {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryDatabase) ReplaceProjectDependencies(projectID string, deps []models.TaskDependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.deps {
		if d.ProjectID == projectID {
			delete(m.deps, id)
		}
	}
	now := time.Now().UTC()
	for i := range deps {
		d := &deps[i]
		d.ID = uuid.NewString()
		d.ProjectID = projectID
		d.CreatedAt = now
		copied := *d
		m.deps[d.ID] = &copied
	}
	return nil
}

// ================= Health =================

func (m *MemoryDatabase) HealthCheck() error { return nil }

func (m *MemoryDatabase) Close() error { return nil }
