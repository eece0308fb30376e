package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"worksphere-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase implements DatabaseInterface on top of lib/pq
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a connection, trying several DSN variants to
// work around IPv6 issues on Vercel Lambda.
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // raw DSN as the last resort
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// Pool limits sized for serverless workers
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}
	}

	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams appends query parameters to a DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// ================= Users =================

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Avatar).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), COALESCE(password_hash,''), created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.Password, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	_, err := db.db.Exec(`
		UPDATE users
		SET name = COALESCE($1, name),
		    avatar = COALESCE($2, avatar),
		    updated_at = NOW()
		WHERE id = $3
	`, nullIfEmpty(user.Name), nullIfEmpty(user.Avatar), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// ================= Organizations & Memberships =================

func (db *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, owner_id, description, avatar, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, org.Name, org.OwnerID, org.Description, org.Avatar, org.Color).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	// owner membership
	_, err = db.db.Exec(`
		INSERT INTO organization_memberships (organization_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, 'owner', 'active', NOW(), NOW())
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, org.ID, org.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to add owner membership: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	query := `SELECT id, name, owner_id, COALESCE(description,''), COALESCE(avatar,''), COALESCE(color,''), created_at, updated_at FROM organizations WHERE id = $1`
	var o models.Organization
	err := db.db.QueryRow(query, orgID).Scan(&o.ID, &o.Name, &o.OwnerID, &o.Description, &o.Avatar, &o.Color, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

func (db *PostgresDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	query := `
		SELECT DISTINCT o.id, o.name, o.owner_id, COALESCE(o.description,''), COALESCE(o.avatar,''), COALESCE(o.color,''), o.created_at, o.updated_at
		FROM organizations o
		LEFT JOIN organization_memberships m ON m.organization_id = o.id AND m.status = 'active'
		WHERE o.owner_id = $1 OR m.user_id = $1
		ORDER BY o.created_at DESC
	`
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()
	var result []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.OwnerID, &o.Description, &o.Avatar, &o.Color, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateOrganization(org *models.Organization) error {
	_, err := db.db.Exec(`
		UPDATE organizations
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    avatar = COALESCE($3, avatar),
		    color = COALESCE($4, color),
		    updated_at = NOW()
		WHERE id = $5
	`, nullIfEmpty(org.Name), nullIfEmpty(org.Description), nullIfEmpty(org.Avatar), nullIfEmpty(org.Color), org.ID)
	return err
}

func (db *PostgresDatabase) AddOrganizationMember(m *models.OrganizationMembership) error {
	if m.Status == "" {
		m.Status = models.MembershipActive
	}
	query := `
		INSERT INTO organization_memberships (organization_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, updated_at = NOW()
		RETURNING id
	`
	return db.db.QueryRow(query, m.OrganizationID, m.UserID, string(m.Role), string(m.Status)).Scan(&m.ID)
}

func (db *PostgresDatabase) GetOrganizationMember(orgID, userID string) (*models.OrganizationMembership, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, created_at, updated_at
		FROM organization_memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	var m models.OrganizationMembership
	var role, status string
	err := db.db.QueryRow(query, orgID, userID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Role = models.OrgMemberRole(role)
	m.Status = models.MembershipStatus(status)
	return &m, nil
}

func (db *PostgresDatabase) ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, created_at, updated_at
		FROM organization_memberships
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()
	var result []models.OrganizationMembership
	for rows.Next() {
		var m models.OrganizationMembership
		var role, status string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = models.OrgMemberRole(role)
		m.Status = models.MembershipStatus(status)
		result = append(result, m)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) ListOrganizationMemberDetails(orgID string) ([]models.OrganizationMemberDetail, error) {
	query := `
		SELECT m.user_id, u.email, COALESCE(u.name,''), COALESCE(u.avatar,''), m.role, m.status, m.created_at
		FROM organization_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member details: %w", err)
	}
	defer rows.Close()
	var result []models.OrganizationMemberDetail
	for rows.Next() {
		var d models.OrganizationMemberDetail
		var role, status string
		if err := rows.Scan(&d.UserID, &d.Email, &d.Name, &d.Avatar, &role, &status, &d.JoinedAt); err != nil {
			return nil, err
		}
		d.Role = models.OrgMemberRole(role)
		d.Status = models.MembershipStatus(status)
		result = append(result, d)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) error {
	res, err := db.db.Exec(`
		UPDATE organization_memberships SET role = $1, updated_at = NOW()
		WHERE organization_id = $2 AND user_id = $3
	`, string(role), orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrMembershipNotFound
	}
	return nil
}

func (db *PostgresDatabase) SetMembershipStatus(orgID, userID string, status models.MembershipStatus) error {
	res, err := db.db.Exec(`
		UPDATE organization_memberships SET status = $1, updated_at = NOW()
		WHERE organization_id = $2 AND user_id = $3
	`, string(status), orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to set membership status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrMembershipNotFound
	}
	return nil
}

func (db *PostgresDatabase) ResolveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMembership, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, created_at, updated_at
		FROM organization_memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	var m models.OrganizationMembership
	var role, status string
	err := db.db.QueryRowContext(ctx, query, orgID, userID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	m.Role = models.OrgMemberRole(role)
	m.Status = models.MembershipStatus(status)
	return &m, nil
}

// ================= Invitations =================

func (db *PostgresDatabase) CreateInvitation(inv *models.OrganizationInvitation) error {
	query := `
		INSERT INTO organization_invitations (organization_id, email, inviter_id, role, token, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return db.db.QueryRow(query, inv.OrganizationID, inv.Email, inv.InviterID, string(inv.Role), inv.Token, string(inv.Status), inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

func (db *PostgresDatabase) GetInvitationByToken(token string) (*models.OrganizationInvitation, error) {
	var inv models.OrganizationInvitation
	var role, status string
	err := db.db.QueryRow(`
		SELECT id, organization_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM organization_invitations WHERE token = $1
	`, token).Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.InviterID, &role, &inv.Token, &status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	inv.Role = models.OrgMemberRole(role)
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (db *PostgresDatabase) ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error) {
	rows, err := db.db.Query(`
		SELECT id, organization_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM organization_invitations WHERE email = $1 ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()
	var list []models.OrganizationInvitation
	for rows.Next() {
		var inv models.OrganizationInvitation
		var role, status string
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.InviterID, &role, &inv.Token, &status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Role = models.OrgMemberRole(role)
		inv.Status = models.InvitationStatus(status)
		list = append(list, inv)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) UpdateInvitation(inv *models.OrganizationInvitation) error {
	_, err := db.db.Exec(`
		UPDATE organization_invitations SET status=$1, accepted_by=$2, expires_at=$3, updated_at=NOW() WHERE id=$4
	`, string(inv.Status), inv.AcceptedBy, inv.ExpiresAt, inv.ID)
	return err
}

// ================= Projects =================

func (db *PostgresDatabase) CreateProject(p *models.Project) error {
	query := `
		INSERT INTO projects (organization_id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return db.db.QueryRow(query, p.OrganizationID, p.Name, p.Description, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (db *PostgresDatabase) GetProject(id string) (*models.Project, error) {
	var p models.Project
	err := db.db.QueryRow(`SELECT id, organization_id, name, COALESCE(description,''), created_by, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (db *PostgresDatabase) ListProjectsByOrganization(orgID string) ([]models.Project, error) {
	rows, err := db.db.Query(`SELECT id, organization_id, name, COALESCE(description,''), created_by, created_at, updated_at FROM projects WHERE organization_id = $1 ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()
	var result []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateProject(p *models.Project) error {
	_, err := db.db.Exec(`
		UPDATE projects SET name = COALESCE($1, name), description = COALESCE($2, description), updated_at = NOW() WHERE id = $3
	`, nullIfEmpty(p.Name), nullIfEmpty(p.Description), p.ID)
	return err
}

func (db *PostgresDatabase) DeleteProject(id string) error {
	res, err := db.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

// ================= Tasks =================

func (db *PostgresDatabase) CreateTask(t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	query := `
		INSERT INTO tasks (project_id, title, description, priority, status, duration_estimate, position, due_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7,0), $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return db.db.QueryRow(query, t.ProjectID, t.Title, t.Description, t.Priority, string(t.Status), t.DurationEstimate, t.Position, t.DueDate, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (db *PostgresDatabase) GetTask(id string) (*models.Task, error) {
	var t models.Task
	var status string
	err := db.db.QueryRow(`
		SELECT id, project_id, title, COALESCE(description,''), COALESCE(priority,''), status, duration_estimate, position, due_date, created_by, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &status, &t.DurationEstimate, &t.Position, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t.Status = models.TaskStatus(status)
	if err := db.loadAssignees(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *PostgresDatabase) ListTasksByProject(projectID string) ([]models.Task, error) {
	rows, err := db.db.Query(`
		SELECT t.id, t.project_id, t.title, COALESCE(t.description,''), COALESCE(t.priority,''), t.status, t.duration_estimate, t.position, t.due_date, t.created_by, t.created_at, t.updated_at,
		       COALESCE(array_agg(a.user_id ORDER BY a.user_id) FILTER (WHERE a.user_id IS NOT NULL), '{}')
		FROM tasks t
		LEFT JOIN task_assignments a ON a.task_id = t.id
		WHERE t.project_id = $1
		GROUP BY t.id
		ORDER BY t.position ASC, t.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	var list []models.Task
	for rows.Next() {
		var t models.Task
		var status string
		var assignees pq.StringArray
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &status, &t.DurationEstimate, &t.Position, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &assignees); err != nil {
			return nil, err
		}
		t.Status = models.TaskStatus(status)
		t.AssignedTo = []string(assignees)
		list = append(list, t)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) UpdateTask(t *models.Task) error {
	_, err := db.db.Exec(`
		UPDATE tasks
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    priority = COALESCE($3, priority),
		    status = COALESCE($4, status),
		    duration_estimate = $5,
		    position = $6,
		    due_date = $7,
		    updated_at = NOW()
		WHERE id = $8
	`, nullIfEmpty(t.Title), nullIfEmpty(t.Description), nullIfEmpty(t.Priority), nullIfEmpty(string(t.Status)), t.DurationEstimate, t.Position, t.DueDate, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteTask(id string) error {
	res, err := db.db.Exec(`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

func (db *PostgresDatabase) loadAssignees(t *models.Task) error {
	rows, err := db.db.Query(`SELECT user_id FROM task_assignments WHERE task_id = $1 ORDER BY user_id`, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return err
		}
		t.AssignedTo = append(t.AssignedTo, userID)
	}
	return rows.Err()
}

// ================= Task Assignments =================

func (db *PostgresDatabase) AssignTask(a *models.TaskAssignment) error {
	if a.Status == "" {
		a.Status = models.AssignmentPending
	}
	query := `
		INSERT INTO task_assignments (task_id, user_id, assigned_by, status, assigned_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (task_id, user_id) DO UPDATE SET assigned_by = EXCLUDED.assigned_by, status = EXCLUDED.status, assigned_at = NOW(), accepted_at = NULL
		RETURNING id, assigned_at
	`
	return db.db.QueryRow(query, a.TaskID, a.UserID, a.AssignedBy, string(a.Status)).Scan(&a.ID, &a.AssignedAt)
}

// AssignTasks persists a batch of assignments in one transaction. Either every
// row lands or none of them do.
func (db *PostgresDatabase) AssignTasks(assignments []*models.TaskAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if a.Status == "" {
			a.Status = models.AssignmentPending
		}
		err := tx.QueryRow(`
			INSERT INTO task_assignments (task_id, user_id, assigned_by, status, assigned_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (task_id, user_id) DO UPDATE SET assigned_by = EXCLUDED.assigned_by, status = EXCLUDED.status, assigned_at = NOW(), accepted_at = NULL
			RETURNING id, assigned_at
		`, a.TaskID, a.UserID, a.AssignedBy, string(a.Status)).Scan(&a.ID, &a.AssignedAt)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to assign task %s to %s: %w", a.TaskID, a.UserID, err)
		}
	}
	return tx.Commit()
}

func (db *PostgresDatabase) ListTaskAssignments(taskID string) ([]models.TaskAssignment, error) {
	rows, err := db.db.Query(`
		SELECT id, task_id, user_id, assigned_by, status, assigned_at, accepted_at
		FROM task_assignments WHERE task_id = $1 ORDER BY assigned_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (db *PostgresDatabase) ListAssignmentsForUser(userID string) ([]models.TaskAssignment, error) {
	rows, err := db.db.Query(`
		SELECT id, task_id, user_id, assigned_by, status, assigned_at, accepted_at
		FROM task_assignments WHERE user_id = $1 ORDER BY assigned_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for user: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows *sql.Rows) ([]models.TaskAssignment, error) {
	var list []models.TaskAssignment
	for rows.Next() {
		var a models.TaskAssignment
		var status string
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UserID, &a.AssignedBy, &status, &a.AssignedAt, &a.AcceptedAt); err != nil {
			return nil, err
		}
		a.Status = models.AssignmentStatus(status)
		list = append(list, a)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) UpdateAssignmentStatus(taskID, userID string, status models.AssignmentStatus) error {
	query := `
		UPDATE task_assignments
		SET status = $1,
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END
		WHERE task_id = $2 AND user_id = $3
	`
	res, err := db.db.Exec(query, string(status), taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrAssignmentNotFound
	}
	return nil
}

// ================= Task Dependencies =================

func (db *PostgresDatabase) CreateDependency(d *models.TaskDependency) error {
	query := `
		INSERT INTO task_dependencies (project_id, predecessor_task_id, successor_task_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	return db.db.QueryRow(query, d.ProjectID, d.PredecessorTaskID, d.SuccessorTaskID, d.CreatedBy).
		Scan(&d.ID, &d.CreatedAt)
}

func (db *PostgresDatabase) GetDependency(id string) (*models.TaskDependency, error) {
	var d models.TaskDependency
	err := db.db.QueryRow(`
		SELECT id, project_id, predecessor_task_id, successor_task_id, created_by, created_at
		FROM task_dependencies WHERE id = $1
	`, id).Scan(&d.ID, &d.ProjectID, &d.PredecessorTaskID, &d.SuccessorTaskID, &d.CreatedBy, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrDependencyNotFound
		}
		return nil, fmt.Errorf("failed to get dependency: %w", err)
	}
	return &d, nil
}

func (db *PostgresDatabase) DeleteDependency(id string) error {
	res, err := db.db.Exec(`DELETE FROM task_dependencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrDependencyNotFound
	}
	return nil
}

func (db *PostgresDatabase) ListDependenciesByProject(projectID string) ([]models.TaskDependency, error) {
	rows, err := db.db.Query(`
		SELECT id, project_id, predecessor_task_id, successor_task_id, created_by, created_at
		FROM task_dependencies WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()
	var list []models.TaskDependency
	for rows.Next() {
		var d models.TaskDependency
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.PredecessorTaskID, &d.SuccessorTaskID, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) ReplaceProjectDependencies(projectID string, deps []models.TaskDependency) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE project_id = $1`, projectID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear dependencies: %w", err)
	}
	for i := range deps {
		d := &deps[i]
		err := tx.QueryRow(`
			INSERT INTO task_dependencies (project_id, predecessor_task_id, successor_task_id, created_by, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, created_at
		`, projectID, d.PredecessorTaskID, d.SuccessorTaskID, d.CreatedBy).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert dependency: %w", err)
		}
	}
	return tx.Commit()
}

// ================= Health =================

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
