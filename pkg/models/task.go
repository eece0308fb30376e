package models

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskArchived   TaskStatus = "archived"
)

// Task is a card on a project board. DurationEstimate is in hours and
// optional; scheduling treats a missing estimate as zero.
type Task struct {
	ID               string     `json:"id" db:"id"`
	ProjectID        string     `json:"project_id" db:"project_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description,omitempty" db:"description"`
	Priority         string     `json:"priority,omitempty" db:"priority"`
	Status           TaskStatus `json:"status" db:"status"`
	DurationEstimate *float64   `json:"duration_estimate,omitempty" db:"duration_estimate"`
	Position         int        `json:"position" db:"position"`
	DueDate          *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedBy        string     `json:"created_by" db:"created_by"`
	AssignedTo       []string   `json:"assigned_to,omitempty" db:"-"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentDeclined AssignmentStatus = "declined"
)

// TaskAssignment links a task to one assignee with an acceptance workflow
type TaskAssignment struct {
	ID         string           `json:"id" db:"id"`
	TaskID     string           `json:"task_id" db:"task_id"`
	UserID     string           `json:"user_id" db:"user_id"`
	AssignedBy string           `json:"assigned_by" db:"assigned_by"`
	Status     AssignmentStatus `json:"status" db:"status"`
	AssignedAt time.Time        `json:"assigned_at" db:"assigned_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
}
