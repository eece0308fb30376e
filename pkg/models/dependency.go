package models

import "time"

// TaskDependency is a finish-to-start edge: the successor task may not
// start before the predecessor finishes.
type TaskDependency struct {
	ID                string    `json:"id" db:"id"`
	ProjectID         string    `json:"project_id" db:"project_id"`
	PredecessorTaskID string    `json:"predecessor_task_id" db:"predecessor_task_id"`
	SuccessorTaskID   string    `json:"successor_task_id" db:"successor_task_id"`
	CreatedBy         string    `json:"created_by" db:"created_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
