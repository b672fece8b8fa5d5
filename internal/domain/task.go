package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "NotStarted"
	TaskStatusInProgress TaskStatus = "InProgress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusBlocked    TaskStatus = "Blocked"
	TaskStatusCancelled  TaskStatus = "Cancelled"
)

// TaskStatuses lists every valid status in declaration order.
var TaskStatuses = []TaskStatus{
	TaskStatusNotStarted,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusBlocked,
	TaskStatusCancelled,
}

// ParseTaskStatus converts a symbolic name into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range TaskStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown task status %q", s)}
}

// IsClosed reports whether s is Completed or Cancelled.
func (s TaskStatus) IsClosed() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task represents a unit of work within a project.
type Task struct {
	ID             uuid.UUID  `db:"id"`
	ProjectID      uuid.UUID  `db:"project_id"`
	Title          string     `db:"title"`
	Description    *string    `db:"description"`
	AssignedUserID uuid.UUID  `db:"assigned_user_id"`
	Status         TaskStatus `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
}

// CanEdit reports whether userID may change the task's content or status:
// the assignee or the owner of the parent project.
func (t Task) CanEdit(project Project, userID uuid.UUID) bool {
	return t.AssignedUserID == userID || project.IsOwner(userID)
}

// Clone returns a copy of the task that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	return out
}
