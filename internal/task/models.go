package task

import (
	"time"

	"github.com/adilbek/sisyphus/internal/reset"
	"github.com/google/uuid"
)

// Priority levels for a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates and normalizes a priority string.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(raw), nil
	}
	return "", ErrInvalidPriority
}

// Task represents a user's task. DueDate is a calendar date stored as
// midnight UTC; CompletedAt is set only on the transition to completed and
// cleared whenever the task becomes incomplete, including by a daily reset.
type Task struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description *string
	IsCompleted bool
	Priority    Priority
	Category    *string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// State projects the task into the classifier's view.
func (t Task) State() reset.TaskState {
	return reset.TaskState{
		Completed:   t.IsCompleted,
		CompletedAt: t.CompletedAt,
		DueDate:     t.DueDate,
	}
}

// ClassifiedTask pairs a task with its status in the current reset window.
type ClassifiedTask struct {
	Task   Task
	Status reset.Status
}

// ListFilter narrows task listings. Nil fields are ignored.
type ListFilter struct {
	Completed *bool
	Priority  *Priority
	Category  *string
	DueDate   *time.Time
	Overdue   *bool
	// Today anchors the overdue comparison; set by the service from its
	// clock so one reading covers the whole query.
	Today  time.Time
	Limit  int
	Offset int
}

// ListResult carries a page of tasks plus totals over the filtered set.
type ListResult struct {
	Tasks     []Task
	Total     int
	Completed int
	Pending   int
}
