package task

import "errors"

var (
	// ErrTaskNotFound signals the task does not exist or belongs to
	// another user.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidPriority is returned for priorities outside low/medium/high.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrEmptyTitle rejects tasks without a title.
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrNoTaskIDs rejects bulk operations with an empty id list.
	ErrNoTaskIDs = errors.New("no task ids provided")
	// ErrSomeTasksNotFound is returned when a bulk operation references
	// tasks that do not exist or are not owned by the caller.
	ErrSomeTasksNotFound = errors.New("some tasks not found")
)
