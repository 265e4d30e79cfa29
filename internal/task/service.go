package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/metrics"
	"github.com/adilbek/sisyphus/internal/reset"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// taskStore abstracts the persistence layer.
type taskStore interface {
	List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Task, error)
	Counts(ctx context.Context, userID uuid.UUID, filter ListFilter) (total, completed int, err error)
	Get(ctx context.Context, userID, taskID uuid.UUID) (Task, error)
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
	Toggle(ctx context.Context, userID, taskID uuid.UUID, now time.Time) (Task, error)
	PurgeCompleted(ctx context.Context, userID uuid.UUID) (int64, error)
	BulkComplete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, now time.Time) (int64, error)
	BulkDelete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	BulkSetPriority(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, priority Priority) (int64, error)
	Categories(ctx context.Context, userID uuid.UUID) ([]string, error)
	RevokeCompletions(ctx context.Context, userID uuid.UUID, completedBefore, dueCutoff, now time.Time) (int64, error)
}

// Service encapsulates task use cases, including the daily-reset
// classification of the today view.
type Service struct {
	store   taskStore
	cache   TodayCache
	nowFunc func() time.Time
}

// NewService creates a Service with dependencies. cache may be nil when the
// cache layer is disabled.
func NewService(store taskStore, cache TodayCache) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		nowFunc: time.Now,
	}
}

// CreateInput carries data for task creation.
type CreateInput struct {
	Title       string
	Description *string
	Priority    *string
	Category    *string
	DueDate     *time.Time
}

// UpdateInput carries partial updates; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	IsCompleted *bool
	Priority    *string
	Category    *string
	DueDate     *time.Time
}

// ListOptions narrows List results.
type ListOptions struct {
	Completed *bool
	Priority  *string
	Category  *string
	DueDate   *time.Time
	Overdue   *bool
	Limit     int
	Offset    int
}

// List returns a filtered, paginated task page with totals.
func (s *Service) List(ctx context.Context, userID uuid.UUID, opts ListOptions) (ListResult, error) {
	filter, err := s.buildFilter(opts)
	if err != nil {
		return ListResult{}, err
	}

	tasks, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return ListResult{}, err
	}
	total, completed, err := s.store.Counts(ctx, userID, filter)
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Tasks:     tasks,
		Total:     total,
		Completed: completed,
		Pending:   total - completed,
	}, nil
}

// Overdue returns all overdue tasks for the user.
func (s *Service) Overdue(ctx context.Context, userID uuid.UUID) (ListResult, error) {
	overdue := true
	return s.List(ctx, userID, ListOptions{Overdue: &overdue})
}

// Get fetches one task.
func (s *Service) Get(ctx context.Context, userID, taskID uuid.UUID) (Task, error) {
	return s.store.Get(ctx, userID, taskID)
}

// Create validates input and persists a new task.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}

	priority := PriorityMedium
	if input.Priority != nil {
		parsed, err := ParsePriority(*input.Priority)
		if err != nil {
			return Task{}, err
		}
		priority = parsed
	}

	created, err := s.store.Create(ctx, Task{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Priority:    priority,
		Category:    input.Category,
		DueDate:     normalizeDueDate(input.DueDate),
	})
	if err != nil {
		return Task{}, err
	}

	s.invalidate(ctx, userID)
	return created, nil
}

// Update applies a partial update. Completion transitions manage
// completed_at: set on the transition to completed, cleared when the task
// becomes incomplete.
func (s *Service) Update(ctx context.Context, userID, taskID uuid.UUID, input UpdateInput) (Task, error) {
	existing, err := s.store.Get(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return Task{}, ErrEmptyTitle
		}
		existing.Title = title
	}
	if input.Description != nil {
		existing.Description = input.Description
	}
	if input.Priority != nil {
		priority, err := ParsePriority(*input.Priority)
		if err != nil {
			return Task{}, err
		}
		existing.Priority = priority
	}
	if input.Category != nil {
		existing.Category = input.Category
	}
	if input.DueDate != nil {
		existing.DueDate = normalizeDueDate(input.DueDate)
	}
	if input.IsCompleted != nil {
		switch {
		case *input.IsCompleted && !existing.IsCompleted:
			now := s.nowFunc().UTC()
			existing.IsCompleted = true
			existing.CompletedAt = &now
		case !*input.IsCompleted:
			existing.IsCompleted = false
			existing.CompletedAt = nil
		}
	}

	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		return Task{}, err
	}

	s.invalidate(ctx, userID)
	return updated, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	if err := s.store.Delete(ctx, userID, taskID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Toggle flips a task's completion status.
func (s *Service) Toggle(ctx context.Context, userID, taskID uuid.UUID) (Task, error) {
	t, err := s.store.Toggle(ctx, userID, taskID, s.nowFunc().UTC())
	if err != nil {
		return Task{}, err
	}
	s.invalidate(ctx, userID)
	return t, nil
}

// PurgeCompleted deletes all completed tasks.
func (s *Service) PurgeCompleted(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.PurgeCompleted(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// BulkComplete marks the given tasks completed.
func (s *Service) BulkComplete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoTaskIDs
	}
	n, err := s.store.BulkComplete(ctx, userID, ids, s.nowFunc().UTC())
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// BulkDelete removes the given tasks.
func (s *Service) BulkDelete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoTaskIDs
	}
	n, err := s.store.BulkDelete(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// BulkSetPriority updates the priority of the given tasks.
func (s *Service) BulkSetPriority(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, priority string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoTaskIDs
	}
	parsed, err := ParsePriority(priority)
	if err != nil {
		return 0, err
	}
	n, err := s.store.BulkSetPriority(ctx, userID, ids, parsed)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// Categories lists the user's distinct categories.
func (s *Service) Categories(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.store.Categories(ctx, userID)
}

// TasksForToday resolves the user's current reset window, applies any due
// completion revocations, and returns every task classified against the
// window. The clock is read once so all tasks in the pass see the same
// instant.
func (s *Service) TasksForToday(ctx context.Context, user auth.User) ([]ClassifiedTask, reset.Window, error) {
	now := s.nowFunc().UTC()
	window := reset.WindowFor(user.ResetHour, user.ResetMinute, now)

	if s.cache != nil {
		if items, ok := s.cache.GetToday(ctx, user.ID, window.Start); ok {
			return items, window, nil
		}
	}

	tasks, err := s.store.List(ctx, user.ID, ListFilter{})
	if err != nil {
		return nil, reset.Window{}, err
	}

	items := make([]ClassifiedTask, 0, len(tasks))
	var resetCount int
	for _, t := range tasks {
		status := reset.Classify(t.State(), window, now)
		if status == reset.StatusReset {
			// Lazy application of the daily reset: the task re-enters the
			// new window as incomplete.
			t.IsCompleted = false
			t.CompletedAt = nil
			status = reset.StatusActive
			resetCount++
		}
		items = append(items, ClassifiedTask{Task: t, Status: status})
	}

	if resetCount > 0 {
		if _, err := s.store.RevokeCompletions(ctx, user.ID, window.Start, reset.DayOf(now), now); err != nil {
			return nil, reset.Window{}, fmt.Errorf("apply daily reset: %w", err)
		}
		metrics.TasksReset.Add(float64(resetCount))
	}

	if s.cache != nil {
		s.cache.SetToday(ctx, user.ID, window.Start, items)
	}
	return items, window, nil
}

// IsOverdue reports whether a task is overdue right now.
func (s *Service) IsOverdue(t Task) bool {
	return reset.IsOverdue(t.State(), s.nowFunc())
}

// ApplyDueResets applies the batch variant of the daily reset for one user.
// Used by the background sweep; agrees with the lazy path because both use
// the same window resolution and revocation predicate.
func (s *Service) ApplyDueResets(ctx context.Context, user auth.User, now time.Time) (int64, error) {
	now = now.UTC()
	window := reset.WindowFor(user.ResetHour, user.ResetMinute, now)

	n, err := s.store.RevokeCompletions(ctx, user.ID, window.Start, reset.DayOf(now), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TasksReset.Add(float64(n))
		s.invalidate(ctx, user.ID)
	}
	return n, nil
}

func (s *Service) buildFilter(opts ListOptions) (ListFilter, error) {
	filter := ListFilter{
		Completed: opts.Completed,
		Category:  opts.Category,
		DueDate:   normalizeDueDate(opts.DueDate),
		Overdue:   opts.Overdue,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	if opts.Priority != nil {
		priority, err := ParsePriority(*opts.Priority)
		if err != nil {
			return ListFilter{}, err
		}
		filter.Priority = &priority
	}
	if opts.Overdue != nil {
		filter.Today = reset.DayOf(s.nowFunc())
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return filter, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

func normalizeDueDate(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	day := reset.DayOf(*d)
	return &day
}
