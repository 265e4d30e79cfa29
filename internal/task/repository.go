package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// Repository provides database access for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, user_id, title, description, is_completed, priority, category, due_date, created_at, updated_at, completed_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.IsCompleted,
		&t.Priority,
		&t.Category,
		&t.DueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	return t, err
}

func buildFilter(userID uuid.UUID, filter ListFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Completed != nil {
		add("is_completed = $%d", *filter.Completed)
	}
	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.Category != nil {
		add("category = $%d", *filter.Category)
	}
	if filter.DueDate != nil {
		add("due_date = $%d", *filter.DueDate)
	}
	if filter.Overdue != nil {
		if *filter.Overdue {
			add("due_date < $%d AND NOT is_completed", filter.Today)
		} else {
			add("(due_date IS NULL OR due_date >= $%d OR is_completed)", filter.Today)
		}
	}

	return strings.Join(clauses, " AND "), args
}

// List returns tasks matching the filter, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	where, args := buildFilter(userID, filter)
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Counts returns the total and completed counts over the filtered set,
// ignoring pagination.
func (r *Repository) Counts(ctx context.Context, userID uuid.UUID, filter ListFilter) (total, completed int, err error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	where, args := buildFilter(userID, filter)
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_completed) FROM tasks WHERE ` + where

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, completed, nil
}

// Get fetches a single task owned by the user.
func (r *Repository) Get(ctx context.Context, userID, taskID uuid.UUID) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	t, err := scanTask(r.pool.QueryRow(ctx, query, taskID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Create persists a new task.
func (r *Repository) Create(ctx context.Context, t Task) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO tasks (user_id, title, description, priority, category, due_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + taskColumns + `;`

	created, err := scanTask(r.pool.QueryRow(ctx, query, t.UserID, t.Title, t.Description, t.Priority, t.Category, t.DueDate))
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// Update persists the mutable fields of a task.
func (r *Repository) Update(ctx context.Context, t Task) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE tasks
SET title = $3, description = $4, is_completed = $5, priority = $6,
    category = $7, due_date = $8, completed_at = $9, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING ` + taskColumns + `;`

	updated, err := scanTask(r.pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.Title, t.Description, t.IsCompleted, t.Priority, t.Category, t.DueDate, t.CompletedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

// Delete removes a task owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Toggle flips the completion flag in a single statement so the flag and
// completed_at cannot drift apart under concurrent toggles.
func (r *Repository) Toggle(ctx context.Context, userID, taskID uuid.UUID, now time.Time) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE tasks
SET is_completed = NOT is_completed,
    completed_at = CASE WHEN is_completed THEN NULL ELSE $3 END,
    updated_at = $3
WHERE id = $1 AND user_id = $2
RETURNING ` + taskColumns + `;`

	t, err := scanTask(r.pool.QueryRow(ctx, query, taskID, userID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}
	return t, nil
}

// PurgeCompleted deletes every completed task for the user.
func (r *Repository) PurgeCompleted(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1 AND is_completed`, userID)
	if err != nil {
		return 0, fmt.Errorf("purge completed tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) verifyOwnership(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND id = ANY($2)`, userID, ids).Scan(&count)
	if err != nil {
		return fmt.Errorf("verify task ownership: %w", err)
	}
	if count != len(ids) {
		return ErrSomeTasksNotFound
	}
	return nil
}

// BulkComplete marks the given tasks completed. Already-completed tasks are
// left untouched so their completed_at stays put.
func (r *Repository) BulkComplete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := r.verifyOwnership(ctx, userID, ids); err != nil {
		return 0, err
	}

	query := `
UPDATE tasks
SET is_completed = TRUE, completed_at = $3, updated_at = $3
WHERE user_id = $1 AND id = ANY($2) AND NOT is_completed`

	tag, err := r.pool.Exec(ctx, query, userID, ids, now)
	if err != nil {
		return 0, fmt.Errorf("bulk complete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkDelete removes the given tasks.
func (r *Repository) BulkDelete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := r.verifyOwnership(ctx, userID, ids); err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkSetPriority updates the priority for the given tasks.
func (r *Repository) BulkSetPriority(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, priority Priority) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := r.verifyOwnership(ctx, userID, ids); err != nil {
		return 0, err
	}

	query := `
UPDATE tasks
SET priority = $3, updated_at = NOW()
WHERE user_id = $1 AND id = ANY($2) AND priority <> $3`

	tag, err := r.pool.Exec(ctx, query, userID, ids, priority)
	if err != nil {
		return 0, fmt.Errorf("bulk set priority: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Categories lists the user's distinct non-empty categories.
func (r *Repository) Categories(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT category FROM tasks WHERE user_id = $1 AND category IS NOT NULL ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// RevokeCompletions clears the completion of tasks completed before the
// window start, except those with a still-pending due date. One UPDATE
// covers the whole predicate so the lazy path and the sweep cannot disagree
// about the same rows.
func (r *Repository) RevokeCompletions(ctx context.Context, userID uuid.UUID, completedBefore, dueCutoff, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE tasks
SET is_completed = FALSE, completed_at = NULL, updated_at = $4
WHERE user_id = $1 AND is_completed AND completed_at < $2
  AND (due_date IS NULL OR due_date < $3)`

	tag, err := r.pool.Exec(ctx, query, userID, completedBefore, dueCutoff, now)
	if err != nil {
		return 0, fmt.Errorf("revoke completions: %w", err)
	}
	return tag.RowsAffected(), nil
}
