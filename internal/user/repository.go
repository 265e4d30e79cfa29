package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// Repository provides database access for user profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, username, password_hash, full_name, is_active, reset_hour, reset_minute, created_at, updated_at`

func scanUser(row pgx.Row) (auth.User, error) {
	var user auth.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.IsActive,
		&user.ResetHour,
		&user.ResetMinute,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// FindByID fetches a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfile updates the nullable subset of profile fields. COALESCE
// keeps unset fields untouched.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, email, username, fullName *string) (auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET email = COALESCE($2, email),
    username = COALESCE($3, username),
    full_name = COALESCE($4, full_name),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, email, username, fullName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_username_key" {
				return auth.User{}, auth.ErrUsernameAlreadyTaken
			}
			return auth.User{}, auth.ErrEmailAlreadyExists
		}
		return auth.User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// UpdateResetTime stores the user's daily reset time.
func (r *Repository) UpdateResetTime(ctx context.Context, id uuid.UUID, hour, minute int) (auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET reset_hour = $2, reset_minute = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, hour, minute))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("update reset time: %w", err)
	}
	return user, nil
}

// ListUsers returns every active user.
func (r *Repository) ListUsers(ctx context.Context) ([]auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Delete removes a user; tasks and refresh tokens cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
