package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// Repository provides database access for authentication concerns.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, username, password_hash, full_name, is_active, reset_hour, reset_minute, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
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

// CreateUser persists a new user record.
func (r *Repository) CreateUser(ctx context.Context, email, username, passwordHash string, fullName *string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO users (email, username, password_hash, full_name)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email, username, passwordHash, fullName))
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_username_key" {
				return User{}, ErrUsernameAlreadyTaken
			}
			return User{}, ErrEmailAlreadyExists
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// FindUserByLogin fetches a user by username or email.
func (r *Repository) FindUserByLogin(ctx context.Context, login string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
SELECT ` + userColumns + `
FROM users
WHERE lower(username) = $1 OR lower(email) = $1;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

// FindUserByID fetches a user by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

// StoreRefreshToken saves a refresh token hash for the user.
func (r *Repository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked_at)
VALUES ($1, $2, $3, NULL)
ON CONFLICT (user_id, token_hash)
DO UPDATE SET expires_at = EXCLUDED.expires_at, revoked_at = NULL, created_at = NOW();`

	if _, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	return nil
}

// RotateRefreshToken atomically revokes a still-valid refresh token and
// returns its owner. The conditional UPDATE is the single point deciding a
// race between concurrent exchanges: whichever statement matches the
// unrevoked row wins, the rest see the revoked record and report reuse.
func (r *Repository) RotateRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, RotationOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE refresh_tokens
SET revoked_at = $2
WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
RETURNING user_id;`

	var userID uuid.UUID
	err := r.pool.QueryRow(ctx, query, tokenHash, now).Scan(&userID)
	if err == nil {
		return userID, RotationOK, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, RotationNotFound, fmt.Errorf("rotate refresh token: %w", err)
	}

	// Lost the conditional update; look at the row to tell why.
	inspect := `
SELECT user_id, revoked_at IS NOT NULL, expires_at <= $2
FROM refresh_tokens
WHERE token_hash = $1;`

	var (
		revoked bool
		expired bool
	)
	err = r.pool.QueryRow(ctx, inspect, tokenHash, now).Scan(&userID, &revoked, &expired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, RotationNotFound, nil
		}
		return uuid.Nil, RotationNotFound, fmt.Errorf("inspect refresh token: %w", err)
	}

	if revoked {
		return userID, RotationReused, nil
	}
	if expired {
		return userID, RotationExpired, nil
	}
	return uuid.Nil, RotationNotFound, nil
}

// RevokeToken marks a refresh token as revoked.
func (r *Repository) RevokeToken(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE refresh_tokens
SET revoked_at = NOW()
WHERE token_hash = $1;`

	if _, err := r.pool.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("revoke token: %w", err)
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
