package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user. ResetHour/ResetMinute anchor the
// user's daily task reset and are interpreted as UTC.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	FullName     *string
	PasswordHash string
	IsActive     bool
	ResetHour    int
	ResetMinute  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser removes sensitive fields for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// TokenPair bundles access and refresh tokens.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// RotationOutcome reports the result of the conditional revoke executed
// during a refresh exchange.
type RotationOutcome int

const (
	// RotationOK means the presented token was valid and is now revoked.
	RotationOK RotationOutcome = iota
	// RotationNotFound means no record exists for the token.
	RotationNotFound
	// RotationReused means the token exists but was already exchanged.
	RotationReused
	// RotationExpired means the token exists but its expiry has passed.
	RotationExpired
)
