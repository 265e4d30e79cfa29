package auth

import "errors"

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrUsernameAlreadyTaken indicates the username is already registered.
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive signals that the account is deactivated.
	ErrUserInactive = errors.New("user inactive")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired is returned when a token's expiry has passed beyond
	// the configured clock-skew leeway. For access tokens this is the only
	// failure a client may recover from via refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned for tokens that cannot be parsed or
	// carry the wrong type claim.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("bad token signature")
	// ErrTokenInvalid is returned for refresh tokens with no matching
	// record. Terminal for the presented token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenReused is returned when a refresh token is presented after it
	// was already exchanged. Single-use rotation treats this as a possible
	// replay.
	ErrTokenReused = errors.New("refresh token reused")
)
