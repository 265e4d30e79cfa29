package user

import "errors"

var (
	// ErrInvalidResetHour rejects reset hours outside 0-23.
	ErrInvalidResetHour = errors.New("reset hour must be between 0 and 23")
	// ErrInvalidResetMinute rejects reset minutes outside 0-59.
	ErrInvalidResetMinute = errors.New("reset minute must be between 0 and 59")
	// ErrNothingToUpdate rejects profile updates with no fields set.
	ErrNothingToUpdate = errors.New("nothing to update")
)
