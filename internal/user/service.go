package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/google/uuid"
)

// profileStore abstracts the persistence layer.
type profileStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (auth.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email, username *string, fullName *string) (auth.User, error)
	UpdateResetTime(ctx context.Context, id uuid.UUID, hour, minute int) (auth.User, error)
	ListUsers(ctx context.Context) ([]auth.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service encapsulates profile use cases, including the per-user reset time
// that anchors the daily task reset.
type Service struct {
	store profileStore
}

// NewService creates a Service with dependencies.
func NewService(store profileStore) *Service {
	return &Service{store: store}
}

// UpdateProfileInput carries partial profile updates; nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Email    *string
	Username *string
	FullName *string
}

// GetProfile loads a user profile.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (auth.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return auth.User{}, err
	}
	return user.SafeUser(), nil
}

// UpdateProfile applies a partial profile update. Email and username
// uniqueness is enforced by the store.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (auth.User, error) {
	if input.Email == nil && input.Username == nil && input.FullName == nil {
		return auth.User{}, ErrNothingToUpdate
	}
	if input.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.Email))
		input.Email = &normalized
	}
	if input.Username != nil {
		trimmed := strings.TrimSpace(*input.Username)
		if trimmed == "" {
			return auth.User{}, fmt.Errorf("username must not be empty")
		}
		input.Username = &trimmed
	}

	user, err := s.store.UpdateProfile(ctx, id, input.Email, input.Username, input.FullName)
	if err != nil {
		return auth.User{}, err
	}
	return user.SafeUser(), nil
}

// UpdateResetTime validates and stores the user's daily reset time. Range
// validation lives here, at the point the value is set, so window
// resolution never has to revalidate.
func (s *Service) UpdateResetTime(ctx context.Context, id uuid.UUID, hour, minute int) (auth.User, error) {
	if hour < 0 || hour > 23 {
		return auth.User{}, ErrInvalidResetHour
	}
	if minute < 0 || minute > 59 {
		return auth.User{}, ErrInvalidResetMinute
	}

	user, err := s.store.UpdateResetTime(ctx, id, hour, minute)
	if err != nil {
		return auth.User{}, err
	}
	return user.SafeUser(), nil
}

// ListUsers returns every user; used by the reset sweep.
func (s *Service) ListUsers(ctx context.Context) ([]auth.User, error) {
	return s.store.ListUsers(ctx)
}

// DeleteAccount removes the user and, via the schema's cascade, all of
// their tasks and refresh tokens.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}
