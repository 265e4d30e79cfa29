package user

import (
	"context"
	"errors"
	"testing"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/google/uuid"
)

func TestUpdateResetTimeValidation(t *testing.T) {
	store := newMemoryProfileStore()
	service := NewService(store)
	user := store.seed("sisyphus", "user@example.com")

	cases := []struct {
		name    string
		hour    int
		minute  int
		wantErr error
	}{
		{"valid midnight", 0, 0, nil},
		{"valid evening", 23, 59, nil},
		{"hour too large", 24, 0, ErrInvalidResetHour},
		{"hour negative", -1, 0, ErrInvalidResetHour},
		{"minute too large", 12, 60, ErrInvalidResetMinute},
		{"minute negative", 12, -1, ErrInvalidResetMinute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updated, err := service.UpdateResetTime(context.Background(), user.ID, tc.hour, tc.minute)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.ResetHour != tc.hour || updated.ResetMinute != tc.minute {
				t.Fatalf("reset time = %02d:%02d, want %02d:%02d",
					updated.ResetHour, updated.ResetMinute, tc.hour, tc.minute)
			}
		})
	}
}

func TestUpdateProfileRequiresFields(t *testing.T) {
	store := newMemoryProfileStore()
	service := NewService(store)
	user := store.seed("sisyphus", "user@example.com")

	if _, err := service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{}); !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
}

func TestUpdateProfileNormalizesEmail(t *testing.T) {
	store := newMemoryProfileStore()
	service := NewService(store)
	user := store.seed("sisyphus", "user@example.com")

	email := "  New@Example.COM "
	updated, err := service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{Email: &email})
	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Fatalf("email = %q, want lowercased and trimmed", updated.Email)
	}
	if updated.PasswordHash != "" {
		t.Fatalf("expected password hash stripped from response")
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	service := NewService(newMemoryProfileStore())

	_, err := service.GetProfile(context.Background(), uuid.New())
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// memoryProfileStore implements profileStore for tests.
type memoryProfileStore struct {
	users map[uuid.UUID]auth.User
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{users: make(map[uuid.UUID]auth.User)}
}

func (m *memoryProfileStore) seed(username, email string) auth.User {
	user := auth.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: "hash",
		IsActive:     true,
	}
	m.users[user.ID] = user
	return user
}

func (m *memoryProfileStore) FindByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryProfileStore) UpdateProfile(ctx context.Context, id uuid.UUID, email, username, fullName *string) (auth.User, error) {
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	if email != nil {
		user.Email = *email
	}
	if username != nil {
		user.Username = *username
	}
	if fullName != nil {
		user.FullName = fullName
	}
	m.users[id] = user
	return user, nil
}

func (m *memoryProfileStore) UpdateResetTime(ctx context.Context, id uuid.UUID, hour, minute int) (auth.User, error) {
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	user.ResetHour = hour
	user.ResetMinute = minute
	m.users[id] = user
	return user, nil
}

func (m *memoryProfileStore) ListUsers(ctx context.Context) ([]auth.User, error) {
	out := make([]auth.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryProfileStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}
