package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adilbek/sisyphus/internal/config"
	"github.com/google/uuid"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     30 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		ClockSkewLeeway:    60 * time.Second,
		BcryptCost:         4,
	}
}

func registerTestUser(t *testing.T, service *Service) AuthResult {
	t.Helper()
	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Username: "sisyphus",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	return result
}

func TestRegisterSuccess(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())

	result := registerTestUser(t, service)

	if result.User.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped from response")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}
	if len(store.users) != 1 {
		t.Fatalf("expected user stored; got %d", len(store.users))
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	registerTestUser(t, service)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "other@example.com",
		Username: "sisyphus",
		Password: "AnotherPass2!",
	})
	if !errors.Is(err, ErrUsernameAlreadyTaken) {
		t.Fatalf("expected ErrUsernameAlreadyTaken, got %v", err)
	}
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	registerTestUser(t, service)

	for _, login := range []string{"sisyphus", "user@example.com"} {
		result, err := service.Login(context.Background(), LoginInput{Login: login, Password: "StrongPass1!"})
		if err != nil {
			t.Fatalf("login with %q returned error: %v", login, err)
		}
		if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
			t.Fatalf("expected tokens for login %q", login)
		}
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	registerTestUser(t, service)

	_, err := service.Login(context.Background(), LoginInput{Login: "sisyphus", Password: "WrongPass123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	result := registerTestUser(t, service)

	claims, err := service.ValidateAccessToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Fatalf("claims user = %v, want %v", claims.UserID, result.User.ID)
	}
	if claims.Username != "sisyphus" {
		t.Fatalf("claims username = %q", claims.Username)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())

	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	service.nowFunc = func() time.Time { return issuedAt }
	result := registerTestUser(t, service)

	// 5 minutes past expiry, well beyond the 60s leeway.
	service.nowFunc = func() time.Time { return issuedAt.Add(35 * time.Minute) }
	_, err := service.ValidateAccessToken(result.Tokens.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// 30 seconds past expiry stays inside the clock-skew leeway.
	service.nowFunc = func() time.Time { return issuedAt.Add(30*time.Minute + 30*time.Second) }
	if _, err := service.ValidateAccessToken(result.Tokens.AccessToken); err != nil {
		t.Fatalf("expected leeway to absorb 30s skew, got %v", err)
	}
}

func TestValidateAccessTokenTypedFailures(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	result := registerTestUser(t, service)

	if _, err := service.ValidateAccessToken("not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for garbage, got %v", err)
	}

	otherCfg := testAuthConfig()
	otherCfg.AccessTokenSecret = "different-secret"
	other := NewService(newMemoryStore(), otherCfg)
	foreign := registerTestUser(t, other)
	if _, err := service.ValidateAccessToken(foreign.Tokens.AccessToken); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	// A refresh token must not pass access validation.
	if _, err := service.ValidateAccessToken(result.Tokens.RefreshToken); !errors.Is(err, ErrBadSignature) && !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected typed failure for refresh token, got %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	result := registerTestUser(t, service)

	refreshed, err := service.Refresh(context.Background(), result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if refreshed.Tokens.RefreshToken == result.Tokens.RefreshToken {
		t.Fatalf("expected a new refresh token after rotation")
	}

	// The old token is spent.
	_, err = service.Refresh(context.Background(), result.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused for second exchange, got %v", err)
	}

	// The new one still works.
	if _, err := service.Refresh(context.Background(), refreshed.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh of rotated token returned error: %v", err)
	}
}

func TestRefreshSingleUseUnderConcurrency(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	result := registerTestUser(t, service)

	const attempts = 8
	var wg sync.WaitGroup
	outcomes := make([]error, attempts)
	pairs := make([]AuthResult, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pairs[i], outcomes[i] = service.Refresh(context.Background(), result.Tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	var succeeded, reused int
	for i, err := range outcomes {
		switch {
		case err == nil:
			succeeded++
			if pairs[i].Tokens.RefreshToken == "" {
				t.Fatalf("winner received empty refresh token")
			}
		case errors.Is(err, ErrTokenReused):
			reused++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", succeeded)
	}
	if reused != attempts-1 {
		t.Fatalf("expected %d reuse failures, got %d", attempts-1, reused)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())

	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	service.nowFunc = func() time.Time { return issuedAt }
	result := registerTestUser(t, service)

	service.nowFunc = func() time.Time { return issuedAt.Add(8 * 24 * time.Hour) }
	_, err := service.Refresh(context.Background(), result.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())

	_, err := service.Refresh(context.Background(), "definitely-not-a-jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testAuthConfig())
	result := registerTestUser(t, service)

	if err := service.Logout(context.Background(), result.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout returned error: %v", err)
	}

	_, err := service.Refresh(context.Background(), result.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused after logout, got %v", err)
	}
}

// memoryStore implements userStore for tests. Rotation is guarded by the
// same mutex for every caller, mirroring the conditional update the real
// repository issues.
type memoryStore struct {
	mu     sync.Mutex
	users  map[string]User
	tokens map[string]*tokenRecord
}

type tokenRecord struct {
	userID    uuid.UUID
	expiresAt time.Time
	revoked   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[string]User),
		tokens: make(map[string]*tokenRecord),
	}
}

func (m *memoryStore) CreateUser(ctx context.Context, email, username, passwordHash string, fullName *string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return User{}, ErrEmailAlreadyExists
		}
		if u.Username == username {
			return User{}, ErrUsernameAlreadyTaken
		}
	}
	user := User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[user.ID.String()] = user
	return user, nil
}

func (m *memoryStore) FindUserByLogin(ctx context.Context, login string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id.String()]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = &tokenRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memoryStore) RotateRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, RotationOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[tokenHash]
	if !ok {
		return uuid.Nil, RotationNotFound, nil
	}
	if record.revoked {
		return record.userID, RotationReused, nil
	}
	if !record.expiresAt.After(now) {
		return record.userID, RotationExpired, nil
	}
	record.revoked = true
	return record.userID, RotationOK, nil
}

func (m *memoryStore) RevokeToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.tokens[tokenHash]; ok {
		record.revoked = true
	}
	return nil
}
