package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adilbek/sisyphus/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLength = 72 // bcrypt limit

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// userStore abstracts the persistence layer.
type userStore interface {
	CreateUser(ctx context.Context, email, username, passwordHash string, fullName *string) (User, error)
	FindUserByLogin(ctx context.Context, login string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, RotationOutcome, error)
	RevokeToken(ctx context.Context, tokenHash string) error
}

// Service encapsulates authentication use cases: registration, login, token
// verification and single-use refresh rotation.
type Service struct {
	store         userStore
	cfg           config.AuthConfig
	nowFunc       func() time.Time
	idIssuer      string
	accessParser  *jwt.Parser
	refreshParser *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(store userStore, cfg config.AuthConfig) *Service {
	s := &Service{
		store:    store,
		cfg:      cfg,
		nowFunc:  time.Now,
		idIssuer: "sisyphus",
	}
	// Parsers read the clock through the service so tests can pin it.
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(cfg.ClockSkewLeeway),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	}
	s.accessParser = jwt.NewParser(parserOpts...)
	s.refreshParser = jwt.NewParser(parserOpts...)
	return s
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

// LoginInput carries login credentials. Login accepts either the username
// or the email address.
type LoginInput struct {
	Login    string
	Password string
}

// AuthResult contains user and token information.
type AuthResult struct {
	User   User
	Tokens TokenPair
}

// UserClaims describes the validated identity extracted from an access token.
type UserClaims struct {
	UserID    uuid.UUID
	Username  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Register creates a new user, hashing the password and issuing tokens.
func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if err := validateCredentials(input.Email, input.Password); err != nil {
		return AuthResult{}, err
	}
	if len(strings.TrimSpace(input.Username)) == 0 {
		return AuthResult{}, ErrInvalidCredentials
	}

	hashedPassword, err := hashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, strings.ToLower(input.Email), input.Username, hashedPassword, input.FullName)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrUsernameAlreadyTaken) {
			return AuthResult{}, err
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Login authenticates credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if len(strings.TrimSpace(input.Login)) == 0 || len(strings.TrimSpace(input.Password)) == 0 {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByLogin(ctx, strings.ToLower(input.Login))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if !user.IsActive {
		return AuthResult{}, ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// ValidateAccessToken verifies the token signature and expiry, returning the
// embedded claims or one of the typed failures ErrTokenExpired,
// ErrBadSignature, ErrTokenMalformed. It never panics on garbage input.
func (s *Service) ValidateAccessToken(tokenString string) (UserClaims, error) {
	claims, err := s.parseToken(s.accessParser, tokenString, s.cfg.AccessTokenSecret, tokenTypeAccess)
	if err != nil {
		return UserClaims{}, err
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return UserClaims{}, ErrTokenMalformed
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return UserClaims{}, ErrTokenMalformed
	}

	result := UserClaims{
		UserID:    userID,
		ExpiresAt: time.Unix(int64(expFloat), 0),
	}
	result.Username, _ = claims["username"].(string)
	if iatFloat, ok := claims["iat"].(float64); ok {
		result.IssuedAt = time.Unix(int64(iatFloat), 0)
	}
	return result, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same conditional update that authorizes the exchange, so
// for N concurrent calls with the same token exactly one succeeds and the
// rest observe ErrTokenReused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	claims, err := s.parseToken(s.refreshParser, refreshToken, s.cfg.RefreshTokenSecret, tokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return AuthResult{}, ErrTokenExpired
		}
		return AuthResult{}, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return AuthResult{}, ErrTokenInvalid
	}

	tokenHash := hashRefreshToken(refreshToken, s.cfg.RefreshTokenSecret)
	ownerID, outcome, err := s.store.RotateRefreshToken(ctx, tokenHash, s.nowFunc())
	if err != nil {
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	switch outcome {
	case RotationOK:
		// fallthrough to issuing below
	case RotationReused:
		return AuthResult{}, ErrTokenReused
	case RotationExpired:
		return AuthResult{}, ErrTokenExpired
	default:
		return AuthResult{}, ErrTokenInvalid
	}

	if ownerID != userID {
		return AuthResult{}, ErrTokenInvalid
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrTokenInvalid
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return AuthResult{}, ErrTokenInvalid
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	tokenHash := hashRefreshToken(refreshToken, s.cfg.RefreshTokenSecret)
	if err := s.store.RevokeToken(ctx, tokenHash); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// GetUser loads the user profile for an authenticated identity.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return user.SafeUser(), nil
}

func (s *Service) parseToken(parser *jwt.Parser, tokenString, secret, wantType string) (jwt.MapClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMalformed
	}

	parsed, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}
	if tokenType, _ := claims["type"].(string); tokenType != wantType {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *Service) issueTokens(ctx context.Context, user User) (AuthResult, error) {
	now := s.nowFunc()

	accessToken, accessExpiry, err := s.generateAccessToken(user, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, refreshExpiry, err := s.generateRefreshToken(user, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	refreshHash := hashRefreshToken(refreshToken, s.cfg.RefreshTokenSecret)
	if err := s.store.StoreRefreshToken(ctx, user.ID, refreshHash, refreshExpiry); err != nil {
		return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	return AuthResult{
		User: user.SafeUser(),
		Tokens: TokenPair{
			AccessToken:        accessToken,
			AccessTokenExpiry:  accessExpiry,
			RefreshToken:       refreshToken,
			RefreshTokenExpiry: refreshExpiry,
		},
	}, nil
}

func (s *Service) generateAccessToken(user User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"iss":      s.idIssuer,
		"aud":      "sisyphus-api",
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
		"type":     tokenTypeAccess,
		"username": user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (s *Service) generateRefreshToken(user User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.cfg.RefreshTokenTTL)
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"iss":  s.idIssuer,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
		"type": tokenTypeRefresh,
		"jti":  uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.RefreshTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("password exceeds maximum length of %d characters", maxPasswordLength)
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func hashRefreshToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func validateCredentials(email, password string) error {
	if len(strings.TrimSpace(email)) == 0 || len(strings.TrimSpace(password)) == 0 {
		return ErrInvalidCredentials
	}

	if len(password) < 8 || len(password) > maxPasswordLength {
		return ErrInvalidCredentials
	}
	return nil
}
