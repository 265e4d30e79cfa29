package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "sisyphusUser"

// Machine-readable 401 causes. Clients trigger a silent refresh only on
// CodeTokenExpired; every other cause ends the session.
const (
	CodeTokenExpired = "token_expired"
	CodeTokenInvalid = "token_invalid"
)

// ContextUser represents the authenticated principal stored in the request context.
type ContextUser struct {
	ID       string
	Username string
}

// Middleware validates bearer tokens and injects the authenticated user.
// Expired tokens are reported with a distinct code so clients can tell the
// recoverable case apart from malformed or forged tokens.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing authorization header", "code": CodeTokenInvalid})
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid authorization header", "code": CodeTokenInvalid})
			return
		}

		claims, err := service.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				c.AbortWithStatusJSON(401, gin.H{"error": "access token expired", "code": CodeTokenExpired})
				return
			}
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token", "code": CodeTokenInvalid})
			return
		}

		c.Set(string(userContextKey), ContextUser{
			ID:       claims.UserID.String(),
			Username: claims.Username,
		})

		c.Next()
	}
}

// CurrentUser extracts the authenticated user from the context.
func CurrentUser(c *gin.Context) (ContextUser, bool) {
	value, exists := c.Get(string(userContextKey))
	if !exists {
		return ContextUser{}, false
	}
	user, ok := value.(ContextUser)
	return user, ok
}

// RequireUser fetches the authenticated user and parses the identifier.
func RequireUser(c *gin.Context) (uuid.UUID, ContextUser, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		return uuid.Nil, ContextUser{}, false
	}
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return uuid.Nil, ContextUser{}, false
	}
	return id, user, true
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
