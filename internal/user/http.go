package user

import (
	"errors"
	"net/http"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts profile endpoints under /users. The group is
// expected to carry the auth middleware.
func RegisterRoutes(router *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	users := router.Group("/users")
	{
		users.GET("/profile", handler.profile)
		users.PUT("/profile", handler.updateProfile)
		users.PUT("/reset-time", handler.updateResetTime)
		users.DELETE("/account", handler.deleteAccount)
	}
}

type httpHandler struct {
	service *Service
}

type updateProfileRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Username *string `json:"username" binding:"omitempty,min=3,max=64"`
	FullName *string `json:"full_name" binding:"omitempty,max=128"`
}

type resetTimeRequest struct {
	ResetHour   *int `json:"reset_hour" binding:"required"`
	ResetMinute *int `json:"reset_minute" binding:"required"`
}

func (h *httpHandler) profile(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, auth.MarshalUser(user))
}

func (h *httpHandler) updateProfile(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, UpdateProfileInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, auth.ErrUsernameAlreadyTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		case errors.Is(err, ErrNothingToUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			respondUserError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, auth.MarshalUser(user))
}

func (h *httpHandler) updateResetTime(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	var req resetTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.UpdateResetTime(c.Request.Context(), userID, *req.ResetHour, *req.ResetMinute)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidResetHour), errors.Is(err, ErrInvalidResetMinute):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			respondUserError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, auth.MarshalUser(user))
}

func (h *httpHandler) deleteAccount(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	if err := h.service.DeleteAccount(c.Request.Context(), userID); err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func respondUserError(c *gin.Context, err error) {
	if errors.Is(err, auth.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "profile operation failed"})
}
