package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/internal/service"
	"rpg-nexus/backend/pkg/logger"
)

// UserHandler handles operations on the current account
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *service.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{service: service, logger: logger}
}

// UpdateMe applies a partial update to the authenticated user
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID := c.GetUint("userId")

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.service.UpdateUser(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
		default:
			h.logger.Error("Error updating user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// DeleteMe removes the authenticated user and everything it owns
func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID := c.GetUint("userId")

	if err := h.service.DeleteUser(userID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.logger.Error("Error deleting user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
