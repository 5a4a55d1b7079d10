package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/utils"
)

// UserLister reads accounts owned by the account service.
type UserLister interface {
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
}

// UserHandler serves the read-only user lookups the booking flow needs.
type UserHandler struct {
	users UserLister
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserLister) *UserHandler {
	return &UserHandler{users: users}
}

// GetDoctors lists doctors for the booking picker.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.users.ListUsers(c.Request.Context(), models.RoleDoctor)
	if err != nil {
		_ = c.Error(err)
		utils.InternalServerError(c, "Failed to fetch doctors")
		return
	}

	sanitized := make([]models.UserSanitized, len(doctors))
	for i := range doctors {
		sanitized[i] = doctors[i].Sanitize()
	}
	utils.Success(c, "Doctors fetched successfully", sanitized)
}
