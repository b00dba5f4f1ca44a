package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/services"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/gin-gonic/gin"
)

// AccountStore is implemented by *services.Store.
type AccountStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	DisableTOTP(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
}

type UserHandler struct {
	Users AccountStore
}

// ============================================================================
// PROFILE
// ============================================================================

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.Users.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ============================================================================
// 2FA
// ============================================================================

func (h *UserHandler) DisableTOTP(c *gin.Context) {
	var req models.DisableTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := h.reauthenticate(c, req.Password)
	if !ok {
		return
	}
	if user.TOTPEnabled && !utils.VerifyTOTP(user.TOTPSecret, req.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code"})
		return
	}

	if err := h.Users.DisableTOTP(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disable 2FA"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "2FA disabled successfully", "enabled": false})
}

// ============================================================================
// ACCOUNT DELETION
// ============================================================================

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	var req models.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := h.reauthenticate(c, req.Password)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.Users.DeleteUser(ctx, user.ID); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("user_id", utils.MaskID(user.ID)).Msg("Account deletion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// reauthenticate checks the password of the signed-in user and writes the
// error response itself when it fails.
func (h *UserHandler) reauthenticate(c *gin.Context, password string) (*models.User, bool) {
	user, err := h.Users.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify credentials"})
		return nil, false
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return nil, false
	}
	return user, true
}
