package handlers

import (
	"context"
	"net/http"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/services"

	"github.com/gin-gonic/gin"
)

type SubscriptionMarker interface {
	MarkSubscriptionEmailed(ctx context.Context, userID, merchant string) (bool, error)
}

type EmailHandler struct {
	Mailer services.Mailer
	Store  SubscriptionMarker
}

func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req models.SendEmailRequest
	_ = c.ShouldBindJSON(&req)
	if req.To == "" || req.Subject == "" || req.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: to, subject, body"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Mailer.Send(ctx, req.To, req.Subject, req.Body); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if req.Merchant != "" {
		if _, err := h.Store.MarkSubscriptionEmailed(ctx, middleware.GetUserID(c), req.Merchant); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("merchant", req.Merchant).Msg("Failed to mark subscription emailed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent to " + req.To})
}
