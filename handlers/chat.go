package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/gin-gonic/gin"
)

// Assistant is implemented by *services.ChatService.
type Assistant interface {
	Answer(ctx context.Context, userID, query string) (string, error)
	AnalyzeExpenses(ctx context.Context, userID, query string, days int) (string, error)
}

type ChatHandler struct {
	Assistant Assistant
}

// Chat always answers 200; failures are reported in the "error" field.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusOK, gin.H{"error": "Query is required"})
		return
	}

	answer, err := h.Assistant.Answer(c.Request.Context(), middleware.GetUserID(c), req.Query)
	if err != nil {
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("Chat failed")
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (h *ChatHandler) AnalyzeExpenses(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	answer, err := h.Assistant.AnalyzeExpenses(c.Request.Context(), middleware.GetUserID(c), c.Query("query"), days)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": answer})
}
