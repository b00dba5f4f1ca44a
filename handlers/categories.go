package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/services"

	"github.com/gin-gonic/gin"
)

type TransactionLister interface {
	ListTransactions(ctx context.Context, userID string, since time.Time) ([]models.Transaction, error)
}

type CategoriesHandler struct {
	Store TransactionLister
	Now   func() time.Time
}

func (h *CategoriesHandler) SpendingCategories(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	txs, err := h.Store.ListTransactions(c.Request.Context(), middleware.GetUserID(c), services.CategoryCutoff(now(), days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, services.SpendingByCategory(txs, days))
}
