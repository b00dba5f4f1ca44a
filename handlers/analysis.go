package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/services"

	"github.com/gin-gonic/gin"
)

// AnalysisRunner is implemented by *services.Orchestrator.
type AnalysisRunner interface {
	Run(ctx context.Context, userID, query string) (*models.AnalysisResult, error)
}

type AnalysisHandler struct {
	Runner        AnalysisRunner
	Store         services.AnalysisStore
	Forecaster    services.SpendingForecaster
	Subscriptions services.SubscriptionDetector
	Events        Notifier
}

func (h *AnalysisHandler) AnalyzeFinances(c *gin.Context) {
	var req models.AnalyzeRequest
	// An empty body is allowed and means the default query.
	_ = c.ShouldBindJSON(&req)

	userID := middleware.GetUserID(c)
	result, err := h.Runner.Run(c.Request.Context(), userID, req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         err.Error(),
			"forecast":      nil,
			"subscriptions": []models.Subscription{},
			"alerts":        []models.Alert{},
		})
		return
	}

	if h.Events != nil {
		h.Events.Broadcast(userID, "analysis_completed", gin.H{
			"run_id":             result.RunID,
			"transactions_count": result.TransactionsCount,
			"alerts":             result.Alerts,
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *AnalysisHandler) ForecastSpending(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	userID := middleware.GetUserID(c)

	forecast, err := h.forecast(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Forecast unavailable")
		c.JSON(http.StatusOK, gin.H{
			"total_forecast":       0,
			"avg_daily_forecast":   0,
			"historical_avg_daily": 0,
			"chart_data":           []models.ChartPoint{},
		})
		return
	}

	if err := h.Store.SaveForecast(ctx, userID, forecast); err != nil {
		log.Error().Err(err).Msg("Failed to save forecast")
	}

	c.JSON(http.StatusOK, forecast)
}

func (h *AnalysisHandler) forecast(ctx context.Context, userID string) (*models.Forecast, error) {
	txs, err := h.Store.ListTransactions(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	return h.Forecaster.Forecast(ctx, txs)
}

func (h *AnalysisHandler) IdentifySubscriptions(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	txs, err := h.Store.ListTransactions(ctx, userID, time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	subs, err := h.Subscriptions.Find(ctx, txs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}

	log := logger.FromContext(ctx)
	if stored, err := h.Store.ListSubscriptions(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("Failed to load stored subscriptions")
	} else {
		services.CarryEmailSent(subs, stored)
	}
	if err := h.Store.SaveSubscriptions(ctx, userID, subs); err != nil {
		log.Error().Err(err).Msg("Failed to save subscriptions")
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptions":      subs,
		"total_monthly_cost": services.MonthlyCost(subs),
		"subscription_count": len(subs),
	})
}
