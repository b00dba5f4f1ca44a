package services

import (
	"context"
	"fmt"
	"time"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/google/uuid"
)

const DefaultAnalysisQuery = "Analyze my finances"

// AnalysisStore is the slice of *Store the analysis pipeline needs.
type AnalysisStore interface {
	ListTransactions(ctx context.Context, userID string, since time.Time) ([]models.Transaction, error)
	ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error)
	SaveForecast(ctx context.Context, userID string, f *models.Forecast) error
	SaveSubscriptions(ctx context.Context, userID string, subs []models.Subscription) error
	SaveAlerts(ctx context.Context, userID string, alerts []models.Alert) error
}

type SpendingForecaster interface {
	Forecast(ctx context.Context, txs []models.Transaction) (*models.Forecast, error)
}

type SubscriptionDetector interface {
	Detect(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error)
	Find(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error)
}

// Orchestrator runs the full analysis: data, forecast, subscriptions, alerts
// and finally an answer to the user's question. Stages run in order.
type Orchestrator struct {
	store      AnalysisStore
	forecaster SpendingForecaster
	subs       SubscriptionDetector
	alerts     *AlertService
	chat       *ChatService
}

func NewOrchestrator(store AnalysisStore, forecaster SpendingForecaster, subs SubscriptionDetector, alerts *AlertService, chat *ChatService) *Orchestrator {
	return &Orchestrator{store: store, forecaster: forecaster, subs: subs, alerts: alerts, chat: chat}
}

// Run returns an error only when the transactions cannot be loaded. Every
// later stage degrades on failure.
func (o *Orchestrator) Run(ctx context.Context, userID, query string) (*models.AnalysisResult, error) {
	if query == "" {
		query = DefaultAnalysisQuery
	}
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	result := &models.AnalysisResult{
		RunID:         runID,
		UserQuery:     query,
		Subscriptions: []models.Subscription{},
		Alerts:        []models.Alert{},
		Emails:        []models.Email{},
	}

	// Data
	txs, err := o.store.ListTransactions(ctx, userID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	result.TransactionsCount = len(txs)
	log.Info().Int("transactions", len(txs)).Msg("Analysis started")

	// Forecast
	forecast, err := o.forecaster.Forecast(ctx, txs)
	if err != nil {
		log.Warn().Err(err).Msg("Forecast stage failed")
		result.ForecastResults = map[string]interface{}{"error": err.Error()}
	} else {
		result.ForecastResults = forecast
		if err := o.store.SaveForecast(ctx, userID, forecast); err != nil {
			log.Error().Err(err).Msg("Failed to save forecast")
		}
	}

	// Subscriptions
	subs, err := o.subs.Find(ctx, txs)
	if err != nil {
		log.Warn().Err(err).Msg("Subscription stage failed")
	} else if subs != nil {
		if stored, err := o.store.ListSubscriptions(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("Failed to load stored subscriptions")
		} else {
			CarryEmailSent(subs, stored)
		}
		result.Subscriptions = subs
		if err := o.store.SaveSubscriptions(ctx, userID, subs); err != nil {
			log.Error().Err(err).Msg("Failed to save subscriptions")
		}
	}
	result.Emails = ApprovalEmails(result.Subscriptions)

	// Alerts
	result.Alerts = o.alerts.Evaluate(ctx, ForecastTotal(result.ForecastResults))
	if err := o.store.SaveAlerts(ctx, userID, result.Alerts); err != nil {
		log.Error().Err(err).Msg("Failed to save alerts")
	}

	// Answer
	answer, err := o.chat.respond(ctx, query, chatContext{
		TransactionsCount: len(txs),
		ForecastTotal:     ForecastTotal(result.ForecastResults),
		Subscriptions:     result.Subscriptions,
		Alerts:            result.Alerts,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Chat stage failed")
	}
	result.ChatResponse = answer

	log.Info().
		Int("subscriptions", len(result.Subscriptions)).
		Int("alerts", len(result.Alerts)).
		Msg("Analysis completed")
	return result, nil
}
