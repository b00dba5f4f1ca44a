package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"
)

const (
	defaultChatDays   = 30
	chatRecentTxCount = 15
)

var (
	transactionKeywords  = []string{"transactions", "spending", "expenses", "biggest", "categories", "money", "spent", "cost"}
	forecastKeywords     = []string{"forecast", "future", "predict", "next", "will spend"}
	subscriptionKeywords = []string{"subscription", "recurring", "monthly", "netflix", "spotify"}
)

// ChatService answers free-form questions with whatever financial context the
// question calls for.
type ChatService struct {
	store      AnalysisStore
	forecaster SpendingForecaster
	subs       SubscriptionDetector
	llm        LLM
}

func NewChatService(store AnalysisStore, forecaster SpendingForecaster, subs SubscriptionDetector, llm LLM) *ChatService {
	return &ChatService{store: store, forecaster: forecaster, subs: subs, llm: llm}
}

type chatContext struct {
	TransactionsCount  int                    `json:"transactions_count"`
	ForecastTotal      float64                `json:"forecast_total"`
	Subscriptions      []models.Subscription  `json:"subscriptions"`
	Alerts             []models.Alert         `json:"alerts"`
	Categories         []models.CategorySlice `json:"spending_categories,omitempty"`
	RecentTransactions []models.Transaction   `json:"recent_transactions,omitempty"`
}

type contextNeeds struct {
	transactions  bool
	forecast      bool
	subscriptions bool
}

func routeQuery(query string) contextNeeds {
	lower := strings.ToLower(query)
	return contextNeeds{
		transactions:  containsAny(lower, transactionKeywords),
		forecast:      containsAny(lower, forecastKeywords),
		subscriptions: containsAny(lower, subscriptionKeywords),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Answer handles a chat message.
func (c *ChatService) Answer(ctx context.Context, userID, query string) (string, error) {
	return c.answer(ctx, userID, query, defaultChatDays)
}

// AnalyzeExpenses asks about spending over the last days days.
func (c *ChatService) AnalyzeExpenses(ctx context.Context, userID, query string, days int) (string, error) {
	if query == "" {
		query = "biggest expenses"
	}
	if days <= 0 {
		days = defaultChatDays
	}
	return c.answer(ctx, userID, fmt.Sprintf("Analyze my %s for the last %d days", query, days), days)
}

func (c *ChatService) answer(ctx context.Context, userID, query string, days int) (string, error) {
	log := logger.FromContext(ctx)
	needs := routeQuery(query)
	cc := chatContext{Subscriptions: []models.Subscription{}, Alerts: []models.Alert{}}

	var txs []models.Transaction
	if needs.transactions || needs.forecast || needs.subscriptions {
		var err error
		txs, err = c.store.ListTransactions(ctx, userID, time.Time{})
		if err != nil {
			return "", err
		}
	}

	if needs.transactions {
		cc.TransactionsCount = len(txs)
		cc.Categories = SpendingByCategory(withinDays(txs, days), days).Categories
		recent := txs
		if len(recent) > chatRecentTxCount {
			recent = recent[:chatRecentTxCount]
		}
		cc.RecentTransactions = recent
	}

	if needs.forecast {
		forecast, err := c.forecaster.Forecast(ctx, txs)
		if err != nil {
			log.Warn().Err(err).Msg("Chat forecast unavailable")
		} else {
			cc.ForecastTotal = forecast.Total30DayForecast
		}
	}

	if needs.subscriptions {
		subs, err := c.store.ListSubscriptions(ctx, userID)
		if err != nil || len(subs) == 0 {
			subs, err = c.subs.Detect(ctx, txs)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Chat subscriptions unavailable")
		} else {
			cc.Subscriptions = subs
		}
	}

	return c.respond(ctx, query, cc)
}

func (c *ChatService) respond(ctx context.Context, query string, cc chatContext) (string, error) {
	contextJSON, err := json.Marshal(cc)
	if err != nil {
		return "", err
	}
	system := "You are a smart financial assistant. Use this context: " + string(contextJSON)
	return c.llm.Complete(ctx, system, query, 0.3)
}

// withinDays keeps transactions dated in the last days days.
func withinDays(txs []models.Transaction, days int) []models.Transaction {
	cutoff := CategoryCutoff(time.Now(), days).Format("2006-01-02")
	var out []models.Transaction
	for _, t := range txs {
		if t.Date >= cutoff {
			out = append(out, t)
		}
	}
	return out
}
