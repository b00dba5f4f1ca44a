package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/shopspring/decimal"
)

const (
	AlertOverspending = "overspending"
	AlertHighSpending = "high_spending"
)

// AlertService compares the forecast with the current balance.
type AlertService struct {
	mailer    Mailer
	userEmail string
	balance   decimal.Decimal
}

func NewAlertService(mailer Mailer, userEmail string, balance float64) *AlertService {
	return &AlertService{mailer: mailer, userEmail: userEmail, balance: decimal.NewFromFloat(balance)}
}

// ForecastTotal reads the 30-day total out of whatever the forecast stage
// produced. Anything unrecognised counts as zero.
func ForecastTotal(results interface{}) float64 {
	switch r := results.(type) {
	case *models.Forecast:
		if r == nil {
			return 0
		}
		return r.Total30DayForecast
	case map[string]interface{}:
		for _, key := range []string{"total_30day_forecast", "total_forecast"} {
			if v, ok := r[key].(float64); ok {
				return v
			}
		}
	}
	return 0
}

// Evaluate builds the alerts for a forecast total, mails each one to the
// owner when an address is configured and returns them.
func (a *AlertService) Evaluate(ctx context.Context, total float64) []models.Alert {
	log := logger.FromContext(ctx)
	forecast := decimal.NewFromFloat(total)

	alerts := []models.Alert{}
	if forecast.GreaterThan(a.balance) {
		alerts = append(alerts, models.Alert{
			Type:    AlertOverspending,
			Message: fmt.Sprintf("⚠️ OVERSPENDING ALERT: Forecasted $%s exceeds balance $%s", forecast.String(), a.balance.String()),
		})
	}
	if forecast.GreaterThan(a.balance.Div(decimal.NewFromInt(2))) {
		alerts = append(alerts, models.Alert{
			Type:    AlertHighSpending,
			Message: fmt.Sprintf("⚠️ Spending high: $%s", forecast.String()),
		})
	}

	if a.mailer == nil || a.userEmail == "" {
		return alerts
	}
	for _, alert := range alerts {
		if err := SendAlert(ctx, a.mailer, a.userEmail, alert.Message); err != nil {
			log.Warn().Err(err).
				Str("type", alert.Type).
				Str("alert", utils.MaskString(alert.Message)).
				Msg("Failed to email alert")
		}
	}
	return alerts
}
