package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNoSpendingData        = errors.New("No spending data available.")
	ErrInsufficientHistory   = errors.New("Not enough spending history to forecast (need at least 14 days).")
	ErrForecasterUnavailable = errors.New("forecasting service not configured")
)

const (
	forecastPeriods    = 30
	minHistoryDays     = 14
	historicalAvgDays  = 31
	chartHistoryDays   = 31
	forecastMethodName = "prophet"
)

// Money moving between the user's own accounts or coming in is not spending.
var forecastExcludedCategories = map[string]bool{
	"TRANSFER_IN":         true,
	"TRANSFER_OUT":        true,
	"INCOME":              true,
	"CREDIT_CARD_PAYMENT": true,
	"RENT_AND_UTILITIES":  true,
}

// Forecaster sends daily spending history to the Prophet service and shapes
// its answer for the dashboard.
type Forecaster struct {
	baseURL    string
	httpClient *http.Client
}

func NewForecaster(baseURL string, httpClient *http.Client) *Forecaster {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Forecaster{baseURL: baseURL, httpClient: httpClient}
}

type dailySpend struct {
	Date   time.Time
	Amount decimal.Decimal
}

type prophetPoint struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

type prophetRequest struct {
	History []prophetPoint `json:"history"`
	Periods int            `json:"periods"`
}

type prophetForecast struct {
	DS        string  `json:"ds"`
	YHat      float64 `json:"yhat"`
	YHatLower float64 `json:"yhat_lower"`
	YHatUpper float64 `json:"yhat_upper"`
}

type prophetResponse struct {
	Forecast []prophetForecast `json:"forecast"`
}

// dailyHistory sums spending per day and fills the gaps between the first and
// last day with zeros.
func dailyHistory(txs []models.Transaction) []dailySpend {
	totals := make(map[time.Time]decimal.Decimal)
	for _, t := range txs {
		if t.Amount < 0 || forecastExcludedCategories[strings.ToUpper(t.PrimaryCategory())] {
			continue
		}
		day, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			continue
		}
		totals[day] = totals[day].Add(decimal.NewFromFloat(t.Amount))
	}
	if len(totals) == 0 {
		return nil
	}

	days := make([]time.Time, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var history []dailySpend
	for d := days[0]; !d.After(days[len(days)-1]); d = d.AddDate(0, 0, 1) {
		history = append(history, dailySpend{Date: d, Amount: totals[d]})
	}
	return history
}

func (f *Forecaster) Forecast(ctx context.Context, txs []models.Transaction) (*models.Forecast, error) {
	history := dailyHistory(txs)
	if len(history) == 0 {
		return nil, ErrNoSpendingData
	}
	if len(history) < minHistoryDays {
		return nil, ErrInsufficientHistory
	}
	if f.baseURL == "" {
		return nil, ErrForecasterUnavailable
	}

	points, err := f.requestForecast(ctx, history)
	if err != nil {
		return nil, err
	}
	return buildForecast(history, points), nil
}

func (f *Forecaster) requestForecast(ctx context.Context, history []dailySpend) ([]prophetForecast, error) {
	payload := prophetRequest{Periods: forecastPeriods}
	for _, d := range history {
		payload.History = append(payload.History, prophetPoint{DS: d.Date.Format("2006-01-02"), Y: d.Amount.InexactFloat64()})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/forecast", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecaster returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed prophetResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse forecast response: %w", err)
	}
	if len(parsed.Forecast) == 0 {
		return nil, fmt.Errorf("forecaster returned no points")
	}
	return parsed.Forecast, nil
}

func buildForecast(history []dailySpend, points []prophetForecast) *models.Forecast {
	out := &models.Forecast{ForecastMethod: forecastMethodName}

	recent := history
	if len(recent) > historicalAvgDays {
		recent = recent[len(recent)-historicalAvgDays:]
	}
	histSum := decimal.Zero
	for _, d := range recent {
		histSum = histSum.Add(d.Amount)
	}
	out.HistoricalAvgDaily = cents(histSum.Div(decimal.NewFromInt(int64(len(recent)))))

	chartHistory := history
	if len(chartHistory) > chartHistoryDays {
		chartHistory = chartHistory[len(chartHistory)-chartHistoryDays:]
	}
	for _, d := range chartHistory {
		v := cents(d.Amount)
		out.ChartData = append(out.ChartData, models.ChartPoint{Date: d.Date.Format("01/02"), Historical: &v})
	}

	total, lower, upper := decimal.Zero, decimal.Zero, decimal.Zero
	var week decimal.Decimal
	var weekStart string
	for i, p := range points {
		yhat := clipZero(p.YHat)
		total = total.Add(yhat)
		lower = lower.Add(decimal.NewFromFloat(p.YHatLower))
		upper = upper.Add(decimal.NewFromFloat(p.YHatUpper))

		date := forecastDate(p.DS)
		v := cents(yhat)
		out.ChartData = append(out.ChartData, models.ChartPoint{Date: date.Format("01/02"), Forecast: &v})

		if i%7 == 0 {
			week = decimal.Zero
			weekStart = date.Format("2006-01-02")
		}
		week = week.Add(yhat)
		if i%7 == 6 || i == len(points)-1 {
			out.WeeklyBreakdown = append(out.WeeklyBreakdown, models.WeeklyTotal{WeekStart: weekStart, Total: cents(week)})
		}
	}

	out.Total30DayForecast = cents(total)
	out.AvgDailyForecast = cents(total.Div(decimal.NewFromInt(forecastPeriods)))
	out.ConfidenceInterval = models.ConfidenceInterval{Lower: cents(lower), Upper: cents(upper)}
	return out
}

// forecastDate accepts both "2006-01-02" and Prophet's timestamp form.
func forecastDate(ds string) time.Time {
	if len(ds) >= 10 {
		ds = ds[:10]
	}
	d, _ := time.Parse("2006-01-02", ds)
	return d
}

func clipZero(v float64) decimal.Decimal {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
