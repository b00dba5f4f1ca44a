package models

// ============================================================================
// FORECAST
// ============================================================================

// ChartPoint carries either a historical or a forecast value. The other one
// stays null so the two series render with a visible break.
type ChartPoint struct {
	Date       string   `json:"date"`
	Historical *float64 `json:"historical"`
	Forecast   *float64 `json:"forecast"`
}

type WeeklyTotal struct {
	WeekStart string  `json:"week_start"`
	Total     float64 `json:"total"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type Forecast struct {
	Total30DayForecast float64            `json:"total_30day_forecast"`
	AvgDailyForecast   float64            `json:"avg_daily_forecast"`
	HistoricalAvgDaily float64            `json:"historical_avg_daily"`
	ChartData          []ChartPoint       `json:"chart_data"`
	WeeklyBreakdown    []WeeklyTotal      `json:"weekly_breakdown"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	ForecastMethod     string             `json:"forecast_method"`
}

// ============================================================================
// SUBSCRIPTIONS & ALERTS
// ============================================================================

type Subscription struct {
	ID                string   `json:"id,omitempty"`
	Merchant          string   `json:"merchant"`
	Amount            float64  `json:"amount"`
	Frequency         string   `json:"frequency"`
	LastPaymentDate   string   `json:"last_payment_date,omitempty"`
	NegotiationEmail  string   `json:"negotiation_email,omitempty"`
	ContactEmail      string   `json:"contact_email,omitempty"`
	EmailSubject      string   `json:"email_subject,omitempty"`
	EmailSent         bool     `json:"email_sent"`
	EmailStatus       string   `json:"email_status,omitempty"`
	FoundAlternatives []string `json:"found_alternatives,omitempty"`
}

type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Email is a negotiation email waiting for the user's approval.
type Email struct {
	Merchant  string `json:"merchant"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	EmailSent bool   `json:"email_sent"`
}

// ============================================================================
// ANALYSIS
// ============================================================================

type AnalyzeRequest struct {
	Query string `json:"query"`
}

// AnalysisResult is the analyze_finances payload. ForecastResults is either a
// *Forecast or an {"error": ...} object.
type AnalysisResult struct {
	RunID             string         `json:"run_id"`
	UserQuery         string         `json:"user_query"`
	TransactionsCount int            `json:"transactions_count"`
	ForecastResults   interface{}    `json:"forecast_results"`
	Subscriptions     []Subscription `json:"subscriptions"`
	Alerts            []Alert        `json:"alerts"`
	Emails            []Email        `json:"emails"`
	ChatResponse      string         `json:"chat_response"`
}

// ============================================================================
// CATEGORIES
// ============================================================================

type CategorySlice struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Fill       string  `json:"fill"`
}

type CategoryBreakdown struct {
	Categories    []CategorySlice `json:"categories"`
	TotalSpending float64         `json:"total_spending"`
	PeriodDays    int             `json:"period_days"`
}

// ============================================================================
// CHAT & EMAIL
// ============================================================================

type ChatRequest struct {
	Query string `json:"query"`
}

type SendEmailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Merchant string `json:"merchant,omitempty"`
}
