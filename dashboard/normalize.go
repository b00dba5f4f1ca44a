// Package dashboard holds the client-side state of the finance dashboard. All
// backend payloads enter through the Parse functions in this file, which turn
// their varying shapes into the canonical types below.
package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrNotObject = errors.New("response is not a JSON object")

type ChartPoint struct {
	Date       string
	Historical *float64
	Forecast   *float64
}

type ForecastResult struct {
	Total              float64
	AvgDaily           *float64
	HistoricalAvgDaily *float64
	ChartData          []ChartPoint
	WeeklyTotals       []float64
	// Error is set when the backend reported the forecast stage as failed.
	Error string
}

type Subscription struct {
	Name             string
	Amount           float64
	Cadence          string
	ContactEmail     string
	EmailSent        bool
	NegotiationEmail string
	EmailSubject     string
}

type Alert struct {
	Type    string
	Message string
}

type Email struct {
	To        string
	Subject   string
	Body      string
	EmailSent bool
	Merchant  string
}

type Transaction struct {
	Title      string
	Date       string
	Amount     float64
	Categories []string
}

// Credit reports money coming in.
func (t Transaction) Credit() bool {
	return t.Amount < 0
}

type CategorySlice struct {
	Name       string
	Value      float64
	Percentage float64
	Fill       string
}

type CategoryBreakdown struct {
	TotalSpending float64
	Categories    []CategorySlice
}

// AnalysisResult is one analyze_finances run in canonical form.
type AnalysisResult struct {
	Forecast      *ForecastResult
	Subscriptions []Subscription
	Alerts        []Alert
	Emails        []Email
}

// Forecast totals in the order they are looked up.
var forecastTotalKeys = []string{"total_30day_forecast", "total_4week_forecast", "total_forecast", "total_2week_forecast"}

func ParseAnalysis(raw []byte) (AnalysisResult, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return AnalysisResult{}, err
	}

	res := AnalysisResult{
		Forecast:      parseForecast(first(obj, "forecast", "forecast_results")),
		Subscriptions: []Subscription{},
		Alerts:        []Alert{},
	}

	for _, item := range array(obj["subscriptions"]) {
		res.Subscriptions = append(res.Subscriptions, parseSubscription(item))
	}
	for _, item := range array(obj["alerts"]) {
		res.Alerts = append(res.Alerts, parseAlert(item))
	}

	if emails, ok := obj["emails"]; ok && isArray(emails) {
		res.Emails = []Email{}
		for _, item := range array(emails) {
			res.Emails = append(res.Emails, parseEmail(item))
		}
	} else {
		res.Emails = DeriveEmails(res.Subscriptions)
	}

	return res, nil
}

// ParseForecast reads a standalone forecast_spending body.
func ParseForecast(raw []byte) (*ForecastResult, error) {
	if _, err := decodeObject(raw); err != nil {
		return nil, err
	}
	return parseForecast(raw), nil
}

func ParseTransactions(raw []byte) ([]Transaction, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	txs := []Transaction{}
	for _, item := range array(obj["transactions"]) {
		o := object(item)
		txs = append(txs, Transaction{
			Title:      str(first(o, "name", "merchant_name", "description")),
			Date:       str(o["date"]),
			Amount:     num(o["amount"]),
			Categories: categories(o["category"]),
		})
	}
	return txs, nil
}

func ParseCategories(raw []byte) (CategoryBreakdown, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return CategoryBreakdown{}, err
	}

	cb := CategoryBreakdown{
		TotalSpending: num(obj["total_spending"]),
		Categories:    []CategorySlice{},
	}
	for _, item := range array(obj["categories"]) {
		o := object(item)
		cb.Categories = append(cb.Categories, CategorySlice{
			Name:       str(o["name"]),
			Value:      num(o["value"]),
			Percentage: num(o["percentage"]),
			Fill:       str(o["fill"]),
		})
	}
	return cb, nil
}

func parseForecast(raw json.RawMessage) *ForecastResult {
	if !isObject(raw) {
		return nil
	}
	o := object(raw)

	f := &ForecastResult{
		Total:              num(first(o, forecastTotalKeys...)),
		AvgDaily:           optNum(o["avg_daily_forecast"]),
		HistoricalAvgDaily: optNum(o["historical_avg_daily"]),
		ChartData:          []ChartPoint{},
		WeeklyTotals:       []float64{},
		Error:              str(o["error"]),
	}
	for _, item := range array(o["chart_data"]) {
		p := object(item)
		f.ChartData = append(f.ChartData, ChartPoint{
			Date:       str(p["date"]),
			Historical: optNum(p["historical"]),
			Forecast:   optNum(p["forecast"]),
		})
	}
	for _, item := range array(o["weekly_breakdown"]) {
		f.WeeklyTotals = append(f.WeeklyTotals, num(object(item)["total"]))
	}
	return f
}

// Items are not validated; a non-object entry becomes a zero Subscription.
func parseSubscription(raw json.RawMessage) Subscription {
	o := object(raw)
	return Subscription{
		Name:             str(first(o, "merchant", "name")),
		Amount:           num(first(o, "amount", "price")),
		Cadence:          str(first(o, "frequency", "cadence")),
		ContactEmail:     str(first(o, "contact_email", "email")),
		EmailSent:        boolean(o["email_sent"]),
		NegotiationEmail: str(o["negotiation_email"]),
		EmailSubject:     str(o["email_subject"]),
	}
}

func parseAlert(raw json.RawMessage) Alert {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return Alert{Message: s}
	}
	o := object(raw)
	return Alert{Type: str(o["type"]), Message: str(o["message"])}
}

func parseEmail(raw json.RawMessage) Email {
	o := object(raw)
	return Email{
		To:        str(o["to"]),
		Subject:   str(o["subject"]),
		Body:      str(o["body"]),
		EmailSent: boolean(o["email_sent"]),
		Merchant:  str(o["merchant"]),
	}
}

// ============================================================================
// JSON HELPERS
// ============================================================================

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	if !isObject(raw) {
		return nil, ErrNotObject
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return obj, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// first returns the first key whose value is present and not null.
func first(o map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := o[k]; ok && present(v) {
			return v
		}
	}
	return nil
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func object(raw json.RawMessage) map[string]json.RawMessage {
	var o map[string]json.RawMessage
	if isObject(raw) {
		_ = json.Unmarshal(raw, &o)
	}
	return o
}

// array yields nothing for anything but a JSON array.
func array(raw json.RawMessage) []json.RawMessage {
	if !isArray(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func str(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func optNum(raw json.RawMessage) *float64 {
	if !present(raw) {
		return nil
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return &f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

func num(raw json.RawMessage) float64 {
	if f := optNum(raw); f != nil {
		return *f
	}
	return 0
}

func boolean(raw json.RawMessage) bool {
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}

// categories accepts either "A > B" or ["A", "B"].
func categories(raw json.RawMessage) []string {
	if s := str(raw); s != "" {
		return []string{s}
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	return nil
}
