package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// fakeLLM answers by the first rule whose key appears in the prompt.
type fakeLLM struct {
	mu      sync.Mutex
	rules   []fakeRule
	err     error
	prompts []string
}

type fakeRule struct {
	contains string
	reply    string
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, system+"\n"+user)
	if f.err != nil {
		return "", f.err
	}
	for _, r := range f.rules {
		if strings.Contains(system, r.contains) || strings.Contains(user, r.contains) {
			return r.reply, nil
		}
	}
	return "", nil
}

type fakeSearcher struct {
	results []SearchResult
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.sent = append(f.sent, to+"|"+subject+"|"+body)
	return f.err
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

func TestDetectFiltersExcludedMerchants(t *testing.T) {
	llm := &fakeLLM{rules: []fakeRule{{
		contains: "Identify ONLY recurring subscriptions",
		reply: "```json\n" + `{"subscriptions": [
			{"merchant": "Netflix", "amount": 15.99, "frequency": "monthly", "last_payment_date": "2024-05-01"},
			{"merchant": "Monthly Rent", "amount": 1200, "frequency": "monthly"},
			{"merchant": "Credit Card Payment", "amount": 300, "frequency": "monthly"}
		]}` + "\n```",
	}}}
	finder := NewSubscriptionFinder(llm, nil)

	subs, err := finder.Detect(context.Background(), []models.Transaction{{Name: "Netflix", Amount: 15.99, Date: "2024-05-01"}})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(subs) != 1 || subs[0].Merchant != "Netflix" || subs[0].Amount != 15.99 {
		t.Errorf("unexpected subscriptions: %+v", subs)
	}
}

func TestDetectUnparsableOutputIsEmpty(t *testing.T) {
	llm := &fakeLLM{rules: []fakeRule{{contains: "recurring", reply: "I could not find anything, sorry."}}}
	subs, err := NewSubscriptionFinder(llm, nil).Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if subs == nil || len(subs) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", subs)
	}
}

func TestDetectSamplesNewestForty(t *testing.T) {
	llm := &fakeLLM{}
	var txs []models.Transaction
	for i := 0; i < 60; i++ {
		txs = append(txs, models.Transaction{Name: "tx", Amount: float64(i), Date: "2024-01-01"})
	}
	NewSubscriptionFinder(llm, nil).Detect(context.Background(), txs)

	if len(llm.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(llm.prompts))
	}
	if got := strings.Count(llm.prompts[0], `"description":"tx"`); got != 40 {
		t.Errorf("prompt carried %d transactions, want 40", got)
	}
}

func TestFindUsesKnownProviderEmail(t *testing.T) {
	llm := &fakeLLM{rules: []fakeRule{
		{contains: "Identify ONLY recurring subscriptions", reply: `{"subscriptions":[{"merchant":"Netflix","amount":15.99,"frequency":"monthly"}]}`},
		{contains: "Write a professional yet friendly email", reply: "Hi Netflix team, ... Thanks"},
	}}
	search := &fakeSearcher{}
	subs, err := NewSubscriptionFinder(llm, search).Find(context.Background(), nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	sub := subs[0]
	if sub.ContactEmail != "help@netflix.com" {
		t.Errorf("contact = %q", sub.ContactEmail)
	}
	if sub.EmailSubject != "Subscription Discount Request" || sub.EmailSent {
		t.Errorf("unexpected email fields: %+v", sub)
	}
	if sub.NegotiationEmail != "Hi Netflix team, ... Thanks" {
		t.Errorf("negotiation email = %q", sub.NegotiationEmail)
	}
	for _, q := range search.queries {
		if strings.Contains(q, "contact email") {
			t.Errorf("known provider should not be searched: %q", q)
		}
	}
}

func TestFindFallsBackToContactURL(t *testing.T) {
	llm := &fakeLLM{rules: []fakeRule{
		{contains: "Identify ONLY recurring subscriptions", reply: `{"subscriptions":[{"merchant":"Gym Co","amount":30,"frequency":"monthly"}]}`},
		{contains: "customer support contact information", reply: `{"email":"not found","confidence":"none","contact_url":"https://gym.example/contact","reasoning":"Only a form"}`},
		{contains: "alternative companies", reply: `[{"company":"Budget Gym","price":"$10/month"},{"company":"Top 10 gyms"}]`},
	}}
	search := &fakeSearcher{results: []SearchResult{{Title: "Gym Co contact", Link: "https://gym.example/contact"}}}

	subs, _ := NewSubscriptionFinder(llm, search).Find(context.Background(), nil)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	if subs[0].ContactEmail != "https://gym.example/contact" {
		t.Errorf("contact = %q", subs[0].ContactEmail)
	}
	if len(subs[0].FoundAlternatives) != 1 || subs[0].FoundAlternatives[0] != "Budget Gym" {
		t.Errorf("alternatives = %v", subs[0].FoundAlternatives)
	}
	if !strings.HasPrefix(subs[0].EmailStatus, "No email found") {
		t.Errorf("status = %q", subs[0].EmailStatus)
	}
	if emails := ApprovalEmails(subs); len(emails) != 0 {
		t.Errorf("contact url must not produce an approval email: %+v", emails)
	}
}

func TestMonthlyCostAndApprovalEmails(t *testing.T) {
	subs := []models.Subscription{
		{Merchant: "Netflix", Amount: 15.99, Frequency: "monthly", ContactEmail: "help@netflix.com", NegotiationEmail: "Hi"},
		{Merchant: "Spotify", Amount: 9.99, Frequency: "monthly", ContactEmail: "Not found"},
		{Merchant: "Prime", Amount: 139, Frequency: "yearly", ContactEmail: "customer-service@amazon.com", EmailSubject: "Custom"},
	}
	if got := MonthlyCost(subs); got != 25.98 {
		t.Errorf("MonthlyCost = %v, want 25.98", got)
	}

	emails := ApprovalEmails(subs)
	if len(emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(emails))
	}
	if emails[0].Subject != "Subscription Discount Request" || emails[1].Subject != "Custom" {
		t.Errorf("subjects = %q, %q", emails[0].Subject, emails[1].Subject)
	}
}

// ============================================================================
// ALERTS
// ============================================================================

func TestAlertEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		types []string
		first string
	}{
		{"below half", 200, nil, ""},
		{"above half", 300, []string{AlertHighSpending}, "⚠️ Spending high: $300"},
		{"above balance", 745.2, []string{AlertOverspending, AlertHighSpending}, "⚠️ OVERSPENDING ALERT: Forecasted $745.2 exceeds balance $500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{}
			alerts := NewAlertService(mailer, "me@example.com", 500).Evaluate(context.Background(), tt.total)
			if len(alerts) != len(tt.types) {
				t.Fatalf("got %d alerts, want %d", len(alerts), len(tt.types))
			}
			for i, a := range alerts {
				if a.Type != tt.types[i] {
					t.Errorf("alert %d type = %s, want %s", i, a.Type, tt.types[i])
				}
			}
			if tt.first != "" && alerts[0].Message != tt.first {
				t.Errorf("message = %q, want %q", alerts[0].Message, tt.first)
			}
			if len(mailer.sent) != len(alerts) {
				t.Errorf("mailed %d alerts, want %d", len(mailer.sent), len(alerts))
			}
		})
	}
}

func TestAlertMailFailureIsNotFatal(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	alerts := NewAlertService(mailer, "me@example.com", 500).Evaluate(context.Background(), 1000)
	if len(alerts) != 2 {
		t.Errorf("expected alerts despite mail failure, got %d", len(alerts))
	}
}

func productionLogs(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	old := utils.IsProduction
	utils.IsProduction = true
	t.Cleanup(func() { utils.IsProduction = old })
	var buf bytes.Buffer
	return logger.WithContext(context.Background(), logger.NewWithWriter(&buf)), &buf
}

func TestAlertMailFailureLogIsMasked(t *testing.T) {
	ctx, buf := productionLogs(t)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	NewAlertService(mailer, "me@example.com", 500).Evaluate(ctx, 1000)

	out := buf.String()
	if strings.Contains(out, "$1000") || strings.Contains(out, "$500") {
		t.Fatalf("amounts leaked into logs: %s", out)
	}
	if !strings.Contains(out, "Forecasted *** exceeds balance ***") {
		t.Fatalf("alert text missing from log: %s", out)
	}
}

func TestForecastTotal(t *testing.T) {
	if got := ForecastTotal(&models.Forecast{Total30DayForecast: 42}); got != 42 {
		t.Errorf("forecast struct: %v", got)
	}
	if got := ForecastTotal(map[string]interface{}{"total_forecast": 12.5}); got != 12.5 {
		t.Errorf("legacy key: %v", got)
	}
	if got := ForecastTotal(map[string]interface{}{"error": "boom"}); got != 0 {
		t.Errorf("error map: %v", got)
	}
	if got := ForecastTotal(nil); got != 0 {
		t.Errorf("nil: %v", got)
	}
}

// ============================================================================
// CATEGORIES
// ============================================================================

func TestSpendingByCategory(t *testing.T) {
	txs := []models.Transaction{
		{Amount: 30, Category: "FOOD_AND_DRINK > RESTAURANTS"},
		{Amount: 10, Category: "Shops > Clothing"},
		{Amount: 10, Category: "FOOD_AND_DRINK"},
		{Amount: 999, Category: "RENT_AND_UTILITIES > RENT"},
		{Amount: 50, Category: "Insurance"},
		{Amount: -20, Category: "FOOD_AND_DRINK"},
	}

	got := SpendingByCategory(txs, 30)
	if got.TotalSpending != 50 || got.PeriodDays != 30 {
		t.Errorf("total=%v days=%d", got.TotalSpending, got.PeriodDays)
	}
	if len(got.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got.Categories)
	}
	food, shops := got.Categories[0], got.Categories[1]
	if food.Name != "FOOD_AND_DRINK" || food.Value != 40 || food.Percentage != 80 || food.Fill != "#F59E0B" {
		t.Errorf("food = %+v", food)
	}
	if shops.Name != "SHOPS" || shops.Percentage != 20 || shops.Fill != "#EC4899" {
		t.Errorf("shops = %+v", shops)
	}
}

func TestSpendingByCategoryEmpty(t *testing.T) {
	got := SpendingByCategory(nil, 7)
	if got.Categories == nil || len(got.Categories) != 0 || got.TotalSpending != 0 {
		t.Errorf("unexpected breakdown %+v", got)
	}
}

// ============================================================================
// ORCHESTRATOR & CHAT
// ============================================================================

type fakeAnalysisStore struct {
	txs       []models.Transaction
	subs      []models.Subscription
	listErr   error
	forecasts int
	saved     []models.Subscription
	alerts    []models.Alert
}

func (f *fakeAnalysisStore) ListTransactions(ctx context.Context, userID string, since time.Time) ([]models.Transaction, error) {
	return f.txs, f.listErr
}

func (f *fakeAnalysisStore) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	return f.subs, nil
}

func (f *fakeAnalysisStore) SaveForecast(ctx context.Context, userID string, fc *models.Forecast) error {
	f.forecasts++
	return nil
}

func (f *fakeAnalysisStore) SaveSubscriptions(ctx context.Context, userID string, subs []models.Subscription) error {
	f.saved = subs
	return nil
}

func (f *fakeAnalysisStore) SaveAlerts(ctx context.Context, userID string, alerts []models.Alert) error {
	f.alerts = alerts
	return nil
}

type fakeForecaster struct {
	forecast *models.Forecast
	err      error
}

func (f *fakeForecaster) Forecast(ctx context.Context, txs []models.Transaction) (*models.Forecast, error) {
	return f.forecast, f.err
}

type fakeDetector struct {
	subs []models.Subscription
}

func (f *fakeDetector) Detect(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error) {
	return f.subs, nil
}

func (f *fakeDetector) Find(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error) {
	return f.subs, nil
}

func newTestOrchestrator(store *fakeAnalysisStore, fc *fakeForecaster, det *fakeDetector, llm LLM) *Orchestrator {
	chat := NewChatService(store, fc, det, llm)
	return NewOrchestrator(store, fc, det, NewAlertService(nil, "", 500), chat)
}

func TestOrchestratorRun(t *testing.T) {
	store := &fakeAnalysisStore{txs: []models.Transaction{{Name: "a"}, {Name: "b"}}}
	fc := &fakeForecaster{forecast: &models.Forecast{Total30DayForecast: 600}}
	det := &fakeDetector{subs: []models.Subscription{{Merchant: "Netflix", ContactEmail: "help@netflix.com", NegotiationEmail: "Hi Netflix team"}}}
	llm := &fakeLLM{rules: []fakeRule{{contains: "smart financial assistant", reply: "You spend a lot."}}}

	result, err := newTestOrchestrator(store, fc, det, llm).Run(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.UserQuery != DefaultAnalysisQuery || result.RunID == "" || result.TransactionsCount != 2 {
		t.Errorf("unexpected header fields: %+v", result)
	}
	if _, ok := result.ForecastResults.(*models.Forecast); !ok {
		t.Errorf("forecast_results = %T", result.ForecastResults)
	}
	if len(result.Alerts) != 2 || len(store.alerts) != 2 {
		t.Errorf("alerts = %+v", result.Alerts)
	}
	if len(result.Emails) != 1 || result.Emails[0].To != "help@netflix.com" {
		t.Errorf("emails = %+v", result.Emails)
	}
	if result.ChatResponse != "You spend a lot." {
		t.Errorf("chat = %q", result.ChatResponse)
	}
	if store.forecasts != 1 || len(store.saved) != 1 {
		t.Errorf("persisted forecasts=%d subs=%d", store.forecasts, len(store.saved))
	}
}

func TestOrchestratorForecastFailureContinues(t *testing.T) {
	store := &fakeAnalysisStore{}
	fc := &fakeForecaster{err: ErrNoSpendingData}
	result, err := newTestOrchestrator(store, fc, &fakeDetector{}, &fakeLLM{}).Run(context.Background(), "user-1", "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, _ := json.Marshal(result.ForecastResults)
	if string(raw) != `{"error":"No spending data available."}` {
		t.Errorf("forecast_results = %s", raw)
	}
	if len(result.Alerts) != 0 || result.Subscriptions == nil {
		t.Errorf("unexpected alerts/subscriptions: %+v", result)
	}
}

func TestOrchestratorKeepsSentFlag(t *testing.T) {
	store := &fakeAnalysisStore{subs: []models.Subscription{{Merchant: "Netflix", EmailSent: true}}}
	det := &fakeDetector{subs: []models.Subscription{
		{Merchant: "Netflix", ContactEmail: "help@netflix.com", NegotiationEmail: "Hi"},
		{Merchant: "Spotify", ContactEmail: "help@spotify.com", NegotiationEmail: "Hi"},
	}}

	result, err := newTestOrchestrator(store, &fakeForecaster{err: ErrNoSpendingData}, det, &fakeLLM{}).Run(context.Background(), "user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Subscriptions[0].EmailSent || result.Subscriptions[1].EmailSent {
		t.Fatalf("subscriptions = %+v", result.Subscriptions)
	}
	if len(result.Emails) != 2 || !result.Emails[0].EmailSent || result.Emails[1].EmailSent {
		t.Fatalf("emails = %+v", result.Emails)
	}
	if !store.saved[0].EmailSent {
		t.Fatal("saved row lost the sent flag")
	}
}

func TestOrchestratorDataFailure(t *testing.T) {
	store := &fakeAnalysisStore{listErr: errors.New("db down")}
	_, err := newTestOrchestrator(store, &fakeForecaster{}, &fakeDetector{}, &fakeLLM{}).Run(context.Background(), "user-1", "")
	if err == nil {
		t.Fatal("expected data-stage error")
	}
}

func TestRouteQuery(t *testing.T) {
	tests := []struct {
		query string
		want  contextNeeds
	}{
		{"Hello", contextNeeds{}},
		{"What are my biggest expenses?", contextNeeds{transactions: true}},
		{"Predict next month", contextNeeds{forecast: true}},
		{"Cancel my Netflix subscription", contextNeeds{subscriptions: true}},
		{"How much money will I spend on monthly plans?", contextNeeds{transactions: true, subscriptions: true}},
		{"Tell me what I will spend on monthly plans", contextNeeds{forecast: true, subscriptions: true}},
	}
	for _, tt := range tests {
		if got := routeQuery(tt.query); got != tt.want {
			t.Errorf("routeQuery(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestChatSkipsDataForSmallTalk(t *testing.T) {
	store := &fakeAnalysisStore{listErr: errors.New("should not be called")}
	llm := &fakeLLM{rules: []fakeRule{{contains: "Hello", reply: "Hi there"}}}
	chat := NewChatService(store, &fakeForecaster{}, &fakeDetector{}, llm)

	got, err := chat.Answer(context.Background(), "user-1", "Hello")
	if err != nil || got != "Hi there" {
		t.Errorf("Answer = %q, %v", got, err)
	}
}

func TestAnalyzeExpensesBuildsQuery(t *testing.T) {
	llm := &fakeLLM{rules: []fakeRule{{contains: "Analyze my biggest expenses for the last 30 days", reply: "ok"}}}
	chat := NewChatService(&fakeAnalysisStore{}, &fakeForecaster{}, &fakeDetector{}, llm)

	got, err := chat.AnalyzeExpenses(context.Background(), "user-1", "", 0)
	if err != nil || got != "ok" {
		t.Errorf("AnalyzeExpenses = %q, %v", got, err)
	}
}

// ============================================================================
// OUTBOUND CLIENTS
// ============================================================================

func TestEmailServiceStatuses(t *testing.T) {
	tests := []struct {
		status  int
		wantErr string
	}{
		{http.StatusAccepted, ""},
		{http.StatusUnauthorized, "SendGrid error: 401"},
	}
	for _, tt := range tests {
		var captured *mail.SGMailV3
		svc := &EmailService{apiKey: "key", fromEmail: "me@example.com", send: func(ctx context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
			captured = msg
			return &rest.Response{StatusCode: tt.status}, nil
		}}

		err := svc.Send(context.Background(), "billing@netflix.com", "Subject", "Body")
		if tt.wantErr == "" && err != nil {
			t.Errorf("status %d: unexpected error %v", tt.status, err)
		}
		if tt.wantErr != "" && (err == nil || err.Error() != tt.wantErr) {
			t.Errorf("status %d: error = %v, want %s", tt.status, err, tt.wantErr)
		}
		if captured == nil || captured.Subject != "Subject" {
			t.Errorf("status %d: message not built", tt.status)
		}
	}
}

func TestEmailDeliveryFailureLogIsMasked(t *testing.T) {
	ctx, buf := productionLogs(t)
	svc := &EmailService{apiKey: "key", fromEmail: "me@example.com", send: func(ctx context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusBadRequest, Body: `{"errors":[{"message":"billing@netflix.com does not accept mail"}]}`}, nil
	}}

	if err := svc.Send(ctx, "billing@netflix.com", "Subject", "Body"); err == nil {
		t.Fatal("expected delivery error")
	}
	out := buf.String()
	if strings.Contains(out, "billing@netflix.com") {
		t.Fatalf("recipient leaked into logs: %s", out)
	}
	if !strings.Contains(out, "***@***.*** does not accept mail") {
		t.Fatalf("response body missing from log: %s", out)
	}
}

func TestEmailServiceNotConfigured(t *testing.T) {
	err := NewEmailService("", "").Send(context.Background(), "a@b.com", "s", "b")
	if !errors.Is(err, ErrEmailNotConfigured) {
		t.Errorf("expected ErrEmailNotConfigured, got %v", err)
	}
}

func TestWebSearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "serp-key" || r.URL.Query().Get("engine") != "google" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		var results []SearchResult
		for i := 0; i < 10; i++ {
			results = append(results, SearchResult{Title: "r"})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"organic_results": results})
	}))
	defer server.Close()

	s := NewWebSearcher("serp-key")
	s.endpoint = server.URL
	results, err := s.Search(context.Background(), "netflix alternatives")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 8 {
		t.Errorf("expected 8 results, got %d", len(results))
	}

	if _, err := NewWebSearcher("").Search(context.Background(), "x"); !errors.Is(err, ErrSearchNotConfigured) {
		t.Errorf("expected ErrSearchNotConfigured, got %v", err)
	}
}

func TestGroqLLMUsesChatCompletions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer groq-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "llama-3.3-70b-versatile" {
			t.Errorf("model = %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	llm := NewGroqLLM("groq-key", "llama-3.3-70b-versatile", server.URL)
	got, err := llm.Complete(context.Background(), "sys", "hi", 0.2)
	if err != nil || got != "hello" {
		t.Errorf("Complete = %q, %v", got, err)
	}
}

func TestGeminiLLM(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" || r.Header.Get("x-goog-api-key") != "gemini-key" {
			t.Errorf("unexpected request %s, api key %q", r.URL.Path, r.Header.Get("x-goog-api-key"))
		}
		var req struct {
			SystemInstruction struct {
				Parts []struct{ Text string } `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				Temperature float64 `json:"temperature"`
			} `json:"generationConfig"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.SystemInstruction.Parts) != 1 || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Errorf("system instruction = %+v", req.SystemInstruction)
		}
		if req.GenerationConfig.Temperature < 0.39 || req.GenerationConfig.Temperature > 0.41 {
			t.Errorf("temperature = %v", req.GenerationConfig.Temperature)
		}

		w.Header().Set("Content-Type", "application/json")
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Netflix costs $15.49"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	ctx := context.Background()
	llm, err := NewGeminiLLM(ctx, "gemini-key", "gemini-2.0-flash", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	got, err := llm.Complete(ctx, "sys", "what does netflix cost?", 0.4)
	if err != nil || got != "Netflix costs $15.49" {
		t.Errorf("Complete = %q, %v", got, err)
	}

	fail.Store(true)
	if _, err := llm.Complete(ctx, "sys", "hi", 0.4); err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestClaudeLLM(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "claude-key" {
			t.Errorf("unexpected request %s, api key %q", r.URL.Path, r.Header.Get("x-api-key"))
		}
		var req struct {
			Model    string                  `json:"model"`
			System   []struct{ Text string } `json:"system"`
			Messages []struct{ Role string } `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != claudeModel || len(req.System) != 1 || req.System[0].Text != "sys" || len(req.Messages) != 1 {
			t.Errorf("unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
			return
		}
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude","stop_reason":"end_turn",
			"content":[{"type":"text","text":"ans"},{"type":"text","text":"wer"}],
			"usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer server.Close()

	llm := NewClaudeLLM("claude-key", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	got, err := llm.Complete(context.Background(), "sys", "hi", 0.3)
	if err != nil || got != "answer" {
		t.Errorf("Complete = %q, %v", got, err)
	}

	fail.Store(true)
	if _, err := llm.Complete(context.Background(), "sys", "hi", 0.3); err == nil || !strings.Contains(err.Error(), "max_tokens too large") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestTransactionCategory(t *testing.T) {
	tests := []struct {
		legacy            []string
		primary, detailed string
		want              string
	}{
		{[]string{"Food and Drink", "Restaurants"}, "FOOD_AND_DRINK", "FOOD_AND_DRINK_RESTAURANT", "Food and Drink > Restaurants"},
		{nil, "ENTERTAINMENT", "ENTERTAINMENT_TV_AND_MOVIES", "ENTERTAINMENT > ENTERTAINMENT_TV_AND_MOVIES"},
		{nil, "INCOME", "", "INCOME"},
		{nil, "", "", "Uncategorized"},
	}
	for _, tt := range tests {
		if got := transactionCategory(tt.legacy, tt.primary, tt.detailed); got != tt.want {
			t.Errorf("transactionCategory(%v, %q, %q) = %q, want %q", tt.legacy, tt.primary, tt.detailed, got, tt.want)
		}
	}
}
