package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/LovationAdmin/finance-assistant/client"

	"github.com/rs/zerolog"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 10

// CategoryDays is the window of the breakdown refreshed after an analysis.
const CategoryDays = 30

// ErrSuperseded is returned by a run whose response arrived after a newer run
// was started. Its result is dropped.
var ErrSuperseded = errors.New("superseded by a newer request")

// API is the part of *client.Client the dashboard calls.
type API interface {
	AnalyzeFinances(ctx context.Context, query string) (json.RawMessage, error)
	SpendingCategories(ctx context.Context, days int) (json.RawMessage, error)
	GetTransactions(ctx context.Context, accessToken string) (json.RawMessage, error)
	SendEmail(ctx context.Context, to, subject, body, merchant string) (*client.SendEmailReply, error)
}

// State is what the dashboard renders.
type State struct {
	Pending       bool
	Error         string
	Forecast      *ForecastResult
	Subscriptions []Subscription
	Alerts        []Alert
	Emails        []Email
	Transactions  []Transaction
	Categories    *CategoryBreakdown
}

type Dashboard struct {
	api API
	log zerolog.Logger

	mu    sync.Mutex
	seq   uint64
	txSeq uint64
	state State
}

func New(api API, log zerolog.Logger) *Dashboard {
	return &Dashboard{api: api, log: log}
}

// RunAnalysis triggers analyze_finances and replaces the four analysis slices
// wholesale. On failure the previous results stay and Error is set.
func (d *Dashboard) RunAnalysis(ctx context.Context, query string) error {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.state.Pending = true
	d.state.Error = ""
	d.mu.Unlock()

	raw, err := d.api.AnalyzeFinances(ctx, query)
	var res AnalysisResult
	if err == nil {
		res, err = ParseAnalysis(raw)
	}

	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		d.log.Debug().Uint64("seq", seq).Msg("Discarding stale analysis response")
		return ErrSuperseded
	}
	d.state.Pending = false
	if err != nil {
		d.state.Error = "Analysis failed: " + reason(err)
		d.mu.Unlock()
		return err
	}
	d.state.Forecast = res.Forecast
	d.state.Subscriptions = res.Subscriptions
	d.state.Alerts = res.Alerts
	d.state.Emails = res.Emails
	d.mu.Unlock()

	d.refreshCategories(ctx, seq)
	return nil
}

func (d *Dashboard) refreshCategories(ctx context.Context, seq uint64) {
	raw, err := d.api.SpendingCategories(ctx, CategoryDays)
	var cb CategoryBreakdown
	if err == nil {
		cb, err = ParseCategories(raw)
	}
	if err != nil {
		d.log.Warn().Err(err).Msg("Spending categories unavailable")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return
	}
	d.state.Categories = &cb
}

// LoadTransactions fetches and syncs the linked account's transactions.
func (d *Dashboard) LoadTransactions(ctx context.Context, accessToken string) error {
	d.mu.Lock()
	d.txSeq++
	seq := d.txSeq
	d.mu.Unlock()

	raw, err := d.api.GetTransactions(ctx, accessToken)
	var txs []Transaction
	if err == nil {
		txs, err = ParseTransactions(raw)
	}
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to load transactions")
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.txSeq {
		return ErrSuperseded
	}
	d.state.Transactions = txs
	return nil
}

// RecentTransactions is the first RecentLimit transactions in received order.
func (d *Dashboard) RecentTransactions() []Transaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	txs := d.state.Transactions
	if len(txs) > RecentLimit {
		txs = txs[:RecentLimit]
	}
	return append([]Transaction(nil), txs...)
}

// Snapshot returns a copy safe to read while requests are in flight.
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.state
	s.Subscriptions = append([]Subscription(nil), d.state.Subscriptions...)
	s.Alerts = append([]Alert(nil), d.state.Alerts...)
	s.Emails = append([]Email(nil), d.state.Emails...)
	s.Transactions = append([]Transaction(nil), d.state.Transactions...)
	if d.state.Forecast != nil {
		f := *d.state.Forecast
		f.ChartData = append([]ChartPoint(nil), f.ChartData...)
		f.WeeklyTotals = append([]float64(nil), f.WeeklyTotals...)
		s.Forecast = &f
	}
	if d.state.Categories != nil {
		cb := *d.state.Categories
		cb.Categories = append([]CategorySlice(nil), cb.Categories...)
		s.Categories = &cb
	}
	return s
}

// reason prefers the backend's own error text.
func reason(err error) string {
	var se *client.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
