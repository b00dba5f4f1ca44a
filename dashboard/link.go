package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/LovationAdmin/finance-assistant/client"

	"github.com/rs/zerolog"
)

var ErrNoLinkToken = errors.New("bank link is not ready")

type LinkAPI interface {
	CreateLinkToken(ctx context.Context) (string, error)
	CreateSandboxToken(ctx context.Context) (string, error)
	ExchangeToken(ctx context.Context, publicToken string) (string, error)
}

// Widget is the aggregator's link UI: it takes a link token and returns the
// public token the user's bank login produced.
type Widget interface {
	Open(ctx context.Context, linkToken string) (string, error)
}

type LinkFlow struct {
	api     LinkAPI
	session *client.Session
	log     zerolog.Logger

	mu        sync.Mutex
	linkToken string
}

func NewLinkFlow(api LinkAPI, session *client.Session, log zerolog.Logger) *LinkFlow {
	return &LinkFlow{api: api, session: session, log: log}
}

// Prepare fetches a link token. A 401 signs the session out without a
// message; any other failure leaves the flow without a token.
func (f *LinkFlow) Prepare(ctx context.Context) {
	token, err := f.api.CreateLinkToken(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		if f.session != nil {
			if cerr := f.session.Clear(); cerr != nil {
				f.log.Warn().Err(cerr).Msg("Failed to clear session")
			}
		}
		return
	}
	if err != nil {
		f.log.Warn().Err(err).Msg("Failed to create link token")
		return
	}

	f.mu.Lock()
	f.linkToken = token
	f.mu.Unlock()
}

func (f *LinkFlow) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkToken != ""
}

// Connect runs the widget and exchanges its public token. Widget errors are
// logged and abort the flow.
func (f *LinkFlow) Connect(ctx context.Context, w Widget) (string, error) {
	f.mu.Lock()
	linkToken := f.linkToken
	f.mu.Unlock()
	if linkToken == "" {
		return "", ErrNoLinkToken
	}

	publicToken, err := w.Open(ctx, linkToken)
	if err != nil {
		f.log.Error().Err(err).Msg("Bank link aborted")
		return "", err
	}
	return f.exchange(ctx, publicToken)
}

// Demo links the aggregator's sandbox institution without the widget.
func (f *LinkFlow) Demo(ctx context.Context) (string, error) {
	publicToken, err := f.api.CreateSandboxToken(ctx)
	if err != nil {
		f.log.Error().Err(err).Msg("Failed to create sandbox token")
		return "", err
	}
	return f.exchange(ctx, publicToken)
}

func (f *LinkFlow) exchange(ctx context.Context, publicToken string) (string, error) {
	accessToken, err := f.api.ExchangeToken(ctx, publicToken)
	if err != nil {
		f.log.Error().Err(err).Msg("Failed to exchange public token")
		return "", err
	}
	return accessToken, nil
}
