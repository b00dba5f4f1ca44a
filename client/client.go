// Package client is a typed HTTP client for the finance assistant API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/LovationAdmin/finance-assistant/models"
)

var (
	// ErrUnauthorized is matched by errors.Is for any 401 answer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnexpectedStatus is matched for every other non-2xx answer.
	ErrUnexpectedStatus = errors.New("unexpected http status code")
)

// StatusError carries a non-2xx status and the backend's "error" text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrUnexpectedStatus
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	session    *Session
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a client for the API at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, session *Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if session == nil {
		session, _ = NewSession(nil)
	}

	c := &Client{httpClient: &http.Client{}, baseURL: u, session: session}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Session() *Session {
	return c.session
}

// WebsocketURL is the live-events endpoint with the session token attached.
func (c *Client) WebsocketURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/ws"
	u.RawQuery = url.Values{"token": {c.session.Token()}}.Encode()
	return u.String()
}

// ============================================================================
// AUTH
// ============================================================================

func (c *Client) Signup(ctx context.Context, email, password, name string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &out); err != nil {
		return nil, err
	}
	return &out, c.session.Set(out.AccessToken)
}

// Login signs in; totpCode may be empty when 2FA is off.
func (c *Client) Login(ctx context.Context, email, password, totpCode string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := map[string]string{"email": email, "password": password}
	if totpCode != "" {
		body["totp_code"] = totpCode
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, c.session.Set(out.AccessToken)
}

func (c *Client) Logout() error {
	return c.session.Clear()
}

// ============================================================================
// BANK LINK
// ============================================================================

func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	var out struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/create_link_token", nil, &out); err != nil {
		return "", err
	}
	return out.LinkToken, nil
}

func (c *Client) CreateSandboxToken(ctx context.Context) (string, error) {
	var out struct {
		PublicToken string `json:"public_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/create_sandbox_token", nil, &out); err != nil {
		return "", err
	}
	return out.PublicToken, nil
}

// ExchangeToken trades a public token for the opaque access token.
func (c *Client) ExchangeToken(ctx context.Context, publicToken string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"public_token": publicToken}
	if err := c.do(ctx, http.MethodPost, "/api/exchange_token", body, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// ============================================================================
// DATA
// ============================================================================

// GetTransactions returns the raw body; the dashboard normalizes it.
func (c *Client) GetTransactions(ctx context.Context, accessToken string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"access_token": accessToken}
	if err := c.do(ctx, http.MethodPost, "/api/get_transactions", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AnalyzeFinances(ctx context.Context, query string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"query": query}
	if err := c.do(ctx, http.MethodPost, "/api/analyze_finances", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SpendingCategories(ctx context.Context, days int) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/spending_categories?days=" + strconv.Itoa(days)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ForecastSpending(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/forecast_spending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatReply holds whichever of response or error the backend set.
type ChatReply struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (c *Client) Chat(ctx context.Context, query string) (*ChatReply, error) {
	var out ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type SendEmailReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SendEmail posts an approved e-mail. merchant may be empty.
func (c *Client) SendEmail(ctx context.Context, to, subject, body, merchant string) (*SendEmailReply, error) {
	req := models.SendEmailRequest{To: to, Subject: subject, Body: body, Merchant: merchant}
	var out SendEmailReply
	if err := c.do(ctx, http.MethodPost, "/api/send_email", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error unmarshaling response body: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
