package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// MaxWindow is the widest date range the merchant API accepts per query.
// Covering a longer history requires several queries.
const MaxWindow = 90 * 24 * time.Hour

var (
	// ErrMissingCredentials means the client id/secret were not configured.
	// Raised before any network call.
	ErrMissingCredentials = errors.New("sales: client credentials are not configured")

	// ErrAuth means the token exchange was rejected by the remote API.
	ErrAuth = errors.New("sales: token exchange rejected")

	// ErrQuery means a sales listing query failed.
	ErrQuery = errors.New("sales: listing query failed")
)

// Customer is the buyer attached to a sale. The API sends more fields; only
// the ones the gate matches on are decoded.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Sale is one transaction as reported by the merchant API.
type Sale struct {
	Status   string    `json:"status"`
	Customer *Customer `json:"customer"`
}

// Config carries the credentials and endpoints for one merchant account.
type Config struct {
	ClientID     string
	ClientSecret string
	AccountID    string
	TokenURL     string
	BaseURL      string
	Timeout      time.Duration
}

// Client talks to the merchant sales API. One instance is shared by all
// verifications; it holds no per-call state.
type Client struct {
	cfg  Config
	base *http.Client
}

// New builds a client with a retrying transport for transient failures.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return &Client{
		cfg: cfg,
		base: &http.Client{
			Transport: &retryablehttp.RoundTripper{Client: rc},
			Timeout:   cfg.Timeout,
		},
	}
}

// ExchangeToken swaps the configured client credentials for a short-lived
// bearer token. A failure here aborts the whole verification, so there is no
// recovery beyond what the transport retries.
func (c *Client) ExchangeToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.cfg.ClientID) == "" || strings.TrimSpace(c.cfg.ClientSecret) == "" {
		return "", ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: %s", ErrAuth, remoteMessage(body, status))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: malformed token response", ErrAuth)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrAuth)
	}
	return payload.AccessToken, nil
}

// ListPaidSales fetches the paid sales inside [start, end). The API caps the
// range at 90 days, so callers sweeping a longer history must call this once
// per window.
func (c *Client) ListPaidSales(ctx context.Context, token string, start, end time.Time) ([]Sale, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrQuery)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must precede end", ErrQuery)
	}
	if end.Sub(start) > MaxWindow {
		return nil, fmt.Errorf("%w: range exceeds the 90-day API limit", ErrQuery)
	}

	q := url.Values{}
	q.Set("start_date", start.UTC().Format(time.RFC3339))
	q.Set("end_date", end.UTC().Format(time.RFC3339))
	q.Set("status", "paid")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/sales?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Account-Id", c.cfg.AccountID)

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %s", ErrQuery, remoteMessage(body, status))
	}

	var payload struct {
		Data []Sale `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed listing response", ErrQuery)
	}
	return payload.Data, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.base.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// remoteMessage extracts a human-readable error from the response body,
// falling back to the HTTP status text.
func remoteMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
