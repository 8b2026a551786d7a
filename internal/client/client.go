// Package client is a typed REST client for the journey /api surface.
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
	"sync"
	"time"

	"journey/internal/core"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("client")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one journey server. A failed call is returned as is;
// the client never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	ctx, span := tracer.Start(ctx, method+" "+path)
	defer span.End()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		span.RecordError(apiErr)
		return resp.StatusCode, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) ListObjectives(ctx context.Context) ([]core.Objective, error) {
	var out []core.Objective
	_, err := c.do(ctx, http.MethodGet, "/api/objectives", nil, &out)
	return out, err
}

// UpsertObjective posts o. created is true when the server inserted it.
func (c *Client) UpsertObjective(ctx context.Context, o core.Objective) (core.Objective, bool, error) {
	var out core.Objective
	status, err := c.do(ctx, http.MethodPost, "/api/objectives", o, &out)
	return out, status == http.StatusCreated, err
}

func (c *Client) ReplaceObjective(ctx context.Context, o core.Objective) error {
	_, err := c.do(ctx, http.MethodPut, "/api/objectives/"+url.PathEscape(o.ID), o, nil)
	return err
}

func (c *Client) GetSettings(ctx context.Context) (core.Settings, error) {
	var out core.Settings
	_, err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

func (c *Client) SaveSettings(ctx context.Context, rate decimal.Decimal) (core.Settings, error) {
	var out core.Settings
	_, err := c.do(ctx, http.MethodPost, "/api/settings", core.Settings{ExchangeRate: rate}, &out)
	return out, err
}

// RefreshSettings asks the server to fetch and store the external quote.
func (c *Client) RefreshSettings(ctx context.Context) (core.Settings, error) {
	var out core.Settings
	_, err := c.do(ctx, http.MethodPost, "/api/settings/refresh", nil, &out)
	return out, err
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	_, err := c.do(ctx, http.MethodGet, "/api/transactions", nil, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	_, err := c.do(ctx, http.MethodPost, "/api/transactions", tx, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/transactions/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

func (c *Client) Summary(ctx context.Context) (core.Summary, error) {
	var out core.Summary
	_, err := c.do(ctx, http.MethodGet, "/api/summary", nil, &out)
	return out, err
}

// DepositResult mirrors the body of the atomic deposit endpoints.
type DepositResult struct {
	Transaction core.Transaction `json:"transaction"`
	Objective   *core.Objective  `json:"objective,omitempty"`
}

func (c *Client) Deposit(ctx context.Context, tx core.Transaction) (DepositResult, error) {
	var out DepositResult
	_, err := c.do(ctx, http.MethodPost, "/api/deposits", tx, &out)
	return out, err
}

func (c *Client) ReverseDeposit(ctx context.Context, id int64) (DepositResult, error) {
	var out DepositResult
	_, err := c.do(ctx, http.MethodDelete, "/api/deposits/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// Login exchanges credentials for a session token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	in := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}
	var out struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/login", in, &out); err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}
