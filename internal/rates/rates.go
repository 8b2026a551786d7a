// Package rates fetches the current USD/BRL quote from an external source.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"journey/internal/core"
	"journey/internal/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("rates")

// Quoter returns the current USD/BRL rate.
type Quoter interface {
	Quote(ctx context.Context) (decimal.Decimal, error)
}

// Recorder receives one result label per lookup ("ok", "error", "open").
type Recorder interface {
	IncrRateFetch(result string)
}

type quoteResponse struct {
	USDBRL struct {
		Bid string `json:"bid"`
	} `json:"USDBRL"`
}

// Client reads USDBRL.bid from an awesomeapi-compatible endpoint.
//
// Concurrent lookups share one request. A failed lookup is never retried.
type Client struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	group      singleflight.Group
	recorder   Recorder
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.cb = cb }
}

func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url: url,
		cb:  resilience.NewCircuitBreaker("rate-quote", resilience.DefaultBreakerSettings()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches the current USD/BRL bid. Concurrent callers share one
// request, which runs detached from any single caller's cancellation and is
// bounded by the client timeout instead.
func (c *Client) Quote(ctx context.Context) (decimal.Decimal, error) {
	v, err, shared := c.group.Do("quote", func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if shared {
		c.record("shared")
	}
	return v.(decimal.Decimal), nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "rates.Quote")
	defer span.End()
	span.SetAttributes(attribute.String("rates.url", c.url))

	result, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
		}

		var body quoteResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode quote: %w", err)
		}
		return parseBid(body.USDBRL.Bid)
	})
	if err != nil {
		span.RecordError(err)
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.record("open")
		} else {
			c.record("error")
		}
		return decimal.Decimal{}, &core.ErrExternalService{Service: "rates", Err: err}
	}

	rate := result.(decimal.Decimal)
	span.SetAttributes(attribute.String("rates.bid", rate.String()))
	c.record("ok")
	return rate, nil
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.IncrRateFetch(result)
	}
}

func parseBid(bid string) (decimal.Decimal, error) {
	bid = strings.TrimSpace(bid)
	if bid == "" {
		return decimal.Decimal{}, fmt.Errorf("quote has no USDBRL.bid")
	}
	rate, err := decimal.NewFromString(bid)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse bid %q: %w", bid, err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive bid %q", bid)
	}
	return rate, nil
}

// Static is a Quoter returning a fixed rate, used when no quote source is configured.
type Static decimal.Decimal

func (s Static) Quote(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(s), nil
}
