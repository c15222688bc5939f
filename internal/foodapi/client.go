// Package foodapi is a thin client for the FoodHub REST API and the hosted
// auth service.
package foodapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public FoodHub API.
const DefaultBaseURL = "https://foodhub-api.tariqul.dev/api"

// IdempotencyHeader carries the client-generated key of a create request.
const IdempotencyHeader = "Idempotency-Key"

// BreakerConfig configures the circuit breaker guarding the API.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// MaxRequests allowed while half-open.
	MaxRequests uint32
	// Interval clears counts while closed; zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig

	// Transport is wrapped with otelhttp; nil means http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *zap.Logger
}

// Client calls the FoodHub REST API.
type Client struct {
	base *url.URL
	http *http.Client
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	return &Client{
		base: base,
		http: newHTTPClient(cfg),
		cb:   newBreaker("foodapi", cfg.Breaker, lg),
	}, nil
}

func newHTTPClient(cfg Config) *http.Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport, opts...),
	}
}

func newBreaker(name string, cfg BreakerConfig, lg *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// Client errors say nothing about the health of the API.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *Error
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

// BreakerState reports the state of the circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

// Healthy returns an error while the breaker is open.
func (c *Client) Healthy(context.Context) error {
	if c.cb.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	return nil
}

type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
	header http.Header
	// auth requires a bearer token in the context.
	auth bool
}

// do performs the request and returns the raw "data" member of the
// response envelope.
func (c *Client) do(ctx context.Context, r request) (jx.Raw, error) {
	token := TokenFromContext(ctx)
	if r.auth && token == "" {
		return nil, ErrUnauthorized
	}

	u, err := c.base.Parse(strings.TrimPrefix(r.path, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse path")
	}
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		var rd io.Reader
		if r.body != nil {
			rd = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, u.String(), rd)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		for k, vs := range r.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if r.body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read body")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newError(resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		zctx.From(ctx).Debug("FoodHub API request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}

	data, err := unwrapData(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	return data, nil
}
