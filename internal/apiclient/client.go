// Package apiclient is the request pipeline for the Jimo HTTP API.
// Every call resolves an endpoint, encodes the body, attaches a bearer token
// from the credential provider, sends the request once and classifies the
// outcome into a closed set of errors (see errors.go). There are no retries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"Jimo/internal/core/auth"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 10 << 20
)

// Client sends authenticated requests to the Jimo API
type Client struct {
	httpClient *http.Client
	tokens     auth.TokenSource
	limiter    *rate.Limiter
	metrics    *metrics
	registerer prometheus.Registerer
	logger     *slog.Logger
	validate   *validator.Validate
	baseURL    string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit makes every request wait for a token from a limiter of the
// given rate and burst. A non-positive limit disables limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithMetrics registers request counters and latency histograms on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// New creates a client for the API rooted at baseURL. The base URL is checked
// per request so a bad value surfaces as ErrEndpoint on the call that uses it.
func New(baseURL string, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	c := &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.registerer != nil {
		m, err := newMetrics(c.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		c.metrics = m
	}
	return c, nil
}

// Execute performs one request and decodes a 2xx body into T. body may be
// nil. On failure the zero T is returned with an error from the taxonomy in
// errors.go; a partially decoded value is never returned.
func Execute[T any](ctx context.Context, c *Client, ep Endpoint, method string, body any) (T, error) {
	start := time.Now()
	requestID := uuid.NewString()

	var out T
	err := c.do(ctx, ep, method, body, requestID, &out)

	c.metrics.observe(ep.Name, method, KindOf(err), time.Since(start))
	if err != nil {
		c.logger.Debug("api request failed",
			"request_id", requestID,
			"endpoint", ep.Name,
			"method", method,
			"kind", KindOf(err).String(),
			"error", err)
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, ep Endpoint, method string, body any, requestID string, out any) error {
	op := method + " " + ep.Name

	// 1. endpoint
	target, err := ep.resolve(c.baseURL)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrEndpoint, err)
	}

	// 2. body
	var payload []byte
	var contentType string
	switch b := body.(type) {
	case Upload:
		if reqErr := b.check(); reqErr != nil {
			return fmt.Errorf("%s: %w", op, reqErr)
		}
		payload, contentType, err = b.encode()
		if err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrEncode, err)
		}
	default:
		if hasBody(body) {
			if reqErr := c.validateDraft(body); reqErr != nil {
				return fmt.Errorf("%s: %w", op, reqErr)
			}
			payload, err = json.Marshal(body)
			if err != nil {
				return fmt.Errorf("%s: %w: %w", op, ErrEncode, err)
			}
			contentType = "application/json"
		}
	}

	// 3. token
	identity, ok := c.tokens.CurrentIdentity()
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrAuth)
	}
	token, err := c.tokens.Token(ctx, identity)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// The caller gave up while a refresh was in flight
			return fmt.Errorf("%s: %w: %w", op, ErrNoResponse, ctx.Err())
		case errors.Is(err, auth.ErrAuthUnavailable):
			return fmt.Errorf("%s: %w: %w", op, ErrAuth, err)
		default:
			return fmt.Errorf("%s: %w: %w", op, ErrToken, err)
		}
	}

	// 4. send
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrNoResponse, err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrEndpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNoResponse, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNoResponse, err)
	}

	// 5. classify
	if err := classifyStatus(resp.StatusCode, data); err != nil {
		c.logger.Warn("api request rejected",
			"request_id", requestID,
			"endpoint", ep.Name,
			"method", method,
			"status", resp.StatusCode)
		return fmt.Errorf("%s: %w", op, err)
	}

	// 6. decode
	if err := c.decode(data, out, requestID, ep.Name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// classifyStatus maps a non-2xx status onto the taxonomy
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusBadRequest:
		var fields map[string]string
		if err := json.Unmarshal(body, &fields); err != nil {
			fields = nil
		}
		return &RequestError{Fields: fields}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuth, status)
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return fmt.Errorf("%w (status %d)", ErrServer, status)
	default:
		return fmt.Errorf("%w (status %d)", ErrUnknown, status)
	}
}

func hasBody(body any) bool {
	if body == nil {
		return false
	}
	v := reflect.ValueOf(body)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return !v.IsNil()
	}
	return true
}
