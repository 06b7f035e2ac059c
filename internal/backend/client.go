// Package backend talks to the alert REST API: listing alerts for the poll
// source and deleting single alerts. The API has no bulk delete.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/filter"
)

const alertsPath = "/logs/alerts"

// maxBody caps how much of a response is read.
const maxBody = 16 << 20

var (
	// ErrUnauthorized marks 401 responses.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNotFound marks 404 responses.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable is returned while the list circuit breaker is open.
	ErrUnavailable = errors.New("backend: temporarily unavailable")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Listing is a decoded poll response.
type Listing struct {
	Alerts  []alerts.Alert
	Dropped int
}

// Client is an HTTP client for the alert API. It is safe for concurrent use.
type Client struct {
	base    string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the time source used as the ingest instant for records
// without a usable createdAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client from the backend config section.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		token:  cfg.Token,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := uint32(cfg.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alerts-list",
		Timeout: time.Duration(cfg.BreakerCooldownSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// ListAlerts fetches the current alert collection. Severity and
// acknowledgement filtering happen server-side when set in q.
func (c *Client) ListAlerts(ctx context.Context, q filter.Query) (Listing, error) {
	params := url.Values{}
	if q.Severity != "" {
		params.Set("severity", q.Severity)
	}
	if q.OnlyUnacknowledged {
		params.Set("acknowledged", "false")
	}
	target := c.base + alertsPath
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.do(ctx, http.MethodGet, target)
		if err != nil {
			return nil, err
		}
		list, dropped, err := alerts.DecodeBatch(body, c.now())
		if err != nil {
			return nil, errors.Wrap(err, "decoding alert list")
		}
		return Listing{Alerts: list, Dropped: dropped}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Listing{}, errors.Mark(errors.Wrap(err, "listing alerts"), ErrUnavailable)
		}
		return Listing{}, errors.Wrap(err, "listing alerts")
	}
	return out.(Listing), nil
}

// DeleteAlert deletes one alert by id.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("deleting alert: empty id")
	}
	target := c.base + alertsPath + "/" + url.PathEscape(id)
	if _, err := c.do(ctx, http.MethodDelete, target); err != nil {
		return errors.Wrapf(err, "deleting alert %s", id)
	}
	return nil
}

// do performs an authenticated request and returns the body of a 2xx
// response.
func (c *Client) do(ctx context.Context, method, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			Method: method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   snippet(body),
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, errors.Mark(serr, ErrUnauthorized)
		case http.StatusNotFound:
			return nil, errors.Mark(serr, ErrNotFound)
		}
		return nil, serr
	}
	return body, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
