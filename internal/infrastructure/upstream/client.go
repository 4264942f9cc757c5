// Package upstream calls the order and catalog services through the
// sidecar's service-invocation API:
//
//	<base>/v1.0/invoke/<app-id>/method/<method>
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"go-storefront-sse/internal/infrastructure/logger"
	"go-storefront-sse/internal/infrastructure/metrics"
)

// ErrUnavailable is returned while the circuit for an app is open.
var ErrUnavailable = errors.New("upstream service unavailable")

// StatusError is returned when the upstream answered with a non-2xx status.
type StatusError struct {
	App    string
	Method string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invoking %s/%s: upstream status %d", e.App, e.Method, e.Status)
}

// StatusOf returns the HTTP status a caller should surface for err: the
// upstream status when there was one, otherwise 500.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return http.StatusInternalServerError
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// Client invokes methods on upstream apps. Each app gets its own circuit
// breaker so a failing catalog does not trip order calls.
type Client struct {
	baseURL  string
	http     *http.Client
	cfg      Config
	breakers map[string]*gobreaker.CircuitBreaker
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func NewClient(cfg Config, apps []string, log logger.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(apps)),
		logger:   log.WithField("component", "upstream"),
		metrics:  m,
	}
	for _, app := range apps {
		c.breakers[app] = c.newBreaker(app)
	}
	return c
}

func (c *Client) newBreaker(app string) *gobreaker.CircuitBreaker {
	failures := c.cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    app,
		Timeout: c.cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx answers are the caller's problem, not a sign the app is down.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warnf("Circuit breaker for %s changed from %s to %s", name, from, to)
		},
	})
}

// Invoke calls method on app and returns the raw JSON response body. body is
// marshaled as the JSON request payload when non-nil.
func (c *Client) Invoke(ctx context.Context, app, httpMethod, method string, body any) (json.RawMessage, error) {
	cb, ok := c.breakers[app]
	if !ok {
		return nil, fmt.Errorf("invoking %s/%s: unknown app", app, method)
	}

	out, err := cb.Execute(func() (interface{}, error) {
		return c.do(ctx, app, httpMethod, method, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.UpstreamRequest(app, "breaker_open")
			return nil, fmt.Errorf("invoking %s/%s: %w", app, method, ErrUnavailable)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) do(ctx context.Context, app, httpMethod, method string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request for %s/%s: %w", app, method, err)
		}
		reqBody = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/v1.0/invoke/%s/method/%s", c.baseURL, app, strings.TrimLeft(method, "/"))
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request for %s/%s: %w", app, method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.UpstreamRequest(app, "error")
		return nil, fmt.Errorf("invoking %s/%s: %w", app, method, err)
	}
	defer resp.Body.Close()

	c.metrics.UpstreamRequest(app, strconv.Itoa(resp.StatusCode))
	c.logger.Debugf("Service invocation %s %s/%s status %d", httpMethod, app, method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{App: app, Method: method, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s/%s: %w", app, method, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invoking %s/%s: response is not valid JSON", app, method)
	}
	return json.RawMessage(raw), nil
}
