// Package streamers talks to the re-streamer REST API on behalf of the console.
package streamers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
	"github.com/Its-donkey/restreamer-console/logging"
)

const (
	streamersPath  = "/api/streamers"
	defaultTimeout = 8 * time.Second
	logCategory    = "api-client"
	maxErrorBody   = 4 * 1024
)

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %s", e.Method, e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// APIBase derives the API base URL from the page the console is served from:
// the page's scheme and hostname with the configured API port.
func APIBase(pageURL string, port int) (string, error) {
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid api port %d", port)
	}
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("page url %q needs a scheme and host", pageURL)
	}
	return u.Scheme + "://" + net.JoinHostPort(u.Hostname(), strconv.Itoa(port)), nil
}

// Client issues roster requests against a single API base.
type Client struct {
	base   string
	http   *http.Client
	logger *logging.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client for base, e.g. "http://host:8880".
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimSuffix(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the API base the client was built with.
func (c *Client) Base() string {
	return c.base
}

// FetchStreamers retrieves the full roster in server order.
func (c *Client) FetchStreamers(ctx context.Context) ([]model.ServerStreamerRecord, error) {
	body, err := c.do(ctx, http.MethodGet, c.base+streamersPath, nil)
	if err != nil {
		return nil, err
	}
	var records []model.ServerStreamerRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode streamers: %w", err)
	}
	if records == nil {
		return nil, errors.New("decode streamers: response is not a JSON array")
	}
	return records, nil
}

// SetEnabled asks the API to enable or disable one streamer. The id is sent
// as-is, path-escaped. The response body is ignored.
func (c *Client) SetEnabled(ctx context.Context, id string, enable bool) error {
	if id == "" {
		return errors.New("streamer id is required")
	}
	endpoint := c.base + streamersPath + "/" + url.PathEscape(id)
	_, err := c.do(ctx, http.MethodPatch, endpoint, model.EnableRequest{Enable: enable})
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(logging.RequestIDHeader, requestID)

	trace := c.logger.WithRequestID(requestID).
		WithCategory(logCategory).
		WithField("method", method).
		WithField("url", endpoint)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		trace.Error("request failed", err)
		return nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	trace.WithField("status", resp.StatusCode).
		WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		trace.Error("read response body", err)
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(responseBody))
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
		trace.Warn("unexpected status")
		return nil, &StatusError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       message,
		}
	}
	trace.Debug("request completed")
	return responseBody, nil
}
