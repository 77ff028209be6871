// Package syncclient delivers completed time slices to the tabtime server
// and fetches block decisions. Delivery is best effort: a failed slice is
// logged and dropped.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "tabtime-agent"
)

// Options configures the Client
type Options struct {
	BaseURL   string // e.g. http://localhost:5000/api
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the tabtime REST API
type Client struct {
	http   *http.Client
	opts   Options
	logger zerolog.Logger
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.StatusCode)
}

// New creates a Client with sane defaults
func New(o Options, logger zerolog.Logger) *Client {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: o.Timeout},
		opts:   o,
		logger: logger.With().Str("component", "syncclient").Logger(),
	}
}

type trackRequest struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Productive bool   `json:"productive"`
	TimeSpent  int64  `json:"timeSpent"`
}

type usageRequest struct {
	Website string `json:"website"`
	Seconds int64  `json:"seconds"`
}

type statusResponse struct {
	ShouldBlock bool `json:"shouldBlock"`
}

// Send persists slice and increments the matching usage counter. The two
// calls are independent; both are attempted and their errors joined.
func (c *Client) Send(ctx context.Context, slice storage.TimeSlice) error {
	trackErr := c.do(ctx, http.MethodPost, "/track", trackRequest{
		URL:        slice.URL,
		Domain:     slice.Domain,
		Productive: slice.Productive,
		TimeSpent:  slice.TimeSpent,
	}, nil)

	usageErr := c.do(ctx, http.MethodPost, "/limits/usage", usageRequest{
		Website: slice.Domain,
		Seconds: slice.TimeSpent,
	}, nil)

	return errors.Join(trackErr, usageErr)
}

// Deliver sends slice on its own goroutine. done, if non-nil, is called with
// the outcome. Failures are never retried.
func (c *Client) Deliver(slice storage.TimeSlice, done func(error)) {
	go func() {
		err := c.Send(context.Background(), slice)
		if err != nil {
			metrics.AgentDeliveryFailures.Inc()
			c.logger.Warn().
				Err(err).
				Str("domain", slice.Domain).
				Int64("seconds", slice.TimeSpent).
				Msg("Dropping time slice after failed delivery")
		} else {
			c.logger.Debug().
				Str("domain", slice.Domain).
				Int64("seconds", slice.TimeSpent).
				Msg("Time slice delivered")
		}
		if done != nil {
			done(err)
		}
	}()
}

// Status asks the server whether domain is over its limits
func (c *Client) Status(ctx context.Context, domain string) (bool, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/limits/status/"+url.PathEscape(domain), nil, &resp); err != nil {
		return false, err
	}
	return resp.ShouldBlock, nil
}

// do issues one request. body is encoded as JSON when non-nil and the
// response is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
