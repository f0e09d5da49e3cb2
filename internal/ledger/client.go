// Package ledger talks to the spreadsheet web app that stores expense entries
// and computes monthly totals.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultKeepAlive       = 30 * time.Second

	maxErrorBody = 512
)

// ErrBackendStatus is returned when the backend answers with a non-2xx status.
var ErrBackendStatus = errors.New("ledger backend returned non-success status")

// Record is one completed expense entry as the backend expects it.
type Record struct {
	Activity string `json:"kegiatan"`
	Status   string `json:"status"`
	Date     string `json:"tanggal"`
	Amount   int64  `json:"pengeluaran"`
}

// Backend stores entries and answers period totals.
type Backend interface {
	Submit(ctx context.Context, record Record) error
	Total(ctx context.Context, periodKey string) (float64, error)
}

// Breaker guards calls to the backend; errors.CircuitBreaker satisfies it.
type Breaker interface {
	Call(fn func() error) error
}

// Client is the HTTP implementation of Backend. Every call is a single attempt.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    Breaker
	log        *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the tuned default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBreaker routes every call through b.
func WithBreaker(b Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient returns a client posting to url. A zero timeout means 30s.
func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: BuildHTTPClient(timeout),
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BuildHTTPClient returns an HTTP client tuned for backend calls. It never retries.
func BuildHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Submit posts record to the backend. Any 2xx status is success.
func (c *Client) Submit(ctx context.Context, record Record) error {
	return c.guard(func() error {
		resp, err := c.post(ctx, record)
		if err != nil {
			return fmt.Errorf("submit record: %w", err)
		}
		defer drain(resp.Body)

		if err := checkStatus(resp); err != nil {
			return fmt.Errorf("submit record: %w", err)
		}

		c.log.Debug("ledger record stored",
			slog.String("date", record.Date),
			slog.String("status", record.Status),
		)
		return nil
	})
}

type totalRequest struct {
	Sheet string `json:"sheet"`
}

type totalResponse struct {
	Total *float64 `json:"total"`
}

// Total asks the backend for the sum of the period identified by periodKey (YYYY-MM).
// A missing total is reported as zero.
func (c *Client) Total(ctx context.Context, periodKey string) (float64, error) {
	var total float64

	err := c.guard(func() error {
		resp, err := c.post(ctx, totalRequest{Sheet: periodKey})
		if err != nil {
			return fmt.Errorf("query total: %w", err)
		}
		defer drain(resp.Body)

		if err := checkStatus(resp); err != nil {
			return fmt.Errorf("query total: %w", err)
		}

		var body totalResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode total response: %w", err)
		}

		if body.Total != nil {
			total = *body.Total
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (c *Client) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}

	return c.breaker.Call(fn)
}

func (c *Client) post(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: %d %s", ErrBackendStatus, resp.StatusCode, bytes.TrimSpace(snippet))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
