package clevertap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	HeaderAccountID = "X-CleverTap-Account-Id"
	HeaderPasscode  = "X-CleverTap-Passcode"
	ContentType     = "application/json; charset=utf-8"

	DefaultTimeout = 20 * time.Second

	maxResponseBytes = 1 << 20
)

// Credentials authenticate a single upload.
type Credentials struct {
	AccountID string
	Passcode  string
}

func (c Credentials) Valid() bool { return c.AccountID != "" && c.Passcode != "" }

// Response is what came back from the remote side. Non-2xx statuses are
// still responses, not errors.
type Response struct {
	StatusCode int
	Body       string
}

func (r *Response) OK() bool { return r != nil && r.StatusCode == http.StatusOK }

// Limiter bounds concurrent uploads per account.
type Limiter interface {
	Acquire(ctx context.Context, accountID string) (release func(), err error)
}

type Client struct {
	http    *http.Client
	limiter Limiter
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLimiter(l Limiter) Option { return func(c *Client) { c.limiter = l } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient builds a dispatcher. timeout <= 0 uses DefaultTimeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{http: &http.Client{Timeout: timeout}, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

var ErrMissingCredentials = errors.New("clevertap: account id and passcode are required")

// Send POSTs body to url exactly once. A nil Response with an error means no
// HTTP status was obtained (connect failure, timeout, cancellation).
func (c *Client) Send(ctx context.Context, url string, cred Credentials, body []byte) (*Response, error) {
	if !cred.Valid() {
		return nil, ErrMissingCredentials
	}
	if c.limiter != nil {
		release, err := c.limiter.Acquire(ctx, cred.AccountID)
		if err != nil {
			return nil, fmt.Errorf("acquire dispatch slot: %w", err)
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(HeaderAccountID, cred.AccountID)
	req.Header.Set(HeaderPasscode, cred.Passcode)
	req.Header.Set("Content-Type", ContentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("clevertap upload failed", "url", url, "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Response{StatusCode: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("clevertap upload", "url", url, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
	return &Response{StatusCode: resp.StatusCode, Body: string(raw)}, nil
}
