// Package scraper provides the shared outbound HTTP client used by the forum
// client and the course directory providers: request pacing, retry with
// exponential backoff, User-Agent handling, and JSON/HTML decoding helpers.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/ratelimit"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	// Module labels metrics (forum, uwapi, calendar).
	Module string

	Timeout      time.Duration
	MaxRetries   int
	RetryInitial time.Duration

	// Pacing is the minimum spacing between requests. Zero disables pacing.
	Pacing time.Duration

	// UserAgent is sent on every request. Empty picks a random browser UA per request.
	UserAgent string

	Metrics *metrics.Metrics

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Client is an HTTP client with pacing, retries and response decoding.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Limiter
	opts       Options
}

// NewClient creates a new client.
func NewClient(opts Options) *Client {
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var pacer *ratelimit.Limiter
	if opts.Pacing > 0 {
		pacer = ratelimit.NewCooldown(opts.Pacing)
	}

	return &Client{httpClient: httpClient, pacer: pacer, opts: opts}
}

// NoRetry returns a client sharing this one's transport and pacing that
// makes a single attempt per call. Used for non-idempotent writes.
func (c *Client) NoRetry() *Client {
	clone := *c
	clone.opts.MaxRetries = 0
	return &clone
}

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do sends the request built by newReq, retrying transient failures.
// Non-2xx responses become *errors.HTTPError. Caller closes the body.
func (c *Client) Do(ctx context.Context, newReq RequestFunc) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.opts.MaxRetries, c.opts.RetryInitial, func() error {
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.userAgent())
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			c.recordError(classifyTransportError(err))
			return fmt.Errorf("request failed: %w", err)
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			httpErr := apperrors.NewHTTPError(req.URL.Redacted(), r.StatusCode)
			if body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody)); len(body) > 0 {
				httpErr.Err = fmt.Errorf("%w: %s", httpErr.Err, strings.TrimSpace(string(body)))
			}
			_ = r.Body.Close()
			c.recordError(classifyStatus(r.StatusCode))
			return httpErr
		}

		resp = r
		return nil
	})

	c.recordRequest(err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get performs a GET with optional extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		return req, nil
	})
}

// GetJSON performs a GET and decodes a JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	h := http.Header{"Accept": []string{"application/json"}}
	copyHeader(h, header)

	resp, err := c.Get(ctx, rawURL, h)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeJSON(resp.Body, out)
}

// PostForm posts form-encoded data and decodes a JSON body into out.
// out may be nil when the response body is irrelevant.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header, out any) error {
	encoded := form.Encode()
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		copyHeader(req.Header, header)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeJSON(resp.Body, out)
}

// GetDocument performs a GET request and parses the response as HTML
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL, http.Header{
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": []string{"en-CA,en;q=0.9"},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func (c *Client) userAgent() string {
	if c.opts.UserAgent != "" {
		return c.opts.UserAgent
	}
	return uarand.GetRandom()
}

func (c *Client) recordRequest(err error, elapsed time.Duration) {
	if c.opts.Metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		status = "not_found"
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		status = "timeout"
	default:
		status = "error"
	}
	c.opts.Metrics.RecordScraperRequest(c.opts.Module, status, elapsed.Seconds())
}

func (c *Client) recordError(errorType string) {
	if c.opts.Metrics == nil || errorType == "" {
		return
	}
	c.opts.Metrics.RecordHTTPError(errorType, c.opts.Module)
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "unauthorized"
	case status == http.StatusNotFound:
		return ""
	case status >= 500:
		return "server"
	default:
		return "client"
	}
}

func classifyTransportError(err error) string {
	if isTimeout(err) {
		return "timeout"
	}
	return "network"
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Set(k, v)
		}
	}
}
