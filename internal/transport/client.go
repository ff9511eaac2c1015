package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a per-request UUID so backend logs can be matched
// to client logs.
const RequestIDHeader = "X-Request-ID"

// Client sends backend calls and presigned photo uploads.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportStats holds aggregate statistics for the transport client.
type TransportStats struct {
	TotalRequests int64
	Failures      int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
type ClientOptions struct {
	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// ProxyURL overrides the proxy taken from the environment.
	ProxyURL string

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string

	// MaxRPS is the maximum requests per second (0 = unlimited).
	MaxRPS float64
}

// DefaultClient implements Client over net/http. Redirects are followed.
type DefaultClient struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter

	requests   atomic.Int64
	failures   atomic.Int64
	durationNs atomic.Int64
}

// NewClient creates a DefaultClient from opts.
func NewClient(opts ClientOptions) (*DefaultClient, error) {
	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != "" {
		u, err := parseProxy(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		proxy = http.ProxyURL(u)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = proxy

	c := &DefaultClient{
		httpClient: &http.Client{Transport: base, Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c, nil
}

func parseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q: missing scheme or host", raw)
	}
	return u, nil
}

// Do waits for the rate limiter, sends req with a fresh request id and reads
// the whole response body.
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, requestID, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(time.Since(start), true)
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	c.record(duration, err != nil)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentLength: httpResp.ContentLength,
		Duration:      duration,
		URL:           httpResp.Request.URL.String(),
		RequestID:     requestID,
	}, nil
}

func (c *DefaultClient) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, string, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, requestID, nil
}

func (c *DefaultClient) record(d time.Duration, failed bool) {
	c.requests.Add(1)
	c.durationNs.Add(d.Nanoseconds())
	if failed {
		c.failures.Add(1)
	}
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *TransportStats {
	n := c.requests.Load()
	total := time.Duration(c.durationNs.Load())
	stats := &TransportStats{
		TotalRequests: n,
		Failures:      c.failures.Load(),
		TotalDuration: total,
	}
	if n > 0 {
		stats.AvgDuration = total / time.Duration(n)
	}
	return stats
}
