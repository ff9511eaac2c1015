// Package api is the client for the chefriend REST backend. Every call goes
// through a transport.Client; responses use the {"code","message","result"}
// envelope and only the result is decoded into caller types.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/chefriend/chefriend-cli/internal/auth"
	"github.com/chefriend/chefriend-cli/internal/transport"
)

const refreshPath = "/api/auth/refresh"

// TokenStore supplies and updates the bearer credentials. *auth.Store
// implements it.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	// BaseURL is the backend origin, e.g. https://api.chefriend.kr.
	BaseURL string

	// Tokens provides credentials. nil sends anonymous requests.
	Tokens TokenStore

	// CacheSize bounds the GET response cache. 0 disables caching.
	CacheSize int

	// CacheTTL is how long a cached GET stays fresh.
	CacheTTL time.Duration

	// RefreshLeeway refreshes tokens this long before they expire.
	RefreshLeeway time.Duration

	Logger *slog.Logger
}

// Client calls the backend.
type Client struct {
	http    transport.Client
	baseURL string
	tokens  TokenStore
	cache   *expirable.LRU[string, []byte]
	leeway  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	refreshing singleflight.Group
}

// New builds a Client over httpClient.
func New(httpClient transport.Client, opts Options) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("api: transport client is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		http:    httpClient,
		baseURL: base,
		tokens:  opts.Tokens,
		leeway:  opts.RefreshLeeway,
		logger:  logger,
		now:     time.Now,
	}
	if opts.CacheSize > 0 {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		c.cache = expirable.NewLRU[string, []byte](opts.CacheSize, nil, ttl)
	}
	return c, nil
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Invalidate drops cached GET responses whose path starts with any prefix.
func (c *Client) Invalidate(prefixes ...string) {
	if c.cache == nil {
		return
	}
	for _, key := range c.cache.Keys() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				c.cache.Remove(key)
				break
			}
		}
	}
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	cacheable := method == http.MethodGet && c.cache != nil
	if cacheable {
		if raw, ok := c.cache.Get(target); ok {
			c.logger.Debug("api cache hit", "path", target)
			return decodeResult(raw, out, path)
		}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("api: encode %s body: %w", path, err)
		}
	}

	if err := c.refreshIfExpired(ctx); err != nil {
		return err
	}

	token := c.accessToken()
	resp, err := c.send(ctx, method, target, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens == nil || c.tokens.RefreshToken() == "" {
			return c.rejected(ctx, token, resp, path)
		}
		if err := c.refresh(ctx, token); err != nil {
			return err
		}
		token = c.accessToken()
		if resp, err = c.send(ctx, method, target, payload, token); err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return c.rejected(ctx, token, resp, path)
		}
	}

	if !resp.OK() {
		return errorFrom(resp, path)
	}

	result := gjson.GetBytes(resp.Body, "result")
	raw := []byte(result.Raw)
	if cacheable && result.Exists() {
		c.cache.Add(target, raw)
	}
	return decodeResult(raw, out, path)
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, token string) (*transport.Response, error) {
	req := &transport.Request{
		Method:  method,
		URL:     c.baseURL + target,
		Headers: map[string]string{"Accept": "application/json"},
		Body:    payload,
	}
	if payload != nil {
		req.ContentType = "application/json"
	}
	if token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, target, err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", target,
		"status", resp.StatusCode,
		"request_id", resp.RequestID,
		"duration", resp.Duration,
	)
	return resp, nil
}

func (c *Client) accessToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// refreshIfExpired refreshes ahead of the request when the access token's
// exp claim has already passed.
func (c *Client) refreshIfExpired(ctx context.Context) error {
	if c.tokens == nil || c.tokens.RefreshToken() == "" {
		return nil
	}
	token := c.tokens.AccessToken()
	if token == "" || !auth.TokenExpired(token, c.now(), c.leeway) {
		return nil
	}
	c.logger.Info("access token expired, refreshing")
	return c.refresh(ctx, token)
}

// refresh exchanges the refresh token for a new access token. Concurrent
// callers that saw the same stale token share one refresh.
func (c *Client) refresh(ctx context.Context, stale string) error {
	_, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		if current := c.tokens.AccessToken(); current != stale && current != "" {
			return nil, nil
		}

		resp, err := c.http.Do(ctx, &transport.Request{
			Method:  http.MethodPost,
			URL:     c.baseURL + refreshPath,
			Headers: map[string]string{
				"Accept": "application/json",
				"Cookie": refreshCookie(c.tokens.RefreshToken()),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("api: refresh token: %w", err)
		}
		if !resp.OK() {
			c.signOut(ctx)
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, errorFrom(resp, refreshPath))
		}

		token := gjson.GetBytes(resp.Body, "result.accessToken").String()
		if token == "" {
			token = gjson.GetBytes(resp.Body, "accessToken").String()
		}
		if token == "" {
			c.signOut(ctx)
			return nil, fmt.Errorf("%w: refresh response carried no token", ErrUnauthorized)
		}
		if err := c.tokens.SetAccessToken(ctx, token); err != nil {
			return nil, fmt.Errorf("api: store refreshed token: %w", err)
		}
		c.logger.Debug("access token refreshed")
		return nil, nil
	})
	return err
}

// rejected signs out when a sent token was refused and wraps the response
// as ErrUnauthorized.
func (c *Client) rejected(ctx context.Context, token string, resp *transport.Response, path string) error {
	if token != "" {
		c.signOut(ctx)
	}
	return fmt.Errorf("%w: %w", ErrUnauthorized, errorFrom(resp, path))
}

func (c *Client) signOut(ctx context.Context) {
	c.ClearCache()
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("clear rejected credentials", "error", err)
	}
}

func refreshCookie(token string) string {
	return (&http.Cookie{Name: "refreshToken", Value: token}).String()
}

func errorFrom(resp *transport.Response, path string) *Error {
	e := &Error{Status: resp.StatusCode, Path: path}
	if gjson.ValidBytes(resp.Body) {
		e.Code = int(gjson.GetBytes(resp.Body, "code").Int())
		e.Message = gjson.GetBytes(resp.Body, "message").String()
	}
	return e
}

func decodeResult(raw []byte, out any, path string) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s result: %w", path, err)
	}
	return nil
}
