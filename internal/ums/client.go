// Package ums is a client for the university management system scraping API.
package ums

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/cache"
)

// SessionParam is the query parameter carrying the portal session cookie.
const SessionParam = "_ga_B0Z6G6GCD8"

var (
	ErrInvalidSession = errors.New("ums session is invalid or expired")
	ErrUnavailable    = errors.New("ums service unavailable")
	ErrMissingSession = errors.New("ums session cookie is required")
)

// APIError is a response with success=false.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ums: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("ums: %s", e.Code)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Cache, when set, keeps successful student responses for CacheTTL.
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Client calls the UMS API.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     &http.Client{Timeout: opts.Timeout},
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger,
	}
}

// Test checks that the session cookie is accepted by the portal.
func (c *Client) Test(ctx context.Context, sessionCookie string) error {
	_, err := c.get(ctx, "/ums/test", sessionCookie)
	return err
}

func (c *Client) BasicInfo(ctx context.Context, sessionCookie string) (*BasicInfo, error) {
	var info BasicInfo
	if err := c.fetch(ctx, "/ums/student/basic-info", sessionCookie, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Terms(ctx context.Context, sessionCookie string) ([]Term, error) {
	var terms []Term
	if err := c.fetch(ctx, "/ums/student/terms", sessionCookie, &terms); err != nil {
		return nil, err
	}
	return terms, nil
}

func (c *Client) Grades(ctx context.Context, sessionCookie string) ([]CourseGrade, error) {
	var grades []CourseGrade
	if err := c.fetch(ctx, "/ums/student/grades", sessionCookie, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

// cacheKey never contains the cookie itself.
func cacheKey(endpoint, sessionCookie string) string {
	sum := sha256.Sum256([]byte(sessionCookie))
	return "ums:" + endpoint + ":" + hex.EncodeToString(sum[:12])
}

func (c *Client) fetch(ctx context.Context, endpoint, sessionCookie string, out any) error {
	key := cacheKey(endpoint, sessionCookie)
	if c.cache != nil {
		if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if err := json.Unmarshal([]byte(raw), out); err == nil {
				return nil
			}
		}
	}

	data, err := c.get(ctx, endpoint, sessionCookie)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding ums %s response: %w", endpoint, err)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, string(data), c.cacheTTL); err != nil {
			c.logger.Warn("Failed to cache UMS response", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, sessionCookie string) (json.RawMessage, error) {
	if strings.TrimSpace(sessionCookie) == "" {
		return nil, ErrMissingSession
	}
	u := c.baseURL + endpoint + "?" + url.Values{SessionParam: {sessionCookie}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building ums request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidSession
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding ums envelope (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Error, Message: env.Message}
	}
	return env.Data, nil
}
