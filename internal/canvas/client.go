// Package canvas is a small read-only client for the Canvas LMS REST API.
// It fetches discussion posts, teaching staff and assignment submissions.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiPrefix       = "/api/v1"
	defaultPerPage  = 100
	maxListPages    = 200
	maxErrorBodyLen = 512
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client talks to one Canvas instance.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("canvas %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("canvas base url is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid canvas base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid canvas base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		token:   cfg.Token,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "canvas_client")),
	}, nil
}

// getJSON performs a GET against path below /api/v1 and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	// path arrives escaped; RawPath keeps encoded separators such as %2F intact.
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return fmt.Errorf("invalid canvas path %q: %w", path, err)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + apiPrefix + unescaped
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + apiPrefix + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("canvas request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "canvas request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			URL:        path,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode canvas response for %s: %w", path, err)
	}
	return nil
}

// listAll pages through a list endpoint until a short page.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	for page := 1; page <= maxListPages; page++ {
		q := cloneValues(query)
		q.Set("per_page", strconv.Itoa(defaultPerPage))
		q.Set("page", strconv.Itoa(page))

		var batch []T
		if err := c.getJSON(ctx, path, q, &batch); err != nil {
			return all, err
		}
		all = append(all, batch...)
		if len(batch) < defaultPerPage {
			return all, nil
		}
	}
	return all, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func coursePath(courseID string, parts ...string) string {
	segs := append([]string{"courses", url.PathEscape(courseID)}, parts...)
	return "/" + strings.Join(segs, "/")
}
