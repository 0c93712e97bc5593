package gametools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/obslog"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public GameTools.Network endpoint. No API key required.
	DefaultBaseURL = "https://api.gametools.network"

	// MaxBatchSize is the server-side cap on IDs per /bf6/multiple/ call.
	MaxBatchSize = 128

	defaultRateLimit  = time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
	retryBackoff      = time.Second
)

// Record is one player's stats payload exactly as the API returned it.
// The key set is open-ended; unknown fields pass through untouched.
type Record = map[string]any

type Client struct {
	baseURL string
	http    *fasthttp.Client

	rateLimit  time.Duration
	maxRetries int
	timeout    time.Duration

	// last request time for the shared rate limiter. The client is used
	// from a single sequential call path; no locking.
	lastRequest time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

type Option func(*Client)

func WithRateLimit(d time.Duration) Option {
	return func(c *Client) { c.rateLimit = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClock overrides the time source and sleeper. Tests use this to verify
// rate-limit waits and retry backoff without real sleeping.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &fasthttp.Client{MaxConnsPerHost: 4},
		rateLimit:  defaultRateLimit,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 1
	}
	return c
}

// ResolvePlayerID looks up a player's numeric ID by name and platform.
// The endpoint answers with either an object carrying an "id" field or a
// list whose first element is the match.
func (c *Client) ResolvePlayerID(ctx context.Context, name, platform string) (string, error) {
	data, err := c.request(ctx, fasthttp.MethodGet, "/bf6/player/", map[string]string{
		"name":     name,
		"platform": platform,
	}, nil)
	if err != nil {
		return "", err
	}
	switch v := data.(type) {
	case map[string]any:
		if id, ok := v["id"]; ok {
			return stringifyID(id), nil
		}
	case []any:
		if len(v) > 0 {
			if obj, ok := v[0].(map[string]any); ok {
				if id, ok := obj["id"]; ok {
					return stringifyID(id), nil
				}
			} else {
				return stringifyID(v[0]), nil
			}
		}
	}
	return "", &APIError{Message: fmt.Sprintf("could not resolve player: %s on %s", name, platform)}
}

// FetchStats returns the full stats object for one player looked up by name.
func (c *Client) FetchStats(ctx context.Context, name, platform string) (Record, error) {
	return c.fetchStats(ctx, map[string]string{"name": name, "platform": platform})
}

// FetchStatsByID is FetchStats keyed by a resolved player ID instead of a name.
func (c *Client) FetchStatsByID(ctx context.Context, playerID, platform string) (Record, error) {
	return c.fetchStats(ctx, map[string]string{"playerid": playerID, "platform": platform})
}

func (c *Client) fetchStats(ctx context.Context, params map[string]string) (Record, error) {
	data, err := c.request(ctx, fasthttp.MethodGet, "/bf6/stats/", params, nil)
	if err != nil {
		return nil, err
	}
	rec, ok := data.(map[string]any)
	if !ok {
		return nil, &APIError{Message: fmt.Sprintf("unexpected stats response shape: %T", data)}
	}
	return rec, nil
}

// FetchStatsBatch fetches stats for up to MaxBatchSize players in one call.
// Oversized ID lists are rejected locally before any network traffic.
func (c *Client) FetchStatsBatch(ctx context.Context, playerIDs []string, platform string) ([]Record, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	if len(playerIDs) > MaxBatchSize {
		return nil, &APIError{Message: fmt.Sprintf("maximum %d players per batch, got %d", MaxBatchSize, len(playerIDs))}
	}
	body := map[string]any{
		"playerIds": playerIDs,
		"platform":  platform,
	}
	data, err := c.request(ctx, fasthttp.MethodPost, "/bf6/multiple/", nil, body)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case []any:
		return toRecords(v), nil
	case map[string]any:
		if result, ok := v["result"].([]any); ok {
			return toRecords(result), nil
		}
		return []Record{v}, nil
	default:
		return nil, nil
	}
}

// request performs one logical API call: rate-limit wait, then up to
// maxRetries attempts with linear backoff on network failures and 5xx.
// 4xx fails immediately.
func (c *Client) request(ctx context.Context, method, path string, params map[string]string, body any) (any, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	for k, v := range params {
		req.URI().QueryArgs().Set(k, v)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &APIError{Message: fmt.Sprintf("request aborted: %v", err)}
		}
		c.waitRateLimit()

		err := c.http.DoDeadline(req, resp, c.now().Add(c.timeout))
		if err != nil {
			if ferr := c.sleepOrFail(attempt, fmt.Sprintf("request failed: %v", err)); ferr != nil {
				return nil, ferr
			}
			continue
		}

		status := resp.StatusCode()
		if status >= 500 {
			msg := fmt.Sprintf("server error %d: %s", status, truncate(string(resp.Body()), 200))
			obslog.L().Warn("gametools retry",
				zap.String("path", path),
				zap.Int("status", status),
				zap.Int("attempt", attempt+1))
			if ferr := c.sleepOrFail(attempt, msg); ferr != nil {
				return nil, ferr
			}
			continue
		}
		if status >= 400 {
			return nil, &APIError{
				Status:  status,
				Message: fmt.Sprintf("api error %d: %s", status, errorDetail(resp.Body())),
			}
		}

		var data any
		if err := json.Unmarshal(resp.Body(), &data); err != nil {
			return nil, &APIError{Message: fmt.Sprintf("invalid JSON response: %v", err)}
		}
		return data, nil
	}

	return nil, &APIError{Message: "max retries exceeded"}
}

// waitRateLimit blocks until at least rateLimit has elapsed since the
// previous request made through this client.
func (c *Client) waitRateLimit() {
	if !c.lastRequest.IsZero() {
		if elapsed := c.now().Sub(c.lastRequest); elapsed < c.rateLimit {
			c.sleep(c.rateLimit - elapsed)
		}
	}
	c.lastRequest = c.now()
}

// sleepOrFail returns the terminal APIError on the last attempt; otherwise
// it sleeps the linear backoff (1s, 2s, ...) and returns nil to continue.
func (c *Client) sleepOrFail(attempt int, message string) error {
	if attempt == c.maxRetries-1 {
		return &APIError{Message: message}
	}
	c.sleep(time.Duration(attempt+1) * retryBackoff)
	return nil
}

// errorDetail extracts the API's reported "errors" list from a 4xx body,
// falling back to the raw body prefix.
func errorDetail(body []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return strings.Join(parsed.Errors, "; ")
	}
	return truncate(string(body), 200)
}

func toRecords(items []any) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if rec, ok := it.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		// JSON numbers decode as float64; IDs are integral.
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprintf("%v", id)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
