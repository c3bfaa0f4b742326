package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nhle/campus-notifier/internal/model"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Tokens     TokenSource
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is a thin HTTP client for the notification service REST API.
// It handles Bearer token authentication, JSON marshaling, client-side
// rate limiting and retry with backoff on 429 and 5xx gateway errors.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	tracer     trace.Tracer

	// backoff is swapped in tests to avoid real sleeps.
	backoff func(attempt int) time.Duration
}

var _ Gateway = (*Client)(nil)

// NewClient creates a new gateway client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     tokens,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		maxRetries: opts.MaxRetries,
		tracer:     otel.Tracer("campus-notifier/gateway"),
		backoff:    expoJitter,
	}
}

// ListNotifications calls GET /notifications/me.
func (c *Client) ListNotifications(ctx context.Context, page, size int) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var p Page
	if err := c.do(ctx, "list", http.MethodGet, "/notifications/me?"+q.Encode(), nil, &p); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return &p, nil
}

// UnreadCount calls GET /notifications/unread-count. The service answers
// with a bare integer; an object with a "count" field is also accepted.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "unread_count", http.MethodGet, "/notifications/unread-count", nil, &raw); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var wrapped struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Count == nil {
		return 0, fmt.Errorf("decoding unread count %s", string(raw))
	}
	return *wrapped.Count, nil
}

// MarkRead calls PUT /notifications/{id}/read.
func (c *Client) MarkRead(ctx context.Context, id model.ID) error {
	path := "/notifications/" + url.PathEscape(string(id)) + "/read"
	if err := c.do(ctx, "mark_read", http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead calls PUT /notifications/mark-all-read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.do(ctx, "mark_all_read", http.MethodPut, "/notifications/mark-all-read", nil, nil); err != nil {
		return fmt.Errorf("marking all read: %w", err)
	}
	return nil
}

// Delete calls DELETE /notifications/{id}.
func (c *Client) Delete(ctx context.Context, id model.ID) error {
	path := "/notifications/" + url.PathEscape(string(id))
	if err := c.do(ctx, "delete", http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

// ClearAll calls DELETE /notifications/clear-all.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.do(ctx, "clear_all", http.MethodDelete, "/notifications/clear-all", nil, nil); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}
	return nil
}

// Preferences calls GET /notification-preferences.
func (c *Client) Preferences(ctx context.Context) ([]model.Preference, error) {
	var prefs []model.Preference
	if err := c.do(ctx, "preferences", http.MethodGet, "/notification-preferences", nil, &prefs); err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", err)
	}
	return prefs, nil
}

// UpdatePreferences calls PUT /notification-preferences with the full set.
func (c *Client) UpdatePreferences(ctx context.Context, prefs []model.Preference) error {
	if prefs == nil {
		prefs = []model.Preference{}
	}
	if err := c.do(ctx, "update_preferences", http.MethodPut, "/notification-preferences", prefs, nil); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// SubscribeEvent calls POST /notifications/subscribe/event/{eventId}.
func (c *Client) SubscribeEvent(ctx context.Context, eventID string) error {
	path := "/notifications/subscribe/event/" + url.PathEscape(eventID)
	if err := c.do(ctx, "subscribe", http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("subscribing to event %s: %w", eventID, err)
	}
	return nil
}

// UnsubscribeEvent calls DELETE /notifications/subscribe/event/{eventId}.
func (c *Client) UnsubscribeEvent(ctx context.Context, eventID string) error {
	path := "/notifications/subscribe/event/" + url.PathEscape(eventID)
	if err := c.do(ctx, "unsubscribe", http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("unsubscribing from event %s: %w", eventID, err)
	}
	return nil
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting, retries and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body interface{},
	result interface{},
) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("gateway.path", path),
		),
	)
	start := time.Now()
	code := 0
	defer func() {
		observeRequest(op, code, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		code = resp.StatusCode
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			lastErr = statusError(resp.StatusCode, method, path, respBody)
			wait := c.retryAfter(resp, attempt)
			span.AddEvent("gateway.retry", trace.WithAttributes(
				attribute.Int("attempt", attempt+1),
				attribute.Int("http.status_code", resp.StatusCode),
			))

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &AuthError{
				StatusCode: resp.StatusCode,
				Message:    errorMessage(respBody, "token rejected by "+c.baseURL),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(resp.StatusCode, method, path, respBody)
		}

		// No content to parse (e.g. 204 or an empty ack).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryable reports whether a status is worth retrying.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads the Retry-After header and computes a wait duration.
// Falls back to exponential backoff if the header is missing.
func (c *Client) retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.backoff(attempt)
}

// expoJitter returns 500ms, 1s, 2s ... capped at 30s, with ±20% jitter.
func expoJitter(attempt int) time.Duration {
	// 500ms<<6 already exceeds the cap; clamping keeps the shift from
	// overflowing for large retry budgets.
	attempt = min(max(attempt, 0), 6)
	d := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	j := 1 + (rand.Float64()*2-1)*0.2
	return time.Duration(float64(d) * j)
}

// errorResponse covers the error bodies the campus services emit.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func errorMessage(body []byte, fallback string) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}

func statusError(status int, method, path string, body []byte) error {
	return &StatusError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Message:    errorMessage(body, http.StatusText(status)),
	}
}

// IsTransient reports whether err is worth retrying later: transport
// failures, timeouts and retryable statuses. Auth and 4xx errors are not.
func IsTransient(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryable(statusErr.StatusCode) || statusErr.StatusCode >= 500
	}
	return true
}
