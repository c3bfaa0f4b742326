package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/campus-notifier/internal/model"
)

// AuthError indicates that the bearer token was rejected by the gateway.
// It is returned by the client when a 401 or 403 response is received.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is a non-2xx response other than an auth failure.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == 404
}

// Page is one page of the caller's notifications.
type Page struct {
	Content       []model.Notification `json:"content"`
	TotalElements int                  `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Number        int                  `json:"number"`
	Last          bool                 `json:"last"`
}

// HasMore reports whether a later page exists. Gateways that omit paging
// metadata are assumed to have more when the page came back full.
func (p *Page) HasMore(size int) bool {
	if p.TotalPages > 0 {
		return p.Number+1 < p.TotalPages
	}
	if p.Last {
		return false
	}
	return len(p.Content) >= size
}

// Gateway is the contract of the remote notification service. Every call
// is scoped to the identity carried by the bearer token.
type Gateway interface {
	// ListNotifications returns a zero-based page of notifications,
	// newest first.
	ListNotifications(ctx context.Context, page, size int) (*Page, error)

	// UnreadCount returns the authoritative unread count, which may include
	// entries not yet paged into the client.
	UnreadCount(ctx context.Context) (int, error)

	MarkRead(ctx context.Context, id model.ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id model.ID) error
	ClearAll(ctx context.Context) error

	// Preferences returns the stored preference records. Types never saved
	// are absent from the result.
	Preferences(ctx context.Context) ([]model.Preference, error)

	// UpdatePreferences replaces the full preference set in one request.
	UpdatePreferences(ctx context.Context, prefs []model.Preference) error

	SubscribeEvent(ctx context.Context, eventID string) error
	UnsubscribeEvent(ctx context.Context, eventID string) error
}

// TokenSource supplies the bearer token for each request. It is owned by
// the external auth boundary; the gateway never refreshes tokens itself.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", &AuthError{StatusCode: 401, Message: "no token configured"}
	}
	return string(t), nil
}
