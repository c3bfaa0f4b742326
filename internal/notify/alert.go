package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhle/campus-notifier/internal/model"
)

// AlertKind classifies a user-facing alert.
type AlertKind int

const (
	AlertInfo AlertKind = iota
	AlertSuccess
	AlertError
	// AlertImportant is raised for important incoming notifications. It has
	// no TTL and stays until dismissed.
	AlertImportant
)

func (k AlertKind) String() string {
	switch k {
	case AlertSuccess:
		return "success"
	case AlertError:
		return "error"
	case AlertImportant:
		return "important"
	default:
		return "info"
	}
}

// alertTTL is how long transient alerts stay visible.
const alertTTL = 5 * time.Second

// Alert is a toast-style message for the user.
type Alert struct {
	ID        string
	Kind      AlertKind
	Title     string
	Message   string
	CreatedAt time.Time

	// NotificationID links an important alert to its notification.
	// Dismissing the alert marks that notification read.
	NotificationID model.ID
}

// Transient reports whether the alert expires on its own.
func (a Alert) Transient() bool {
	return a.Kind != AlertImportant
}

// Expired reports whether a transient alert has outlived its TTL.
func (a Alert) Expired(now time.Time) bool {
	return a.Transient() && now.Sub(a.CreatedAt) >= alertTTL
}

func newAlert(kind AlertKind, title, msg string, now time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   msg,
		CreatedAt: now,
	}
}
