package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies a notification. The gateway may send values
// outside the known set; those are displayed in a generic bucket.
type NotificationType string

const (
	TypeEventRegistration  NotificationType = "EVENT_REGISTRATION"
	TypeEventReminder      NotificationType = "EVENT_REMINDER"
	TypeEventCancellation  NotificationType = "EVENT_CANCELLATION"
	TypeEventUpdate        NotificationType = "EVENT_UPDATE"
	TypeVenueChange        NotificationType = "VENUE_CHANGE"
	TypeSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
)

// KnownTypes lists every notification type the client understands, in
// display order.
var KnownTypes = []NotificationType{
	TypeEventRegistration,
	TypeEventReminder,
	TypeEventCancellation,
	TypeEventUpdate,
	TypeVenueChange,
	TypeSystemAnnouncement,
}

// Known reports whether t is one of KnownTypes.
func (t NotificationType) Known() bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Label returns a human-readable name for the type.
func (t NotificationType) Label() string {
	switch t {
	case TypeEventRegistration:
		return "Event registration"
	case TypeEventReminder:
		return "Event reminder"
	case TypeEventCancellation:
		return "Event cancellation"
	case TypeEventUpdate:
		return "Event update"
	case TypeVenueChange:
		return "Venue change"
	case TypeSystemAnnouncement:
		return "System announcement"
	default:
		return "Notification"
	}
}

// ID is an opaque notification identifier. The gateway sends either a JSON
// string or a number; both are normalized to their string form.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Notification is a single entry delivered by the notification gateway.
type Notification struct {
	// ID is immutable once created server-side.
	ID ID `json:"id"`

	Title string `json:"title"`

	// Content is the body text. Some gateway versions send it as "message".
	Content string `json:"content"`

	NotificationType NotificationType `json:"notificationType"`

	// ReferenceType and ReferenceID point at a related domain entity
	// (for example an event). Either one missing means there is no link.
	ReferenceType string `json:"referenceType,omitempty"`
	ReferenceID   string `json:"referenceId,omitempty"`

	// CreatedAt is kept as a string so malformed values can be displayed
	// gracefully instead of failing the whole page. Epoch numbers and
	// date-time arrays are converted on decode.
	CreatedAt string `json:"createdAt,omitempty"`

	// ReadAt is the canonical read signal; Read is the legacy flag. Any
	// non-null value other than "" counts as read.
	ReadAt *string `json:"readAt"`
	Read   bool    `json:"read"`

	// Important notifications raise an interruptive alert on arrival.
	Important bool `json:"important,omitempty"`
}

// UnmarshalJSON decodes a notification, accepting "message" as an alias
// for "content", numeric reference ids and non-string timestamps.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var raw struct {
		plain
		Message     string          `json:"message"`
		ReferenceID json.RawMessage `json:"referenceId"`
		CreatedAt   json.RawMessage `json:"createdAt"`
		ReadAt      json.RawMessage `json:"readAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Notification(raw.plain)
	if n.Content == "" {
		n.Content = raw.Message
	}
	n.CreatedAt = timestampText(raw.CreatedAt)
	if v := bytes.TrimSpace(raw.ReadAt); len(v) > 0 && !bytes.Equal(v, []byte("null")) {
		ts := timestampText(v)
		n.ReadAt = &ts
	}
	if len(raw.ReferenceID) > 0 {
		var ref ID
		if err := ref.UnmarshalJSON(raw.ReferenceID); err != nil {
			return fmt.Errorf("decoding referenceId: %w", err)
		}
		n.ReferenceID = string(ref)
	}
	return nil
}

// IsRead reports whether the notification has been read.
func (n Notification) IsRead() bool {
	if n.ReadAt != nil && *n.ReadAt != "" {
		return true
	}
	return n.Read
}

// MarkRead flags the notification as read. It never clears an existing
// read timestamp.
func (n *Notification) MarkRead(now time.Time) {
	n.Read = true
	if n.ReadAt == nil || *n.ReadAt == "" {
		ts := now.UTC().Format(time.RFC3339)
		n.ReadAt = &ts
	}
}

// Link returns the in-app path of the referenced entity, or "" when the
// notification carries no reference.
func (n Notification) Link() string {
	if n.ReferenceType == "" || n.ReferenceID == "" {
		return ""
	}
	kind := strings.ToLower(n.ReferenceType)
	if kind == "event" {
		return "/events/" + n.ReferenceID
	}
	return "/" + kind + "s/" + n.ReferenceID
}

// EventID returns the referenced event id, if the notification points at
// an event.
func (n Notification) EventID() (string, bool) {
	if strings.EqualFold(n.ReferenceType, "event") && n.ReferenceID != "" {
		return n.ReferenceID, true
	}
	return "", false
}

// timestampText turns a raw JSON timestamp into the string form kept on
// the notification. Strings pass through. Epoch numbers (seconds or
// milliseconds) and [y,m,d,h,min,s,nanos] arrays become RFC 3339. Anything
// else is kept as its JSON text, which Age reports as "Invalid date".
func timestampText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '[':
		var parts []int
		if err := json.Unmarshal(raw, &parts); err == nil && len(parts) >= 3 {
			for len(parts) < 7 {
				parts = append(parts, 0)
			}
			t := time.Date(parts[0], time.Month(parts[1]), parts[2],
				parts[3], parts[4], parts[5], parts[6], time.UTC)
			return t.Format(time.RFC3339Nano)
		}
	default:
		var num json.Number
		if err := json.Unmarshal(raw, &num); err == nil {
			if v, err := num.Int64(); err == nil {
				if v > 1e11 || v < -1e11 {
					return time.UnixMilli(v).UTC().Format(time.RFC3339Nano)
				}
				return time.Unix(v, 0).UTC().Format(time.RFC3339Nano)
			}
		}
	}
	return string(raw)
}

// createdAtLayouts are the timestamp formats seen from the gateway.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CreatedTime parses CreatedAt.
func (n Notification) CreatedTime() (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, n.CreatedAt); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized createdAt %q", n.CreatedAt)
}

// Age returns a relative-time label for display. Missing timestamps read
// "Recently" and unparsable ones "Invalid date".
func (n Notification) Age(now time.Time) string {
	if n.CreatedAt == "" {
		return "Recently"
	}
	t, err := n.CreatedTime()
	if err != nil {
		return "Invalid date"
	}
	return RelativeTime(now, t)
}

// RelativeTime returns a human-friendly relative time string.
func RelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
