// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nhle/campus-notifier/internal/gateway"
	"github.com/nhle/campus-notifier/internal/model"
)

// Fake is an in-memory gateway.Gateway. Notifications are kept newest
// first. Per-operation errors can be injected with Fail.
type Fake struct {
	mu sync.Mutex

	notifications []model.Notification
	prefs         []model.Preference
	subscriptions map[string]bool
	errs          map[string]error
	calls         map[string]int

	// Unread overrides the computed unread count when non-nil.
	Unread *int

	// Block, when set, is waited on by every call before it proceeds.
	Block chan struct{}

	// Entered, when set, receives the op name as each call starts, before
	// it waits on Block.
	Entered chan string
}

var _ gateway.Gateway = (*Fake)(nil)

// New returns a Fake seeded with the given notifications, newest first.
func New(ns ...model.Notification) *Fake {
	f := &Fake{
		subscriptions: make(map[string]bool),
		errs:          make(map[string]error),
		calls:         make(map[string]int),
	}
	f.notifications = append(f.notifications, ns...)
	return f
}

// Fail makes every subsequent call to op return err. A nil err clears it.
// Op names match the method names, e.g. "MarkRead".
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Push prepends a notification, as if the server had created it.
func (f *Fake) Push(n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append([]model.Notification{n}, f.notifications...)
}

// Notifications returns a copy of the server-side notifications.
func (f *Fake) Notifications() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.notifications...)
}

// SetPreferences replaces the stored preference records.
func (f *Fake) SetPreferences(prefs []model.Preference) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = append([]model.Preference(nil), prefs...)
}

// StoredPreferences returns the last saved preference records.
func (f *Fake) StoredPreferences() []model.Preference {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Preference(nil), f.prefs...)
}

// Subscribed reports whether the caller is subscribed to eventID.
func (f *Fake) Subscribed(eventID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[eventID]
}

// enter records the call and returns the injected error, if any. The
// caller holds no lock; enter returns with f.mu held.
func (f *Fake) enter(ctx context.Context, op string) error {
	if f.Entered != nil {
		f.Entered <- op
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			f.mu.Lock()
			f.calls[op]++
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls[op]++
	return f.errs[op]
}

func (f *Fake) ListNotifications(ctx context.Context, page, size int) (*gateway.Page, error) {
	err := f.enter(ctx, "ListNotifications")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	total := len(f.notifications)
	start := page * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &gateway.Page{
		Content:       append([]model.Notification(nil), f.notifications[start:end]...),
		TotalElements: total,
		TotalPages:    pages,
		Number:        page,
		Last:          end >= total,
	}, nil
}

func (f *Fake) UnreadCount(ctx context.Context) (int, error) {
	err := f.enter(ctx, "UnreadCount")
	defer f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if f.Unread != nil {
		return *f.Unread, nil
	}
	n := 0
	for _, x := range f.notifications {
		if !x.IsRead() {
			n++
		}
	}
	return n, nil
}

func (f *Fake) MarkRead(ctx context.Context, id model.ID) error {
	err := f.enter(ctx, "MarkRead")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].MarkRead(time.Now())
			return nil
		}
	}
	return &gateway.StatusError{StatusCode: 404, Method: "PUT", Path: "/notifications/" + string(id) + "/read", Message: "not found"}
}

func (f *Fake) MarkAllRead(ctx context.Context) error {
	err := f.enter(ctx, "MarkAllRead")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range f.notifications {
		f.notifications[i].MarkRead(now)
	}
	return nil
}

func (f *Fake) Delete(ctx context.Context, id model.ID) error {
	err := f.enter(ctx, "Delete")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return nil
		}
	}
	return &gateway.StatusError{StatusCode: 404, Method: "DELETE", Path: "/notifications/" + string(id), Message: "not found"}
}

func (f *Fake) ClearAll(ctx context.Context) error {
	err := f.enter(ctx, "ClearAll")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	f.notifications = nil
	return nil
}

func (f *Fake) Preferences(ctx context.Context) ([]model.Preference, error) {
	err := f.enter(ctx, "Preferences")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return append([]model.Preference(nil), f.prefs...), nil
}

func (f *Fake) UpdatePreferences(ctx context.Context, prefs []model.Preference) error {
	err := f.enter(ctx, "UpdatePreferences")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	f.prefs = append([]model.Preference(nil), prefs...)
	return nil
}

func (f *Fake) SubscribeEvent(ctx context.Context, eventID string) error {
	err := f.enter(ctx, "SubscribeEvent")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	f.subscriptions[eventID] = true
	return nil
}

func (f *Fake) UnsubscribeEvent(ctx context.Context, eventID string) error {
	err := f.enter(ctx, "UnsubscribeEvent")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	delete(f.subscriptions, eventID)
	return nil
}

// Seed builds n unread notifications with ids "1".."n", newest first
// (the highest id comes first).
func Seed(n int) []model.Notification {
	out := make([]model.Notification, 0, n)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i := n; i >= 1; i-- {
		out = append(out, model.Notification{
			ID:               model.ID(strconv.Itoa(i)),
			Title:            "Notification " + strconv.Itoa(i),
			Content:          "body",
			NotificationType: model.TypeEventUpdate,
			ReferenceType:    "EVENT",
			ReferenceID:      strconv.Itoa(100 + i),
			CreatedAt:        base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}
	return out
}

// SortedIDs returns the ids of ns in ascending order, for order-insensitive
// comparisons.
func SortedIDs(ns []model.Notification) []string {
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, string(n.ID))
	}
	sort.Strings(ids)
	return ids
}
