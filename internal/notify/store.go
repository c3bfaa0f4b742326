// Package notify holds the client-side notification state for one
// authenticated session and mediates every call to the gateway.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/gateway"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/obs"
	"github.com/nhle/campus-notifier/internal/preference"
)

var (
	// ErrInvalidPage is returned for a negative page or non-positive size.
	ErrInvalidPage = errors.New("page must be >= 0 and size > 0")

	// ErrAlertNotFound is returned when dismissing an unknown alert.
	ErrAlertNotFound = errors.New("alert not found")
)

// deliveryTTL bounds how long a delivered notification ID is remembered
// for duplicate suppression.
const deliveryTTL = 10 * time.Minute

// Snapshot is a deep copy of the store state handed to presentation code.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	// Err is the last listing failure, cleared by the next successful fetch.
	Err error
	// Stale is set when a mutation failed after being applied locally.
	Stale       bool
	Page        int
	PageSize    int
	HasMore     bool
	Alerts      []Alert
	Preferences preference.Snapshot
	PrefsErr    error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single writer of the working set, unread counter, alerts
// and preference draft. Presentation code reads snapshots and calls the
// operations below; it never mutates state directly.
type Store struct {
	gw    gateway.Gateway
	prefs *preference.Reconciler
	log   *zap.Logger
	now   func() time.Time
	seen  *cache.Cache

	mu       sync.Mutex
	items    []model.Notification
	unread   int
	loading  int
	err      error
	stale    bool
	page     int
	pageSize int
	hasMore  bool
	readIDs  map[model.ID]struct{}
	alerts   []Alert
	prefsErr error
	// gen increments on Reset so that responses from a previous session
	// are discarded.
	gen uint64

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a store backed by gw.
func NewStore(gw gateway.Gateway, opts ...Option) *Store {
	s := &Store{
		gw:      gw,
		prefs:   preference.NewReconciler(gw),
		log:     zap.NewNop(),
		now:     time.Now,
		seen:    cache.New(deliveryTTL, 2*deliveryTTL),
		readIDs: make(map[model.ID]struct{}),
		subs:    make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchNotifications loads one page from the gateway. Page 0 replaces the
// working set; later pages append, skipping IDs already present. On
// failure the working set is left untouched and the error is recorded.
func (s *Store) FetchNotifications(ctx context.Context, page, size int) error {
	if page < 0 || size <= 0 {
		return ErrInvalidPage
	}

	s.mu.Lock()
	gen := s.gen
	s.loading++
	s.mu.Unlock()
	s.broadcast()

	res, err := s.gw.ListNotifications(ctx, page, size)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.loading--
	if err != nil {
		s.err = err
		s.mu.Unlock()
		obs.WithTrace(ctx, s.log).Warn("fetch notifications failed",
			zap.Int("page", page), zap.Error(err))
		s.broadcast()
		return fmt.Errorf("fetching page %d: %w", page, err)
	}

	incoming := s.keepRead(res.Content)
	if page == 0 {
		s.items = dedupe(incoming)
		s.stale = false
	} else {
		s.items = appendNew(s.items, incoming)
	}
	s.err = nil
	s.page = page
	s.pageSize = size
	s.hasMore = res.HasMore(size)
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// FetchNextPage loads the page after the last one fetched.
func (s *Store) FetchNextPage(ctx context.Context) error {
	s.mu.Lock()
	next, size, more := s.page+1, s.pageSize, s.hasMore
	s.mu.Unlock()
	if !more || size == 0 {
		return nil
	}
	return s.FetchNotifications(ctx, next, size)
}

// FetchUnreadCount overwrites the counter with the gateway's value.
// Failures are logged only since this runs in the background.
func (s *Store) FetchUnreadCount(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	n, err := s.gw.UnreadCount(ctx)
	if err != nil {
		obs.WithTrace(ctx, s.log).Warn("fetch unread count failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if n < 0 {
		n = 0
	}
	s.unread = n
	s.mu.Unlock()
	s.broadcast()
}

// MarkAsRead flips the entry to read and decrements the counter, then
// tells the gateway. A failed call is not rolled back: the store is
// flagged stale and an error alert is raised.
func (s *Store) MarkAsRead(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	gen := s.gen
	s.readIDs[id] = struct{}{}
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].IsRead() {
			s.items[i].MarkRead(s.now())
			s.decrement()
		}
		break
	}
	s.dropLinkedAlerts(id)
	s.mu.Unlock()
	s.broadcast()

	if err := s.gw.MarkRead(ctx, id); err != nil {
		return s.mutationFailed(ctx, gen, "Could not mark notification as read", err, zap.String("id", string(id)))
	}
	return nil
}

// MarkAllAsRead flips every entry to read and zeroes the counter.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	now := s.now()
	for i := range s.items {
		s.items[i].MarkRead(now)
		s.readIDs[s.items[i].ID] = struct{}{}
	}
	s.unread = 0
	s.alerts = keepAlerts(s.alerts, func(a Alert) bool { return a.NotificationID == "" })
	s.mu.Unlock()
	s.broadcast()

	if err := s.gw.MarkAllRead(ctx); err != nil {
		return s.mutationFailed(ctx, gen, "Could not mark all notifications as read", err)
	}
	return nil
}

// DeleteNotification removes the entry, decrementing the counter if it
// was unread.
func (s *Store) DeleteNotification(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	gen := s.gen
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].IsRead() {
			s.decrement()
		}
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		break
	}
	s.dropLinkedAlerts(id)
	s.mu.Unlock()
	s.broadcast()

	if err := s.gw.Delete(ctx, id); err != nil {
		return s.mutationFailed(ctx, gen, "Could not delete notification", err, zap.String("id", string(id)))
	}
	return nil
}

// ClearAllNotifications empties the working set and zeroes the counter.
func (s *Store) ClearAllNotifications(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.items = nil
	s.unread = 0
	s.hasMore = false
	s.page = 0
	s.alerts = keepAlerts(s.alerts, func(a Alert) bool { return a.NotificationID == "" })
	s.mu.Unlock()
	s.broadcast()

	if err := s.gw.ClearAll(ctx); err != nil {
		return s.mutationFailed(ctx, gen, "Could not clear notifications", err)
	}
	return nil
}

// SubscribeToEvent subscribes the user to notifications about an event.
// No local state changes beyond the feedback alert.
func (s *Store) SubscribeToEvent(ctx context.Context, eventID string) error {
	gen := s.generation()
	if err := s.gw.SubscribeEvent(ctx, eventID); err != nil {
		s.log.Error("subscribe failed", zap.String("event_id", eventID), zap.Error(err))
		s.pushAlert(gen, newAlert(AlertError, "Subscription failed", err.Error(), s.now()))
		return err
	}
	s.pushAlert(gen, newAlert(AlertSuccess, "Subscribed", "You will be notified about event "+eventID, s.now()))
	return nil
}

// UnsubscribeFromEvent reverses SubscribeToEvent.
func (s *Store) UnsubscribeFromEvent(ctx context.Context, eventID string) error {
	gen := s.generation()
	if err := s.gw.UnsubscribeEvent(ctx, eventID); err != nil {
		s.log.Error("unsubscribe failed", zap.String("event_id", eventID), zap.Error(err))
		s.pushAlert(gen, newAlert(AlertError, "Unsubscribe failed", err.Error(), s.now()))
		return err
	}
	s.pushAlert(gen, newAlert(AlertSuccess, "Unsubscribed", "No more notifications for event "+eventID, s.now()))
	return nil
}

// ProcessNewNotification prepends a delivered notification. Duplicates of
// entries already in the working set, or delivered recently, are ignored.
// It reports whether the notification was added.
func (s *Store) ProcessNewNotification(n model.Notification) bool {
	if n.ID == "" {
		return false
	}
	if _, dup := s.seen.Get(string(n.ID)); dup {
		return false
	}

	s.mu.Lock()
	for _, x := range s.items {
		if x.ID == n.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.seen.SetDefault(string(n.ID), struct{}{})

	if _, ok := s.readIDs[n.ID]; ok {
		n.MarkRead(s.now())
	}
	s.items = append([]model.Notification{n}, s.items...)
	if !n.IsRead() {
		s.unread++
		if n.Important {
			a := newAlert(AlertImportant, n.Title, n.Content, s.now())
			a.NotificationID = n.ID
			s.alerts = append(s.alerts, a)
		}
	}
	s.mu.Unlock()

	s.log.Debug("notification delivered", zap.String("id", string(n.ID)), zap.Bool("important", n.Important))
	s.broadcast()
	return true
}

// DismissAlert removes an alert. Dismissing an important alert also marks
// its notification read.
func (s *Store) DismissAlert(ctx context.Context, alertID string) error {
	s.mu.Lock()
	var found *Alert
	for i, a := range s.alerts {
		if a.ID == alertID {
			a := a
			found = &a
			s.alerts = append(s.alerts[:i:i], s.alerts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return ErrAlertNotFound
	}
	if found.NotificationID != "" {
		return s.MarkAsRead(ctx, found.NotificationID)
	}
	s.broadcast()
	return nil
}

// ExpireAlerts drops transient alerts older than their TTL.
func (s *Store) ExpireAlerts(now time.Time) {
	s.mu.Lock()
	before := len(s.alerts)
	s.alerts = keepAlerts(s.alerts, func(a Alert) bool { return !a.Expired(now) })
	changed := len(s.alerts) != before
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
}

// Reset clears all session state without calling the gateway.
func (s *Store) Reset() {
	s.mu.Lock()
	s.gen++
	s.items = nil
	s.unread = 0
	s.loading = 0
	s.err = nil
	s.stale = false
	s.page = 0
	s.pageSize = 0
	s.hasMore = false
	s.readIDs = make(map[model.ID]struct{})
	s.alerts = nil
	s.prefsErr = nil
	s.mu.Unlock()

	s.seen.Flush()
	s.prefs.Clear()
	s.broadcast()
}

// Preferences exposes the reconciler for read access.
func (s *Store) Preferences() *preference.Reconciler {
	return s.prefs
}

// LoadPreferences fetches the server copy of the preferences. A failure is
// logged and kept in the snapshot for the preferences view.
func (s *Store) LoadPreferences(ctx context.Context) error {
	gen := s.generation()
	err := s.prefs.Load(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.prefsErr = err
	s.mu.Unlock()
	if err != nil {
		obs.WithTrace(ctx, s.log).Warn("load preferences failed", zap.Error(err))
	}
	s.broadcast()
	return err
}

// TogglePreference flips one channel in the draft.
func (s *Store) TogglePreference(t model.NotificationType, c model.Channel) error {
	if _, err := s.prefs.Toggle(t, c); err != nil {
		return err
	}
	s.broadcast()
	return nil
}

// ResetPreferences discards unsaved edits.
func (s *Store) ResetPreferences() {
	s.prefs.Reset()
	s.broadcast()
}

// SavePreferences submits the draft. Failures leave the draft dirty and
// raise an error alert.
func (s *Store) SavePreferences(ctx context.Context) error {
	gen := s.generation()
	if err := s.prefs.Save(ctx); err != nil {
		s.log.Error("save preferences failed", zap.Error(err))
		s.pushAlert(gen, newAlert(AlertError, "Could not save preferences", err.Error(), s.now()))
		return err
	}
	s.pushAlert(gen, newAlert(AlertSuccess, "Preferences saved", "", s.now()))
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Notifications: cloneNotifications(s.items),
		UnreadCount:   s.unread,
		Loading:       s.loading > 0,
		Err:           s.err,
		Stale:         s.stale,
		Page:          s.page,
		PageSize:      s.pageSize,
		HasMore:       s.hasMore,
		Alerts:        append([]Alert(nil), s.alerts...),
		PrefsErr:      s.prefsErr,
	}
	s.mu.Unlock()

	snap.Preferences = s.prefs.Snapshot()
	return snap
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow readers only see the latest snapshot. The returned func
// unregisters the subscriber and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) broadcast() {
	snap := s.Snapshot()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// mutationFailed records a gateway failure after an optimistic update.
// Failures from a session that has since been reset are only logged.
func (s *Store) mutationFailed(ctx context.Context, gen uint64, title string, err error, fields ...zap.Field) error {
	obs.WithTrace(ctx, s.log).Error(title, append(fields, zap.Error(err))...)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return err
	}
	s.stale = true
	s.alerts = append(s.alerts, newAlert(AlertError, title, err.Error(), s.now()))
	s.mu.Unlock()
	s.broadcast()
	return err
}

// pushAlert adds a feedback alert unless the session it belongs to has
// ended.
func (s *Store) pushAlert(gen uint64, a Alert) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	s.broadcast()
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// decrement lowers the counter, never below zero. Caller must hold s.mu.
func (s *Store) decrement() {
	if s.unread > 0 {
		s.unread--
	}
}

// dropLinkedAlerts removes important alerts pointing at id. Caller must
// hold s.mu.
func (s *Store) dropLinkedAlerts(id model.ID) {
	s.alerts = keepAlerts(s.alerts, func(a Alert) bool { return a.NotificationID != id })
}

// keepRead re-applies locally read state to server entries so that read
// never reverts. Caller must hold s.mu.
func (s *Store) keepRead(ns []model.Notification) []model.Notification {
	out := cloneNotifications(ns)
	now := s.now()
	for i := range out {
		if _, ok := s.readIDs[out[i].ID]; ok && !out[i].IsRead() {
			out[i].MarkRead(now)
		}
	}
	return out
}

func keepAlerts(alerts []Alert, keep func(Alert) bool) []Alert {
	out := alerts[:0:0]
	for _, a := range alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func dedupe(ns []model.Notification) []model.Notification {
	return appendNew(nil, ns)
}

func appendNew(dst, src []model.Notification) []model.Notification {
	seen := make(map[model.ID]struct{}, len(dst)+len(src))
	for _, n := range dst {
		seen[n.ID] = struct{}{}
	}
	for _, n := range src {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		dst = append(dst, n)
	}
	return dst
}

func cloneNotifications(ns []model.Notification) []model.Notification {
	if ns == nil {
		return nil
	}
	out := make([]model.Notification, len(ns))
	for i, n := range ns {
		if n.ReadAt != nil {
			ts := *n.ReadAt
			n.ReadAt = &ts
		}
		out[i] = n
	}
	return out
}
