package notifications

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/keys"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/notify"
)

type recorder struct {
	calls []string
}

func (r *recorder) MarkAsRead(_ context.Context, id model.ID) error {
	r.calls = append(r.calls, "read:"+string(id))
	return nil
}

func (r *recorder) MarkAllAsRead(context.Context) error {
	r.calls = append(r.calls, "read-all")
	return nil
}

func (r *recorder) DeleteNotification(_ context.Context, id model.ID) error {
	r.calls = append(r.calls, "delete:"+string(id))
	return nil
}

func (r *recorder) ClearAllNotifications(context.Context) error {
	r.calls = append(r.calls, "clear")
	return nil
}

func (r *recorder) FetchNextPage(context.Context) error {
	r.calls = append(r.calls, "next")
	return nil
}

func (r *recorder) SubscribeToEvent(_ context.Context, id string) error {
	r.calls = append(r.calls, "sub:"+id)
	return nil
}

func (r *recorder) UnsubscribeFromEvent(_ context.Context, id string) error {
	r.calls = append(r.calls, "unsub:"+id)
	return nil
}

func newList(t *testing.T, snap notify.Snapshot) (Model, *recorder) {
	t.Helper()
	r := &recorder{}
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	m := New(r, keys.DefaultKeyMap(), 100, 30).WithClock(func() time.Time { return now })
	m.SetSnapshot(snap)
	return m, r
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func run(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	m, cmd := m.Update(msg)
	if cmd != nil {
		_ = cmd()
	}
	return m
}

func TestSubscribeUsesEventReference(t *testing.T) {
	m, r := newList(t, notify.Snapshot{Notifications: []model.Notification{
		{ID: "1", Title: "Reminder", ReferenceType: "EVENT", ReferenceID: "77"},
	}})

	m = run(t, m, keyPress("s"))
	m = run(t, m, keyPress("u"))

	assert.Equal(t, []string{"sub:77", "unsub:77"}, r.calls)
	_ = m
}

func TestSubscribeWithoutEventShowsNotice(t *testing.T) {
	m, r := newList(t, notify.Snapshot{Notifications: []model.Notification{
		{ID: "1", Title: "Maintenance", NotificationType: model.TypeSystemAnnouncement},
	}})

	m = run(t, m, keyPress("s"))

	assert.Empty(t, r.calls)
	assert.Contains(t, m.View(), "not about an event")
}

func TestNextPageOnlyWhenMore(t *testing.T) {
	m, r := newList(t, notify.Snapshot{Notifications: []model.Notification{{ID: "1", Title: "a"}}})

	m = run(t, m, keyPress("n"))
	assert.Empty(t, r.calls)
	assert.Contains(t, m.View(), "No more notifications")

	m.SetSnapshot(notify.Snapshot{Notifications: []model.Notification{{ID: "1", Title: "a"}}, HasMore: true})
	_ = run(t, m, keyPress("n"))
	assert.Equal(t, []string{"next"}, r.calls)
}

func TestSetSnapshotKeepsCursorInRange(t *testing.T) {
	m, r := newList(t, notify.Snapshot{Notifications: []model.Notification{
		{ID: "3", Title: "c"}, {ID: "2", Title: "b"}, {ID: "1", Title: "a"},
	}})

	m = run(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = run(t, m, tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, model.ID("1"), sel.ID)

	m.SetSnapshot(notify.Snapshot{Notifications: []model.Notification{{ID: "3", Title: "c"}}})
	sel, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, model.ID("3"), sel.ID)

	m = run(t, m, keyPress("d"))
	assert.Equal(t, []string{"delete:3"}, r.calls)
}

func TestClearAllAsksFirst(t *testing.T) {
	m, r := newList(t, notify.Snapshot{Notifications: []model.Notification{{ID: "1", Title: "a"}}})

	m, _ = m.Update(keyPress("C"))
	assert.True(t, m.Confirming())
	assert.Empty(t, r.calls)
	assert.Contains(t, m.View(), "Clear all 1 notifications?")
}

func TestEmptyStates(t *testing.T) {
	m, _ := newList(t, notify.Snapshot{Loading: true})
	assert.Contains(t, m.View(), "Loading notifications")

	m.SetSnapshot(notify.Snapshot{})
	assert.Contains(t, m.View(), "all caught up")
}

func TestItemRendersAgeAndLink(t *testing.T) {
	m, _ := newList(t, notify.Snapshot{Notifications: []model.Notification{{
		ID:               "1",
		Title:            "Venue moved",
		Content:          "Now in Hall B",
		NotificationType: model.TypeVenueChange,
		ReferenceType:    "EVENT",
		ReferenceID:      "5",
		CreatedAt:        "2026-10-19T09:00:00",
	}}})

	view := m.View()
	assert.Contains(t, view, "Venue moved")
	assert.Contains(t, view, "3h ago")
	assert.Contains(t, view, "/events/5")
	assert.Contains(t, view, "Venue change")
}
