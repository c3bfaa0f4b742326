package devgateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/devgateway"
	"github.com/nhle/campus-notifier/internal/devgateway/devgatewaytest"
	"github.com/nhle/campus-notifier/internal/model"
)

func seed(t *testing.T, r *devgateway.Repository, user string, n int) []model.Notification {
	t.Helper()
	out := make([]model.Notification, 0, n)
	for i := 0; i < n; i++ {
		created, err := r.CreateNotification(context.Background(), user, model.Notification{
			Title:            "Event " + string(rune('A'+i)),
			NotificationType: model.TypeEventReminder,
			ReferenceType:    "EVENT",
			ReferenceID:      "77",
		})
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestRepository_ListNewestFirstWithPaging(t *testing.T) {
	r := devgatewaytest.NewTestRepository(t)
	ctx := context.Background()
	created := seed(t, r, "alice", 5)
	seed(t, r, "bob", 2)

	page0, total, err := r.ListNotifications(ctx, "alice", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page0, 2)
	assert.Equal(t, created[4].ID, page0[0].ID)
	assert.Equal(t, created[3].ID, page0[1].ID)

	page2, _, err := r.ListNotifications(ctx, "alice", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, created[0].ID, page2[0].ID)

	_, err = time.Parse("2006-01-02T15:04:05", page0[0].CreatedAt)
	assert.NoError(t, err)
}

func TestRepository_ReadStateAndCounts(t *testing.T) {
	r := devgatewaytest.NewTestRepository(t)
	ctx := context.Background()
	created := seed(t, r, "alice", 3)

	n, err := r.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	id := mustID(t, created[0])
	require.NoError(t, r.MarkRead(ctx, "alice", id))
	require.NoError(t, r.MarkRead(ctx, "alice", id))
	assert.ErrorIs(t, r.MarkRead(ctx, "bob", id), devgateway.ErrNotFound)

	n, _ = r.UnreadCount(ctx, "alice")
	assert.Equal(t, 2, n)

	require.NoError(t, r.MarkAllRead(ctx, "alice"))
	n, _ = r.UnreadCount(ctx, "alice")
	assert.Zero(t, n)

	items, _, err := r.ListNotifications(ctx, "alice", 0, 10)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.IsRead())
	}
}

func TestRepository_DeleteAndClear(t *testing.T) {
	r := devgatewaytest.NewTestRepository(t)
	ctx := context.Background()
	created := seed(t, r, "alice", 3)
	seed(t, r, "bob", 1)

	require.NoError(t, r.DeleteNotification(ctx, "alice", mustID(t, created[1])))
	assert.ErrorIs(t, r.DeleteNotification(ctx, "alice", mustID(t, created[1])), devgateway.ErrNotFound)

	require.NoError(t, r.ClearAll(ctx, "alice"))
	_, total, err := r.ListNotifications(ctx, "alice", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, _ = r.ListNotifications(ctx, "bob", 0, 10)
	assert.Equal(t, 1, total)
}

func TestRepository_PreferencesReplaceWholeSet(t *testing.T) {
	r := devgatewaytest.NewTestRepository(t)
	ctx := context.Background()

	prefs, err := r.Preferences(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, prefs)

	require.NoError(t, r.ReplacePreferences(ctx, "alice", model.DefaultPreferences()))
	require.NoError(t, r.ReplacePreferences(ctx, "alice", []model.Preference{
		{NotificationType: model.TypeVenueChange, EmailEnabled: true},
	}))

	prefs, err = r.Preferences(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []model.Preference{
		{NotificationType: model.TypeVenueChange, EmailEnabled: true},
	}, prefs)
}

func TestRepository_Subscriptions(t *testing.T) {
	r := devgatewaytest.NewTestRepository(t)
	ctx := context.Background()

	require.NoError(t, r.Subscribe(ctx, "alice", "42"))
	require.NoError(t, r.Subscribe(ctx, "alice", "42"))
	ok, err := r.Subscribed(ctx, "alice", "42")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Unsubscribe(ctx, "alice", "42"))
	assert.ErrorIs(t, r.Unsubscribe(ctx, "alice", "42"), devgateway.ErrNotFound)
}
