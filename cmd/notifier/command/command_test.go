package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/model"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in   string
		want model.Channel
		ok   bool
	}{
		{"email", model.ChannelEmail, true},
		{"PUSH", model.ChannelPush, true},
		{"inapp", model.ChannelInApp, true},
		{"sms", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseChannel(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderNotifications(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	readAt := "2026-10-19T11:30:00Z"
	out := renderNotifications([]model.Notification{
		{ID: "12", Title: "Room moved", NotificationType: model.TypeVenueChange,
			ReferenceType: "EVENT", ReferenceID: "4", CreatedAt: "2026-10-19T10:00:00Z"},
		{ID: "11", Title: "Welcome", NotificationType: "BADGE_EARNED", ReadAt: &readAt},
	}, now)

	assert.Contains(t, out, "Room moved")
	assert.Contains(t, out, "2h ago")
	assert.Contains(t, out, "/events/4")
	assert.Contains(t, out, "Venue change")
	assert.Contains(t, out, "Recently")
	assert.Contains(t, out, "unread")
}

func TestRenderPreferences(t *testing.T) {
	out := renderPreferences([]model.Preference{
		{NotificationType: model.TypeEventReminder, EmailEnabled: false, PushEnabled: true, InAppEnabled: true},
	})
	assert.Contains(t, out, "EVENT_REMINDER")
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "off")
	assert.Contains(t, out, "on")
}
