package preference

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/gateway/gatewaytest"
	"github.com/nhle/campus-notifier/internal/model"
)

func TestLoad_ZeroRecordsDefaultsEveryKnownType(t *testing.T) {
	fake := gatewaytest.New()
	r := NewReconciler(fake)

	require.NoError(t, r.Load(context.Background()))

	draft := r.Draft()
	require.Len(t, draft, len(model.KnownTypes))
	for i, p := range draft {
		assert.Equal(t, model.KnownTypes[i], p.NotificationType)
		assert.True(t, p.EmailEnabled)
		assert.True(t, p.PushEnabled)
		assert.True(t, p.InAppEnabled)
	}
	assert.False(t, r.Dirty())
	assert.True(t, r.Snapshot().Loaded)
}

func TestLoad_PartialResponseIsNotDefaulted(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPreferences([]model.Preference{
		{NotificationType: model.TypeEventReminder, EmailEnabled: false, PushEnabled: true, InAppEnabled: true},
	})
	r := NewReconciler(fake)

	require.NoError(t, r.Load(context.Background()))

	draft := r.Draft()
	require.Len(t, draft, 1)
	assert.False(t, draft[0].EmailEnabled)

	_, ok := r.Get(model.TypeVenueChange)
	assert.False(t, ok)
}

func TestLoad_FailureKeepsDraft(t *testing.T) {
	fake := gatewaytest.New()
	r := NewReconciler(fake)
	require.NoError(t, r.SetChannel(model.TypeEventUpdate, model.ChannelEmail, false))

	fake.Fail("Preferences", errors.New("boom"))
	assert.Error(t, r.Load(context.Background()))

	p, ok := r.Get(model.TypeEventUpdate)
	require.True(t, ok)
	assert.False(t, p.EmailEnabled)
	assert.True(t, r.Dirty())
}

func TestSetChannel_MutatesExactlyOneBoolean(t *testing.T) {
	r := NewReconciler(gatewaytest.New())
	before := r.Draft()

	require.NoError(t, r.SetChannel(model.TypeEventReminder, model.ChannelPush, false))

	after := r.Draft()
	require.Len(t, after, len(before))
	for i := range after {
		if after[i].NotificationType == model.TypeEventReminder {
			assert.Equal(t, model.Preference{
				NotificationType: model.TypeEventReminder,
				EmailEnabled:     true,
				PushEnabled:      false,
				InAppEnabled:     true,
			}, after[i])
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
	assert.True(t, r.Dirty())
}

func TestSetChannel_AddsMissingTypeAndRejectsBadChannel(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPreferences([]model.Preference{model.DefaultPreference(model.TypeEventUpdate)})
	r := NewReconciler(fake)
	require.NoError(t, r.Load(context.Background()))

	require.NoError(t, r.SetChannel(model.TypeVenueChange, model.ChannelInApp, false))
	p, ok := r.Get(model.TypeVenueChange)
	require.True(t, ok)
	assert.True(t, p.EmailEnabled)
	assert.False(t, p.InAppEnabled)

	assert.Error(t, r.SetChannel(model.TypeVenueChange, model.Channel("sms"), true))
}

func TestSave_SubmitsFullArray(t *testing.T) {
	fake := gatewaytest.New()
	r := NewReconciler(fake)
	require.NoError(t, r.Load(context.Background()))
	require.NoError(t, r.SetChannel(model.TypeEventReminder, model.ChannelPush, false))

	require.NoError(t, r.Save(context.Background()))

	stored := fake.StoredPreferences()
	require.Len(t, stored, len(model.KnownTypes))
	for _, p := range stored {
		if p.NotificationType == model.TypeEventReminder {
			assert.True(t, p.EmailEnabled)
			assert.False(t, p.PushEnabled)
			assert.True(t, p.InAppEnabled)
			continue
		}
		assert.Equal(t, model.DefaultPreference(p.NotificationType), p)
	}
	assert.False(t, r.Dirty())
}

func TestSave_FailureLeavesDraftAndDirty(t *testing.T) {
	fake := gatewaytest.New()
	r := NewReconciler(fake)
	require.NoError(t, r.SetChannel(model.TypeSystemAnnouncement, model.ChannelEmail, false))

	fake.Fail("UpdatePreferences", errors.New("503"))
	require.Error(t, r.Save(context.Background()))

	assert.True(t, r.Dirty())
	p, _ := r.Get(model.TypeSystemAnnouncement)
	assert.False(t, p.EmailEnabled)
	assert.Empty(t, fake.StoredPreferences())

	// Retry succeeds.
	fake.Fail("UpdatePreferences", nil)
	require.NoError(t, r.Save(context.Background()))
	assert.False(t, r.Dirty())
}

func TestReset_RestoresServerCopy(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPreferences([]model.Preference{
		{NotificationType: model.TypeEventCancellation, EmailEnabled: true},
	})
	r := NewReconciler(fake)
	require.NoError(t, r.Load(context.Background()))

	require.NoError(t, r.SetChannel(model.TypeEventCancellation, model.ChannelPush, true))
	require.NoError(t, r.SetChannel(model.TypeVenueChange, model.ChannelPush, false))
	r.Reset()

	assert.False(t, r.Dirty())
	assert.Equal(t, []model.Preference{
		{NotificationType: model.TypeEventCancellation, EmailEnabled: true},
	}, r.Draft())
}

func TestReset_WithoutServerCopyUsesDefaults(t *testing.T) {
	r := NewReconciler(gatewaytest.New())
	require.NoError(t, r.SetChannel(model.TypeEventUpdate, model.ChannelEmail, false))
	r.Reset()
	assert.Equal(t, model.DefaultPreferences(), r.Draft())
}

func TestDraft_UnknownTypesSortAfterKnown(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPreferences([]model.Preference{
		{NotificationType: "ZZZ_CUSTOM"},
		{NotificationType: "AAA_CUSTOM"},
		{NotificationType: model.TypeVenueChange},
		{NotificationType: model.TypeEventRegistration},
	})
	r := NewReconciler(fake)
	require.NoError(t, r.Load(context.Background()))

	var got []model.NotificationType
	for _, p := range r.Draft() {
		got = append(got, p.NotificationType)
	}
	assert.Equal(t, []model.NotificationType{
		model.TypeEventRegistration, model.TypeVenueChange, "AAA_CUSTOM", "ZZZ_CUSTOM",
	}, got)
}

func TestToggleAndClear(t *testing.T) {
	r := NewReconciler(gatewaytest.New())
	v, err := r.Toggle(model.TypeEventUpdate, model.ChannelPush)
	require.NoError(t, err)
	assert.False(t, v)

	r.Clear()
	assert.False(t, r.Dirty())
	assert.Equal(t, model.DefaultPreferences(), r.Draft())
}

func TestToggle_ConcurrentFlipsDoNotCollapse(t *testing.T) {
	r := NewReconciler(gatewaytest.New())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Toggle(model.TypeEventUpdate, model.ChannelEmail)
		}()
	}
	wg.Wait()

	p, ok := r.Get(model.TypeEventUpdate)
	require.True(t, ok)
	assert.True(t, p.EmailEnabled, "an even number of flips returns to the start")
}

func TestLoad_AfterClearIsDropped(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetPreferences([]model.Preference{{NotificationType: model.TypeEventReminder}})
	fake.Entered = make(chan string, 1)
	fake.Block = make(chan struct{})
	r := NewReconciler(fake)

	done := make(chan error, 1)
	go func() { done <- r.Load(context.Background()) }()
	<-fake.Entered

	r.Clear()
	close(fake.Block)
	require.NoError(t, <-done)

	snap := r.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Equal(t, model.DefaultPreferences(), snap.Draft)
}
