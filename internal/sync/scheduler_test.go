package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu      gosync.Mutex
	lists   []int
	counts  int
	prefs   int
	resets  int
	listErr error
	// afterStop is set once the test has called Stop; calls after that
	// are recorded as violations.
	afterStop bool
	late      int
}

func (c *countingRefresher) FetchNotifications(ctx context.Context, page, size int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = append(c.lists, page)
	if c.afterStop {
		c.late++
	}
	return c.listErr
}

func (c *countingRefresher) FetchUnreadCount(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts++
	if c.afterStop {
		c.late++
	}
}

func (c *countingRefresher) LoadPreferences(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs++
	return nil
}

func (c *countingRefresher) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

func (c *countingRefresher) snapshot() (lists, counts, prefs, resets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lists), c.counts, c.prefs, c.resets
}

const (
	wait = time.Second
	tick = 5 * time.Millisecond
)

func TestScheduler_LoginRunsInitialLoadOnce(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: time.Hour, PageSize: 20})
	defer s.Stop()

	s.SetAuthenticated(context.Background(), true)
	s.SetAuthenticated(context.Background(), true)

	assert.Eventually(t, func() bool {
		lists, counts, prefs, _ := r.snapshot()
		return lists == 1 && counts == 1 && prefs == 1
	}, wait, tick)
	assert.True(t, s.Status().Running)
}

func TestScheduler_TicksWhileVisible(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: 10 * time.Millisecond})
	defer s.Stop()

	s.SetAuthenticated(context.Background(), true)
	assert.Eventually(t, func() bool {
		_, counts, _, _ := r.snapshot()
		return counts >= 4
	}, wait, tick)

	lists, _, prefs, _ := r.snapshot()
	assert.Equal(t, 1, lists)
	assert.Equal(t, 1, prefs)
}

func TestScheduler_HiddenSkipsTicks(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: 10 * time.Millisecond})
	defer s.Stop()

	s.SetVisible(false)
	s.SetAuthenticated(context.Background(), true)
	assert.Eventually(t, func() bool {
		lists, _, _, _ := r.snapshot()
		return lists == 1
	}, wait, tick)

	time.Sleep(60 * time.Millisecond)
	_, counts, _, _ := r.snapshot()
	assert.Equal(t, 1, counts, "only the initial load counts while hidden")
}

// Becoming visible refreshes immediately instead of waiting for the tick.
func TestScheduler_VisibleTransitionRefreshesImmediately(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: time.Hour})
	defer s.Stop()

	s.SetAuthenticated(context.Background(), true)
	require.Eventually(t, func() bool {
		_, counts, _, _ := r.snapshot()
		return counts == 1
	}, wait, tick)

	s.SetVisible(false)
	s.SetVisible(true)
	assert.Eventually(t, func() bool {
		_, counts, _, _ := r.snapshot()
		return counts == 2
	}, wait, tick)

	// Visible to visible is not a transition.
	s.SetVisible(true)
	time.Sleep(30 * time.Millisecond)
	_, counts, _, _ := r.snapshot()
	assert.Equal(t, 2, counts)
}

func TestScheduler_VisibilityIgnoredWhileLoggedOut(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: time.Hour})

	s.SetVisible(false)
	s.SetVisible(true)
	s.RefreshNow()
	time.Sleep(20 * time.Millisecond)

	lists, counts, _, _ := r.snapshot()
	assert.Zero(t, lists)
	assert.Zero(t, counts)
}

func TestScheduler_RefreshNowReloadsFirstPage(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: time.Hour})
	defer s.Stop()

	s.SetAuthenticated(context.Background(), true)
	s.RefreshNow()

	assert.Eventually(t, func() bool {
		lists, counts, prefs, _ := r.snapshot()
		return lists == 2 && counts == 2 && prefs == 1
	}, wait, tick)
	r.mu.Lock()
	assert.Equal(t, []int{0, 0}, r.lists)
	r.mu.Unlock()
}

func TestScheduler_LogoutStopsAndResets(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: 5 * time.Millisecond})

	s.SetAuthenticated(context.Background(), true)
	require.Eventually(t, func() bool {
		_, counts, _, _ := r.snapshot()
		return counts >= 2
	}, wait, tick)

	s.SetAuthenticated(context.Background(), false)
	r.mu.Lock()
	r.afterStop = true
	r.mu.Unlock()

	time.Sleep(40 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Zero(t, r.late)
	assert.Equal(t, 1, r.resets)
	assert.False(t, s.Status().Running)
}

func TestScheduler_StopIsIdempotentAndCancelsContext(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.SetAuthenticated(ctx, true)

	s.Stop()
	s.Stop()
	r.mu.Lock()
	r.afterStop = true
	r.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	r.mu.Lock()
	assert.Zero(t, r.late)
	r.mu.Unlock()

	// Stop leaves the auth state alone, so logging out afterwards still
	// clears the session, and a new session can start.
	assert.True(t, s.Status().Authenticated)
	assert.False(t, s.Status().Running)
	s.SetAuthenticated(ctx, false)
	_, _, _, resets := r.snapshot()
	assert.Equal(t, 1, resets)

	s.SetAuthenticated(ctx, true)
	defer s.Stop()
	assert.True(t, s.Status().Running)
}

func TestScheduler_RapidLoginLogoutLeavesOneLoop(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, Config{Interval: time.Hour})
	ctx := context.Background()

	var wg gosync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetAuthenticated(ctx, i%2 == 0)
		}()
	}
	wg.Wait()

	s.SetAuthenticated(ctx, true)
	assert.True(t, s.Status().Running)
	s.SetAuthenticated(ctx, false)
	assert.False(t, s.Status().Running)

	// Every loop that was started has been stopped.
	s.Stop()
	r.mu.Lock()
	r.afterStop = true
	r.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Zero(t, r.late)
}

func TestScheduler_RecordsListingError(t *testing.T) {
	r := &countingRefresher{listErr: errors.New("down")}
	s := New(r, Config{Interval: time.Hour})
	defer s.Stop()

	s.SetAuthenticated(context.Background(), true)
	assert.Eventually(t, func() bool {
		return s.Status().LastError != nil
	}, wait, tick)
	assert.False(t, s.Status().LastPoll.IsZero())
}
