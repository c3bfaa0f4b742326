package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// fetchTimeout is the maximum time allowed for a single refresh call.
const fetchTimeout = 30 * time.Second

var (
	pollTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poll_ticks_total",
		Help: "Unread-count poll ticks fired while authenticated.",
	})
	pollSkippedHidden = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poll_skipped_hidden_total",
		Help: "Poll ticks skipped because the client was not visible.",
	})
)

// Refresher is the state the scheduler keeps fresh. notify.Store
// implements it.
type Refresher interface {
	FetchNotifications(ctx context.Context, page, size int) error
	FetchUnreadCount(ctx context.Context)
	LoadPreferences(ctx context.Context) error
	Reset()
}

// Config tunes the scheduler.
type Config struct {
	Interval time.Duration
	PageSize int
	Logger   *zap.Logger
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Authenticated bool
	Visible       bool
	Running       bool
	LastPoll      time.Time
	LastError     error
}

type trigger int

const (
	triggerCount trigger = iota
	triggerFull
)

// Scheduler periodically refreshes the unread count while the client is
// authenticated and visible. Each authenticated session owns one loop
// goroutine, torn down on logout or Stop.
type Scheduler struct {
	r        Refresher
	interval time.Duration
	pageSize int
	log      *zap.Logger

	mu            gosync.Mutex
	authenticated bool
	visible       bool
	cancel        context.CancelFunc
	done          chan struct{}
	triggerCh     chan trigger
	lastPoll      time.Time
	lastErr       error
}

// New creates a Scheduler. It starts visible and unauthenticated.
func New(r Refresher, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		r:        r,
		interval: cfg.Interval,
		pageSize: cfg.PageSize,
		log:      cfg.Logger,
		visible:  true,
	}
}

// SetAuthenticated reacts to the auth state. Becoming authenticated runs
// an initial full load and starts polling; losing it stops polling and
// clears the refresher without any gateway call. Repeating the current
// state is a no-op.
func (s *Scheduler) SetAuthenticated(ctx context.Context, authed bool) {
	s.mu.Lock()
	if authed == s.authenticated {
		s.mu.Unlock()
		return
	}
	s.authenticated = authed

	if authed {
		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.done = make(chan struct{})
		s.triggerCh = make(chan trigger, 16)
		go s.run(loopCtx, s.triggerCh, s.done)
		s.mu.Unlock()
		s.log.Info("polling started", zap.Duration("interval", s.interval))
		return
	}
	cancel, done := s.detach()
	s.mu.Unlock()

	stopLoop(cancel, done)
	s.r.Reset()
	s.log.Info("polling stopped, session cleared")
}

// SetVisible records visibility. A transition to visible while
// authenticated refreshes the count immediately, regardless of where the
// ticker is in its interval.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	becameVisible := visible && !s.visible
	s.visible = visible
	s.mu.Unlock()

	if becameVisible {
		s.send(triggerCount)
	}
}

// RefreshNow requests a reload of the first page and the count.
func (s *Scheduler) RefreshNow() {
	s.send(triggerFull)
}

// Stop halts polling without touching the auth state, so a later
// SetAuthenticated(ctx, false) still clears the refresher. It is
// idempotent and, once it returns, no refresher call from the loop is in
// progress or will start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.detach()
	s.mu.Unlock()
	stopLoop(cancel, done)
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Authenticated: s.authenticated,
		Visible:       s.visible,
		Running:       s.cancel != nil,
		LastPoll:      s.lastPoll,
		LastError:     s.lastErr,
	}
}

// detach takes ownership of the running loop, if any. Caller must hold
// s.mu.
func (s *Scheduler) detach() (context.CancelFunc, chan struct{}) {
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.triggerCh = nil, nil, nil
	return cancel, done
}

// stopLoop cancels a detached loop and blocks until it exits.
func stopLoop(cancel context.CancelFunc, done chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// send queues a trigger without blocking. Dropped when no loop is running
// or the queue is full.
func (s *Scheduler) send(t trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggerCh == nil {
		return
	}
	select {
	case s.triggerCh <- t:
	default:
		// Channel full; a refresh is already pending
	}
}

// run is the polling loop for one session.
func (s *Scheduler) run(ctx context.Context, triggers <-chan trigger, done chan struct{}) {
	defer close(done)

	s.refreshAll(ctx, true)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pollTicks.Inc()
			if !s.isVisible() {
				pollSkippedHidden.Inc()
				continue
			}
			s.refreshCount(ctx)
		case t := <-triggers:
			if t == triggerFull {
				s.refreshAll(ctx, false)
				continue
			}
			s.refreshCount(ctx)
		}
	}
}

func (s *Scheduler) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Scheduler) refreshCount(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	s.r.FetchUnreadCount(fctx)
	s.markPolled(nil)
}

// refreshAll reloads page 0 and the count, plus preferences on the
// initial load of a session.
func (s *Scheduler) refreshAll(ctx context.Context, withPrefs bool) {
	if ctx.Err() != nil {
		return
	}
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	err := s.r.FetchNotifications(fctx, 0, s.pageSize)
	if err != nil {
		s.log.Warn("fetch notifications failed", zap.Error(err))
	}
	s.r.FetchUnreadCount(fctx)
	if withPrefs {
		if perr := s.r.LoadPreferences(fctx); perr != nil {
			s.log.Warn("preference fetch failed", zap.Error(perr))
		}
	}
	s.markPolled(err)
}

func (s *Scheduler) markPolled(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPoll = time.Now()
	s.lastErr = err
}
