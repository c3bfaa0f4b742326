package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/inbox"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/notify"
	appsync "github.com/nhle/campus-notifier/internal/sync"
	"github.com/nhle/campus-notifier/internal/theme"
	"github.com/nhle/campus-notifier/internal/ui"
	"github.com/nhle/campus-notifier/internal/ui/command"
	helpview "github.com/nhle/campus-notifier/internal/ui/help"
	"github.com/nhle/campus-notifier/internal/ui/notifications"
	"github.com/nhle/campus-notifier/internal/ui/preferences"
)

// alertTick is how often transient alerts are checked for expiry.
const alertTick = time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewPreferences
	ViewHelp
	ViewCommand
)

// Poller is the scheduler surface the UI drives. *sync.Scheduler
// implements it.
type Poller interface {
	SetAuthenticated(ctx context.Context, authed bool)
	SetVisible(visible bool)
	RefreshNow()
	Status() appsync.Status
}

// Publisher injects notifications into the delivery bus.
type Publisher interface {
	Publish(n model.Notification) error
}

// Session forgets the stored credential on logout.
type Session interface {
	Clear() error
}

// Options wires the root model to the rest of the client.
type Options struct {
	Store     *notify.Store
	Poller    Poller
	Publisher Publisher
	Session   Session
	Logger    *zap.Logger
	Now       func() time.Time
}

type (
	snapshotMsg  notify.Snapshot
	alertTickMsg time.Time
	loggedOutMsg struct{ err error }
	// publishedMsg reports a simulated delivery.
	publishedMsg struct{ err error }
	dismissedMsg struct{ err error }
)

// Model is the root Bubble Tea model. It routes keys to the active view
// and renders the bell header, alert banner and status bar around it.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap

	store     *notify.Store
	poller    Poller
	publisher Publisher
	session   Session
	log       *zap.Logger
	now       func() time.Time

	updates     <-chan notify.Snapshot
	unsubscribe func()
	snap        notify.Snapshot

	list        notifications.Model
	prefs       preferences.Model
	helpView    helpview.Model
	commandView command.Model

	ready     bool
	signedOut bool
	flash     string
}

// New creates the root model and subscribes to store changes.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	k := DefaultKeyMap()
	updates, unsubscribe := opts.Store.Subscribe()

	m := Model{
		currentView: ViewList,
		layout:      ui.NewLayout(80, 24),
		keys:        k,
		store:       opts.Store,
		poller:      opts.Poller,
		publisher:   opts.Publisher,
		session:     opts.Session,
		log:         opts.Logger,
		now:         opts.Now,
		updates:     updates,
		unsubscribe: unsubscribe,
		list:        notifications.New(opts.Store, k, 80, 22).WithClock(opts.Now),
		prefs:       preferences.New(opts.Store, k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
		commandView: command.New(80, 22),
	}
	m.applySnapshot(opts.Store.Snapshot())
	return m
}

// Init starts listening for store snapshots and the alert expiry tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		tickAlerts(),
	)
}

// waitForSnapshot blocks on the store subscription. A closed channel ends
// the loop.
func waitForSnapshot(ch <-chan notify.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func tickAlerts() tea.Cmd {
	return tea.Tick(alertTick, func(t time.Time) tea.Msg {
		return alertTickMsg(t)
	})
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Width = msg.Width
		m.layout.Height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case snapshotMsg:
		cmd := m.applySnapshot(notify.Snapshot(msg))
		return m, tea.Batch(cmd, waitForSnapshot(m.updates))

	case alertTickMsg:
		m.store.ExpireAlerts(time.Time(msg))
		return m, tickAlerts()

	case tea.FocusMsg:
		m.poller.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.poller.SetVisible(false)
		return m, nil

	case loggedOutMsg:
		m.signedOut = true
		if msg.err != nil {
			m.log.Error("clearing credential failed", zap.Error(msg.err))
			m.flash = "Signed out, but the stored token could not be removed: " + msg.err.Error()
		}
		return m, nil

	case publishedMsg:
		if msg.err != nil {
			m.flash = "Simulated delivery failed: " + msg.err.Error()
		}
		return m, nil

	case dismissedMsg:
		return m, nil

	case notifications.ActionDoneMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case preferences.SavedMsg:
		var cmd tea.Cmd
		m.prefs, cmd = m.prefs.Update(msg)
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}
	m.flash = ""

	if m.signedOut {
		if key.Matches(msg, m.keys.Quit) {
			return m, m.quit()
		}
		return m, nil
	}

	switch m.currentView {
	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil
		}
		return m.updateActiveView(msg)

	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.currentView = m.previousView
		}
		return m, nil

	case ViewList:
		// The clear-all dialog owns the keyboard until it closes.
		if m.list.Confirming() {
			return m.updateActiveView(msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Back):
		m.currentView = ViewList
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		return m, m.dismissAlert()

	case key.Matches(msg, m.keys.Logout):
		return m, m.logout()

	case key.Matches(msg, m.keys.Preferences):
		if m.currentView == ViewList {
			m.currentView = ViewPreferences
			return m, nil
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewList {
			m.poller.RefreshNow()
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewPreferences:
		m.prefs, cmd = m.prefs.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// applySnapshot pushes a store snapshot into every view.
func (m *Model) applySnapshot(s notify.Snapshot) tea.Cmd {
	m.snap = s
	cmd := m.list.SetSnapshot(s)
	m.prefs.SetSnapshot(s.Preferences, s.PrefsErr)
	m.resize()
	return cmd
}

// resize recomputes view sizes; the banner takes a row while an
// important alert is showing.
func (m *Model) resize() {
	m.layout.BannerHeight = 0
	if _, ok := m.importantAlert(); ok {
		m.layout.BannerHeight = 1
	}
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.list.SetSize(w, h)
	m.prefs.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// importantAlert returns the newest important alert.
func (m Model) importantAlert() (notify.Alert, bool) {
	for i := len(m.snap.Alerts) - 1; i >= 0; i-- {
		if a := m.snap.Alerts[i]; a.Kind == notify.AlertImportant {
			return a, true
		}
	}
	return notify.Alert{}, false
}

// transientAlert returns the newest alert that expires on its own.
func (m Model) transientAlert() (notify.Alert, bool) {
	for i := len(m.snap.Alerts) - 1; i >= 0; i-- {
		if a := m.snap.Alerts[i]; a.Transient() {
			return a, true
		}
	}
	return notify.Alert{}, false
}

// dismissAlert closes the newest important alert, or else the newest
// transient one.
func (m Model) dismissAlert() tea.Cmd {
	a, ok := m.importantAlert()
	if !ok {
		a, ok = m.transientAlert()
	}
	if !ok {
		return nil
	}
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return dismissedMsg{err: s.DismissAlert(ctx, a.ID)}
	}
}

// logout forgets the token and stops the session. Stopping waits for an
// in-flight poll, so it runs off the UI goroutine.
func (m Model) logout() tea.Cmd {
	session, poller := m.session, m.poller
	return func() tea.Msg {
		var err error
		if session != nil {
			err = session.Clear()
		}
		poller.SetAuthenticated(context.Background(), false)
		return loggedOutMsg{err: err}
	}
}

func (m Model) simulate(important bool) tea.Cmd {
	if m.publisher == nil {
		return nil
	}
	pub, now := m.publisher, m.now
	return func() tea.Msg {
		return publishedMsg{err: pub.Publish(inbox.Synthetic(important, now()))}
	}
}

func (m Model) markAllRead() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return notifications.ActionDoneMsg{Op: "mark all read", Err: s.MarkAllAsRead(ctx)}
	}
}

func (m Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.poller.RefreshNow()
		return nil
	case "simulate":
		return m.simulate(false)
	case "simulate important":
		return m.simulate(true)
	case "prefs", "preferences":
		m.currentView = ViewPreferences
		return nil
	case "read-all", "mark all read":
		return m.markAllRead()
	case "clear", "clear all":
		m.currentView = ViewList
		return m.list.ConfirmClear()
	case "logout":
		return m.logout()
	case "quit", "q":
		return m.quit()
	default:
		m.flash = fmt.Sprintf("Unknown command %q", cmd)
		return nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Notifications"
	if m.snap.UnreadCount > 0 {
		title = fmt.Sprintf("Notifications [%d new]", m.snap.UnreadCount)
	}
	header := m.layout.RenderHeader(title, m.pollStatus())

	banner := ""
	if a, ok := m.importantAlert(); ok {
		banner = m.layout.RenderBanner(fmt.Sprintf("! %s  %s  (x to dismiss)", a.Title, a.Message))
	}

	var statusBar string
	switch a, ok := m.transientAlert(); {
	case m.flash != "":
		statusBar = m.layout.RenderStatusBar(theme.StatusBarStyle, m.flash)
	case ok:
		text := a.Title
		if a.Message != "" {
			text += ": " + a.Message
		}
		statusBar = m.layout.RenderStatusBar(theme.AlertStyle(a.Kind.String()), text)
	default:
		statusBar = m.layout.RenderStatusBar(theme.StatusBarStyle, m.keyHints())
	}

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	if m.signedOut {
		return lipgloss.NewStyle().
			Width(m.layout.ContentWidth()).
			Height(m.layout.ContentHeight()).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Signed out.\n\nRun `notifier login --token <token>` to sign in again.\nPress q to quit.")
	}

	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewPreferences:
		return m.prefs.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// pollStatus summarizes the scheduler for the header.
func (m Model) pollStatus() string {
	st := m.poller.Status()
	switch {
	case !st.Authenticated:
		return "signed out"
	case !st.Visible:
		return "paused"
	case m.snap.Loading:
		return "syncing…"
	case st.LastPoll.IsZero():
		return "waiting"
	default:
		return "updated " + model.RelativeTime(m.now(), st.LastPoll)
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.signedOut {
		return "q quit"
	}
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewPreferences:
		return "←↑↓→ move | space toggle | w save | z reset | r reload | esc back"
	default:
		return "enter read | M all read | d delete | C clear | n more | r refresh | p prefs | ? help | q quit"
	}
}
