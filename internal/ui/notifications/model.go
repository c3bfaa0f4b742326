// Package notifications is the full notification list view.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-notifier/internal/keys"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/notify"
	"github.com/nhle/campus-notifier/internal/theme"
)

// actionTimeout bounds a single store operation started from the list.
const actionTimeout = 30 * time.Second

// Actions is the subset of notify.Store the list drives.
type Actions interface {
	MarkAsRead(ctx context.Context, id model.ID) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id model.ID) error
	ClearAllNotifications(ctx context.Context) error
	FetchNextPage(ctx context.Context) error
	SubscribeToEvent(ctx context.Context, eventID string) error
	UnsubscribeFromEvent(ctx context.Context, eventID string) error
}

// ActionDoneMsg reports the outcome of a store operation. Failures are
// already surfaced as store alerts.
type ActionDoneMsg struct {
	Op  string
	Err error
}

type mode int

const (
	modeList mode = iota
	modeConfirmClear
)

// formBindings holds values bound into huh forms. It lives behind a
// pointer so that copies of the Model share it.
type formBindings struct {
	confirm bool
}

// Model is the notification list view.
type Model struct {
	list    list.Model
	actions Actions
	keys    *keys.KeyMap
	mode    mode
	confirm *huh.Form
	fb      *formBindings

	err     error
	stale   bool
	loading bool
	hasMore bool
	notice  string

	width  int
	height int
}

// New creates the list view.
func New(a Actions, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:    l,
		actions: a,
		keys:    k,
		fb:      &formBindings{},
		width:   width,
		height:  height,
	}
}

// WithClock fixes the time used for age labels.
func (m Model) WithClock(now func() time.Time) Model {
	m.list.SetDelegate(ItemDelegate{now: now})
	return m
}

// SetSnapshot replaces the displayed state, keeping the cursor in range.
func (m *Model) SetSnapshot(s notify.Snapshot) tea.Cmd {
	items := make([]list.Item, len(s.Notifications))
	for i, n := range s.Notifications {
		items[i] = Item{Notification: n}
	}
	idx := m.list.Index()
	cmd := m.list.SetItems(items)
	if n := len(items); n > 0 && idx >= n {
		m.list.Select(n - 1)
	}

	m.err = s.Err
	m.stale = s.Stale
	m.loading = s.Loading
	m.hasMore = s.HasMore
	return cmd
}

// Confirming reports whether the clear-all dialog owns the keyboard.
func (m Model) Confirming() bool {
	return m.mode == modeConfirmClear
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.mode == modeConfirmClear {
		return m.updateConfirm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.notice = ""
		return m.handleKey(msg)
	case ActionDoneMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.run("mark read", func(ctx context.Context) error {
			return m.actions.MarkAsRead(ctx, n.ID)
		})

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.run("mark all read", m.actions.MarkAllAsRead)

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.run("delete", func(ctx context.Context) error {
			return m.actions.DeleteNotification(ctx, n.ID)
		})

	case key.Matches(msg, m.keys.ClearAll):
		cmd := m.ConfirmClear()
		return m, cmd

	case key.Matches(msg, m.keys.NextPage):
		if !m.hasMore {
			m.notice = "No more notifications"
			return m, nil
		}
		return m, m.run("next page", m.actions.FetchNextPage)

	case key.Matches(msg, m.keys.Subscribe), key.Matches(msg, m.keys.Unsubscribe):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		eventID, ok := n.EventID()
		if !ok {
			m.notice = "This notification is not about an event"
			return m, nil
		}
		if key.Matches(msg, m.keys.Subscribe) {
			return m, m.run("subscribe", func(ctx context.Context) error {
				return m.actions.SubscribeToEvent(ctx, eventID)
			})
		}
		return m, m.run("unsubscribe", func(ctx context.Context) error {
			return m.actions.UnsubscribeFromEvent(ctx, eventID)
		})
	}

	// Navigation keys go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// ConfirmClear opens the clear-all dialog. It does nothing when the list
// is empty.
func (m *Model) ConfirmClear() tea.Cmd {
	if len(m.list.Items()) == 0 {
		return nil
	}
	m.fb.confirm = false
	m.confirm = m.buildConfirmForm()
	m.mode = modeConfirmClear
	return m.confirm.Init()
}

// run wraps a store operation in a tea.Cmd.
func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return ActionDoneMsg{Op: op, Err: fn(ctx)}
	}
}

func (m Model) buildConfirmForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Clear all %d notifications?", len(m.list.Items()))).
				Description("This removes them from the server too.").
				Affirmative("Yes, clear").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(max(m.width-4, 20)).WithShowHelp(false)
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirm == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		m.mode = modeList
		m.confirm = nil
		if m.fb.confirm {
			return m, m.run("clear all", m.actions.ClearAllNotifications)
		}
		return m, nil
	case huh.StateAborted:
		m.mode = modeList
		m.confirm = nil
		return m, nil
	}
	return m, cmd
}

// View renders the list, its empty and error states, or the clear-all
// dialog.
func (m Model) View() string {
	if m.mode == modeConfirmClear && m.confirm != nil {
		return theme.PanelStyle.Render(m.confirm.View())
	}

	var lines []string
	if m.err != nil {
		lines = append(lines, theme.ErrorStyle.Render("Could not load notifications: "+m.err.Error())+
			theme.HelpStyle.Render("  press r to retry"))
	} else if m.stale {
		lines = append(lines, theme.HelpStyle.Render("Some changes may not have reached the server. Press r to refresh."))
	}
	if m.notice != "" {
		lines = append(lines, theme.HelpStyle.Render(m.notice))
	}

	if len(m.list.Items()) == 0 {
		lines = append(lines, m.renderEmptyState())
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	footer := ""
	switch {
	case m.loading:
		footer = theme.HelpStyle.Render("Loading…")
	case m.hasMore:
		footer = theme.HelpStyle.Render("Press n to load more")
	}
	lines = append(lines, m.list.View())
	if footer != "" {
		lines = append(lines, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return style.Render("Loading notifications…")
	case m.err != nil:
		return style.Render("Nothing to show.\n\nPress r to retry.")
	default:
		return style.Render("You're all caught up.\n\nNo notifications yet.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
}
