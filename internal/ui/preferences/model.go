// Package preferences is the notification preference grid.
package preferences

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-notifier/internal/keys"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/preference"
	"github.com/nhle/campus-notifier/internal/theme"
)

const saveTimeout = 30 * time.Second

// Actions is the subset of notify.Store the grid drives.
type Actions interface {
	TogglePreference(t model.NotificationType, c model.Channel) error
	ResetPreferences()
	SavePreferences(ctx context.Context) error
	LoadPreferences(ctx context.Context) error
}

// SavedMsg reports the outcome of a save or reload.
type SavedMsg struct {
	Err error
}

// Model renders notification types as rows and channels as columns.
type Model struct {
	actions Actions
	keys    *keys.KeyMap

	snap    preference.Snapshot
	loadErr error
	row     int
	col     int
	err     error

	width  int
	height int
}

// New creates the preferences view.
func New(a Actions, k *keys.KeyMap, width, height int) Model {
	return Model{actions: a, keys: k, width: width, height: height}
}

// SetSnapshot replaces the displayed draft.
func (m *Model) SetSnapshot(s preference.Snapshot, loadErr error) {
	m.snap = s
	m.loadErr = loadErr
	if rows := len(m.rows()); m.row >= rows {
		m.row = max(rows-1, 0)
	}
}

// Cursor returns the selected type and channel.
func (m Model) Cursor() (model.NotificationType, model.Channel) {
	rows := m.rows()
	if len(rows) == 0 {
		return "", model.Channels[m.col]
	}
	return rows[m.row], model.Channels[m.col]
}

// rows lists every known type followed by unknown types present in the
// draft.
func (m Model) rows() []model.NotificationType {
	out := append([]model.NotificationType(nil), model.KnownTypes...)
	for _, p := range m.snap.Draft {
		if !p.NotificationType.Known() {
			out = append(out, p.NotificationType)
		}
	}
	return out
}

func (m Model) lookup(t model.NotificationType) (model.Preference, bool) {
	for _, p := range m.snap.Draft {
		if p.NotificationType == t {
			return p, true
		}
	}
	return model.Preference{}, false
}

// Update handles grid navigation and edits.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SavedMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		rows := m.rows()
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.row > 0 {
				m.row--
			}
		case key.Matches(msg, m.keys.Down):
			if m.row < len(rows)-1 {
				m.row++
			}
		case key.Matches(msg, m.keys.Left):
			if m.col > 0 {
				m.col--
			}
		case key.Matches(msg, m.keys.Right):
			if m.col < len(model.Channels)-1 {
				m.col++
			}
		case key.Matches(msg, m.keys.Toggle):
			t, c := m.Cursor()
			if t == "" {
				return m, nil
			}
			if err := m.actions.TogglePreference(t, c); err != nil {
				m.err = err
			}
		case key.Matches(msg, m.keys.Revert):
			m.err = nil
			m.actions.ResetPreferences()
		case key.Matches(msg, m.keys.Save):
			if m.snap.Saving {
				return m, nil
			}
			return m, m.save()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.reload()
		}
	}
	return m, nil
}

func (m Model) save() tea.Cmd {
	a := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return SavedMsg{Err: a.SavePreferences(ctx)}
	}
}

func (m Model) reload() tea.Cmd {
	a := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return SavedMsg{Err: a.LoadPreferences(ctx)}
	}
}

// View renders the grid.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Notification Preferences")
	switch {
	case m.snap.Saving:
		title += theme.HelpStyle.Render("  saving…")
	case m.snap.Dirty:
		title += lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("  ● unsaved changes")
	}

	const labelWidth = 24
	const cellWidth = 9

	var b strings.Builder
	b.WriteString(title + "\n\n")

	b.WriteString(lipgloss.NewStyle().Width(labelWidth).Render(""))
	for _, c := range model.Channels {
		b.WriteString(theme.DimmedStyle.Width(cellWidth).Align(lipgloss.Center).Render(c.Label()))
	}
	b.WriteString("\n")

	for i, t := range m.rows() {
		p, set := m.lookup(t)
		label := t.Label()
		if !t.Known() {
			label = string(t)
		}
		labelStyle := lipgloss.NewStyle().Width(labelWidth)
		if i == m.row {
			labelStyle = labelStyle.Bold(true).Foreground(theme.ColorBlue)
		}
		b.WriteString(labelStyle.Render(label))

		for j, c := range model.Channels {
			mark := "[ ]"
			if !set {
				mark = "[-]"
			} else if p.Enabled(c) {
				mark = "[✓]"
			}
			cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center)
			if i == m.row && j == m.col {
				cell = cell.Reverse(true)
			}
			b.WriteString(cell.Render(mark))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.loadErr != nil {
		b.WriteString(theme.ErrorStyle.Render("Could not load preferences: "+m.loadErr.Error()) +
			theme.HelpStyle.Render("  press r to retry") + "\n")
	}
	if m.err != nil {
		b.WriteString(theme.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}
	b.WriteString(theme.HelpStyle.Render("[-] not set on the server; toggling adds it with every channel on"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates the grid dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
