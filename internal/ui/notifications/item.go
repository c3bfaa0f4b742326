package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the body text.
func (i Item) Description() string { return i.Notification.Content }

// ItemDelegate renders a notification on two lines: the title row with
// unread marker, type icon and age, then the body and link.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	width := m.Width() - 4

	marker := " "
	titleStyle := theme.ReadTitleStyle
	if !n.IsRead() {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
		titleStyle = theme.UnreadTitleStyle
	}

	icon := theme.TypeStyle(n.NotificationType).Render(theme.TypeIcon(n.NotificationType))
	label := theme.TypeStyle(n.NotificationType).Render(n.NotificationType.Label())
	if n.Important {
		label += lipgloss.NewStyle().Foreground(theme.ColorOrange).Render(" !")
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	age := theme.DimmedStyle.Render(n.Age(now()))

	top := fmt.Sprintf("%s %s %s  %s  %s", marker, icon, titleStyle.Render(n.Title), label, age)

	body := strings.ReplaceAll(n.Content, "\n", " ")
	suffix := ""
	if link := n.Link(); link != "" {
		suffix = "  → " + link
	}
	bottom := "    " + truncate(body, width-lipgloss.Width(suffix)) + theme.DimmedStyle.Render(suffix)

	line := top + "\n" + bottom
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens s to at most width cells, adding an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
