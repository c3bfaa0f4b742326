package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-notifier/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar with the unread bell.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlays such as help and the command palette.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// UnreadTitleStyle renders titles of notifications not yet read.
var UnreadTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadTitleStyle renders titles of read notifications.
var ReadTitleStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// DimmedStyle is used for secondary text like ages and links.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders inline failures such as a listing error.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// BannerStyle is the full-width strip for important alerts.
var BannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#1A202C")).
	Background(ColorOrange).
	Padding(0, 1)

// TypeStyle returns the accent color for a notification type.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch t {
	case model.TypeEventRegistration:
		return base.Foreground(ColorGreen)
	case model.TypeEventReminder:
		return base.Foreground(ColorBlue)
	case model.TypeEventCancellation:
		return base.Foreground(ColorRed)
	case model.TypeEventUpdate:
		return base.Foreground(ColorYellow)
	case model.TypeVenueChange:
		return base.Foreground(ColorOrange)
	case model.TypeSystemAnnouncement:
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeIcon returns the glyph shown next to a notification of type t.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.TypeEventRegistration:
		return "✓"
	case model.TypeEventReminder:
		return "⏰"
	case model.TypeEventCancellation:
		return "✗"
	case model.TypeEventUpdate:
		return "✎"
	case model.TypeVenueChange:
		return "⌖"
	case model.TypeSystemAnnouncement:
		return "📢"
	default:
		return "•"
	}
}

// AlertStyle returns the status bar style for an alert kind name
// ("info", "success", "error", "important").
func AlertStyle(kind string) lipgloss.Style {
	base := StatusBarStyle.Bold(true)

	switch kind {
	case "success":
		return base.Background(ColorGreen).Foreground(lipgloss.Color("#1A202C"))
	case "error":
		return base.Background(ColorRed).Foreground(lipgloss.Color("#F8F9FA"))
	case "important":
		return base.Background(ColorOrange).Foreground(lipgloss.Color("#1A202C"))
	default:
		return base.Background(ColorBlue)
	}
}
