package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-notifier/internal/theme"
)

// Layout tracks the terminal dimensions and the fixed chrome around the
// content area: header, optional alert banner, status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	BannerHeight    int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1; there is no banner.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - l.BannerHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title bar with the bell summary on the right.
func (l Layout) RenderHeader(title, bell string) string {
	return l.fill(theme.HeaderStyle, title, bell)
}

// RenderBanner renders the important-alert strip.
func (l Layout) RenderBanner(text string) string {
	return l.fill(theme.BannerStyle, text, "")
}

// RenderStatusBar renders the bottom bar in the given style, so alerts
// can recolor it.
func (l Layout) RenderStatusBar(style lipgloss.Style, text string) string {
	return l.fill(style, text, "")
}

// fill renders left and right segments in style, padding the gap so the
// bar spans the full width.
func (l Layout) fill(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Align(lipgloss.Right).Render(right)
	}

	gap := l.Width -
		lipgloss.Width(leftRendered) -
		lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}

// RenderWithFrame joins the non-empty sections top to bottom.
func (l Layout) RenderWithFrame(sections ...string) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
