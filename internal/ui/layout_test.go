package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestContentHeight(t *testing.T) {
	l := NewLayout(80, 24)
	assert.Equal(t, 22, l.ContentHeight())

	l.BannerHeight = 1
	assert.Equal(t, 21, l.ContentHeight())

	l.Height = 1
	assert.Equal(t, 0, l.ContentHeight())
}

func TestHeaderSpansWidth(t *testing.T) {
	l := NewLayout(60, 24)
	header := l.RenderHeader("Notifications [2 new]", "updated 1m ago")

	assert.Equal(t, 60, lipgloss.Width(header))
	assert.Contains(t, header, "Notifications [2 new]")
	assert.Contains(t, header, "updated 1m ago")
}

func TestRenderWithFrameSkipsEmptySections(t *testing.T) {
	l := NewLayout(20, 10)
	out := l.RenderWithFrame("top", "", "bottom")
	assert.Equal(t, 2, len(strings.Split(out, "\n")))
}
