package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/theme"
)

// Layout holds the terminal size and splits it into a one-line header, the
// content area and a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

const chromeRows = 2

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the width available to the active view.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left between the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeRows, 0)
}

// Header describes the console's top bar.
type Header struct {
	Title  string
	Unread int
	Status string
}

// RenderHeader renders the title with the unread badge on the left and the
// session status right-aligned.
func (l Layout) RenderHeader(h Header) string {
	left := theme.HeaderStyle.Render(h.Title)
	if h.Unread > 0 {
		left += theme.UnreadBadgeStyle.Render(fmt.Sprintf("%d new", h.Unread))
	}
	right := theme.HeaderStyle.Render(h.Status)

	return l.bar(theme.HeaderStyle, left, right)
}

// RenderStatusBar renders the bottom bar with key hints or a status message.
func (l Layout) RenderStatusBar(text string) string {
	return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Render(text), "")
}

// bar pads the space between left and right with the style's background so
// the row spans the full width.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// Frame stacks header, content and status bar.
func (l Layout) Frame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
