package notifications

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/theme"
)

// Item wraps a model.NotificationRecord so it can be used in a bubbles/list.
type Item struct {
	Record model.NotificationRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Record.Summary }

// Title returns the one-line summary.
func (i Item) Title() string { return i.Record.Summary }

// Description returns the expanded detail.
func (i Item) Description() string { return i.Record.Detail }

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	rec := it.Record

	marker := " "
	summary := rec.Summary
	if !rec.Acknowledged {
		marker = "•"
		summary = theme.UnreadItemStyle.Render(summary)
	}

	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(rec.ObservedAt))

	line := fmt.Sprintf("%s %s  %s", marker, summary, age)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
