package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/keys"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/theme"
)

// OpenMsg is sent when the operator opens a notification.
type OpenMsg struct {
	ID model.BookingID
}

// DismissMsg is sent when the operator removes a notification from the
// dropdown.
type DismissMsg struct {
	ID model.BookingID
}

// AckAllMsg is sent when the operator marks every notification read.
type AckAllMsg struct{}

// CloseMsg is sent when the dropdown is closed.
type CloseMsg struct{}

// Model is the notification dropdown.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	opened model.BookingID
	width  int
	height int
}

// New creates an empty dropdown.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.Styles.Title = theme.HeaderStyle
	l.Styles.NoItems = theme.HelpStyle.PaddingLeft(2)
	l.SetStatusBarItemName("notification", "notifications")

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetRecords replaces the listed notifications.
func (m *Model) SetRecords(records []model.NotificationRecord) tea.Cmd {
	items := make([]list.Item, len(records))
	found := false
	for i, r := range records {
		items[i] = Item{Record: r}
		if r.ID == m.opened {
			found = true
		}
	}
	if !found {
		m.opened = ""
	}
	return m.list.SetItems(items)
}

// Update handles key input while the dropdown is open.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Notifications):
			m.opened = ""
			return m, func() tea.Msg { return CloseMsg{} }

		case key.Matches(msg, m.keys.Open):
			it, ok := m.list.SelectedItem().(Item)
			if !ok {
				return m, nil
			}
			m.opened = it.Record.ID
			id := it.Record.ID
			return m, func() tea.Msg { return OpenMsg{ID: id} }

		case key.Matches(msg, m.keys.Dismiss):
			it, ok := m.list.SelectedItem().(Item)
			if !ok {
				return m, nil
			}
			id := it.Record.ID
			return m, func() tea.Msg { return DismissMsg{ID: id} }

		case key.Matches(msg, m.keys.AckAll):
			return m, func() tea.Msg { return AckAllMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the dropdown and, if one is open, the selected entry's
// detail.
func (m Model) View() string {
	parts := []string{m.list.View()}

	if m.opened != "" {
		for _, it := range m.list.Items() {
			rec := it.(Item).Record
			if rec.ID != m.opened {
				continue
			}
			detail := lipgloss.NewStyle().
				Foreground(theme.ColorWhite).
				PaddingLeft(2).
				Render(fmt.Sprintf("%s\n%s", rec.Summary, rec.Detail))
			parts = append(parts, detail)
			break
		}
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the dropdown dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-6, height-6)
}
