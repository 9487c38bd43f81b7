package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/dashboard"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/theme"
)

// Model renders the cached dashboard: the stat counters followed by the
// recent bookings.
type Model struct {
	snap   dashboard.Snapshot
	width  int
	height int
}

// New creates an empty dashboard view.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetSnapshot replaces the rendered dashboard.
func (m *Model) SetSnapshot(s dashboard.Snapshot) {
	m.snap = s
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the dashboard.
func (m Model) View() string {
	if !m.snap.Loaded() {
		return lipgloss.NewStyle().
			Padding(1, 2).
			Render(theme.HelpStyle.Render("Loading dashboard..."))
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderStats(),
		"",
		m.renderBookings(),
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

func (m Model) renderStats() string {
	s := m.snap.Stats
	cells := []string{
		stat("Cars", fmt.Sprintf("%d/%d", s.AvailableCars, s.TotalCars)),
		stat("Active", fmt.Sprint(s.ActiveBookings)),
		stat("Pending", fmt.Sprint(s.PendingBookings)),
		stat("Users", fmt.Sprint(s.TotalUsers)),
		stat("Promotions", fmt.Sprint(s.ActivePromotions)),
		stat("Revenue", fmt.Sprintf("$%.2f", s.Revenue)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func stat(label, value string) string {
	return theme.BorderStyle.
		Padding(0, 1).
		MarginRight(1).
		Render(theme.StatValueStyle.Render(value) + "\n" + theme.HelpStyle.Render(label))
}

func (m Model) renderBookings() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Recent bookings")
	if len(m.snap.RecentBookings) == 0 {
		return title + "\n" + theme.HelpStyle.Render("No bookings yet.")
	}

	limit := len(m.snap.RecentBookings)
	if room := m.height - 10; room > 0 && room < limit {
		limit = room
	}

	lines := []string{title}
	for _, b := range m.snap.RecentBookings[:limit] {
		lines = append(lines, bookingLine(b))
	}
	return strings.Join(lines, "\n")
}

func bookingLine(b model.Booking) string {
	id := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(8).Render("#" + string(b.ID))
	status := theme.BookingStatusStyle(b.Status).Width(12).Render(b.Status)
	return fmt.Sprintf("%s %s %s · %s", id, status, b.CarName, b.CustomerName)
}
