package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/keys"
	"github.com/nhle/rental-console/internal/theme"
)

// SessionInfo is the session summary shown under the key bindings.
type SessionInfo struct {
	Principal string
	Role      string
	Sync      string
	Skipped   int
}

// Model is the help overlay: all key bindings plus who is signed in and
// how polling is doing.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	info   SessionInfo
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: k, help: h}
	m.SetSize(width, height)
	return m
}

// SetSessionInfo replaces the session summary.
func (m *Model) SetSessionInfo(info SessionInfo) {
	m.info = info
}

// View renders the help overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.help.View(m.keys),
		"",
		m.sessionBlock(),
	)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m Model) sessionBlock() string {
	if m.info.Principal == "" {
		return theme.HelpStyle.Render("Not signed in.")
	}

	var b strings.Builder
	b.WriteString("Signed in as " + m.info.Principal)
	if m.info.Role != "" {
		b.WriteString(" (" + m.info.Role + ")")
	}
	b.WriteString("\nPolling: " + m.info.Sync)
	if m.info.Skipped > 0 {
		b.WriteString(theme.HelpStyle.Render(
			fmt.Sprintf("  (%d ticks skipped while a fetch was in flight)", m.info.Skipped)))
	}
	return b.String()
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-4, 0)
}
