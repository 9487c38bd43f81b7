package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rental-console/internal/theme"
)

// SubmitMsg is dispatched when the operator submits the login form.
type SubmitMsg struct {
	Identifier string
	Secret     string
}

// CancelMsg is dispatched when the operator aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	identifier string
	secret     string
}

// Model is the Bubble Tea model for the admin login form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	errText string
	busy    bool
	width   int
	height  int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the form. The identifier of the previous attempt is kept.
func (m *Model) Start() tea.Cmd {
	m.fb.secret = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows msg under the form and re-arms it for another attempt.
func (m *Model) SetError(msg string) tea.Cmd {
	m.errText = msg
	return m.Start()
}

// ClearError removes any error message.
func (m *Model) ClearError() {
	m.errText = ""
}

// Busy reports whether a submitted login is still outstanding.
func (m Model) Busy() bool {
	return m.busy
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		submit := SubmitMsg{
			Identifier: strings.TrimSpace(m.fb.identifier),
			Secret:     m.fb.secret,
		}
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Admin Sign In")}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else {
		parts = append(parts, m.form.View())
	}
	if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email or username").
				Value(&m.fb.identifier).
				Validate(validateRequired("Email or username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.secret).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 30 {
		w = 30
	}
	if w > 60 {
		w = 60
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
