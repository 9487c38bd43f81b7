package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/keys"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/session"
	appsync "github.com/nhle/rental-console/internal/sync"
	"github.com/nhle/rental-console/internal/theme"
	"github.com/nhle/rental-console/internal/ui"
	dashview "github.com/nhle/rental-console/internal/ui/dashboard"
	helpview "github.com/nhle/rental-console/internal/ui/help"
	"github.com/nhle/rental-console/internal/ui/login"
	"github.com/nhle/rental-console/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewStarting ViewState = iota
	ViewLogin
	ViewDashboard
	ViewHelp
)

// startedMsg is sent once the initial session verification has finished.
type startedMsg struct {
	err error
}

// sessionMsg carries a session transition published by the controller.
type sessionMsg struct {
	session model.Session
}

// loginResultMsg is the outcome of a submitted login form.
type loginResultMsg struct {
	principal *model.Principal
	err       error
}

// logoutDoneMsg is sent after Logout returns.
type logoutDoneMsg struct{}

// verifyDoneMsg carries the outcome of an operator-requested session check.
type verifyDoneMsg struct {
	outcome session.Outcome
}

// ackResultMsg is the outcome of acknowledging notifications.
type ackResultMsg struct {
	err error
}

// Model is the root Bubble Tea model that routes between the login form
// and the dashboard and reflects session and poll state.
type Model struct {
	core         *Core
	log          zerolog.Logger
	sessionCh    chan model.Session
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	loginView    login.Model
	dashView     dashview.Model
	dropdown     notifications.Model
	helpView     helpview.Model
	dropdownOpen bool
	principal    *model.Principal
	unreadCount  int
	statusText   string
	ready        bool
}

// New creates the root console model over a wired core. The core must not
// have been started; Init starts it.
func New(core *Core, log zerolog.Logger) Model {
	k := keys.DefaultKeyMap()

	sessionCh := make(chan model.Session, 8)
	core.Session.Subscribe(func(s model.Session) {
		select {
		case sessionCh <- s:
		default:
			// The UI re-reads the session on the next message anyway.
		}
	})

	return Model{
		core:        core,
		log:         log,
		sessionCh:   sessionCh,
		currentView: ViewStarting,
		keys:        k,
		loginView:   login.New(80, 24),
		dashView:    dashview.New(80, 24),
		dropdown:    notifications.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init starts the session controller and begins listening for session and
// poll events.
func (m Model) Init() tea.Cmd {
	core := m.core
	return tea.Batch(
		func() tea.Msg {
			return startedMsg{err: core.Start(context.Background())}
		},
		m.waitForSession(),
		m.core.Poller.WaitForNextResult(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.dashView.SetSize(w, h)
		m.dropdown.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case startedMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("starting session controller")
		}
		return m.syncWithSession(m.core.Session.Session())

	case sessionMsg:
		next, cmd := m.syncWithSession(msg.session)
		return next, tea.Batch(cmd, m.waitForSession())

	case login.SubmitMsg:
		return m, m.login(msg.Identifier, msg.Secret)

	case login.CancelMsg:
		return m, tea.Quit

	case loginResultMsg:
		if msg.err != nil {
			return m, m.loginView.SetError(loginErrorText(msg.err))
		}
		m.loginView.ClearError()
		return m.syncWithSession(m.core.Session.Session())

	case logoutDoneMsg:
		return m.syncWithSession(m.core.Session.Session())

	case verifyDoneMsg:
		m.statusText = verifyStatusText(msg.outcome)
		return m.syncWithSession(m.core.Session.Session())

	case appsync.SyncResultMsg:
		switch {
		case msg.AuthExpired:
			m.statusText = "Session expired. Please sign in again."
		case msg.Error != nil:
			m.statusText = "Dashboard refresh failed: " + msg.Error.Error()
		default:
			m.statusText = ""
		}
		cmd := m.refreshFromCore()
		return m, tea.Batch(cmd, m.core.Poller.WaitForNextResult())

	case notifications.OpenMsg:
		return m, m.acknowledgeOne(msg.ID)

	case notifications.DismissMsg:
		m.core.Dedup.Dismiss(msg.ID)
		return m, m.refreshFromCore()

	case notifications.AckAllMsg:
		return m, m.acknowledgeAll()

	case notifications.CloseMsg:
		m.dropdownOpen = false
		return m, nil

	case ackResultMsg:
		if msg.err != nil {
			m.statusText = "Could not save read state: " + msg.err.Error()
		}
		return m, m.refreshFromCore()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.currentView == ViewLogin || m.currentView == ViewStarting {
			break
		}
		if m.dropdownOpen {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			m.helpView.SetSessionInfo(m.sessionInfo())
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Notifications):
			if m.currentView == ViewDashboard {
				m.dropdownOpen = true
				return m, m.refreshFromCore()
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewDashboard {
				m.core.Poller.RefreshNow()
				return m, nil
			}

		case key.Matches(msg, m.keys.Logout):
			if m.currentView == ViewDashboard {
				return m, m.logout()
			}

		case key.Matches(msg, m.keys.Verify):
			if m.currentView == ViewDashboard {
				m.statusText = "Checking session..."
				return m, m.revalidate()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewDashboard:
		if m.dropdownOpen {
			m.dropdown, cmd = m.dropdown.Update(msg)
		}
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(ui.Header{
		Title:  "Rental Console",
		Unread: m.unreadCount,
		Status: m.headerStatus(),
	})

	return m.layout.Frame(header, m.renderContent(), m.layout.RenderStatusBar(m.keyHints()))
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewStarting:
		return theme.HelpStyle.Render("  Checking stored session...")
	case ViewLogin:
		return m.loginView.View()
	case ViewDashboard:
		if m.dropdownOpen {
			return m.dropdown.View()
		}
		return m.dashView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// headerStatus describes the signed-in principal and the poll state.
func (m Model) headerStatus() string {
	if m.principal == nil {
		return "signed out"
	}

	st := m.core.Poller.Status()
	state := st.State.String()
	if st.State == appsync.SyncIdle && !st.LastSync.IsZero() {
		state = "updated " + st.LastSync.Format("15:04:05")
	}
	return fmt.Sprintf("%s | %s", m.principal.Email, state)
}

func (m Model) sessionInfo() helpview.SessionInfo {
	if m.principal == nil {
		return helpview.SessionInfo{}
	}
	st := m.core.Poller.Status()
	return helpview.SessionInfo{
		Principal: m.principal.Email,
		Role:      string(m.principal.Role),
		Sync:      st.State.String(),
		Skipped:   st.Skipped,
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusText != "" && m.currentView != ViewHelp {
		return m.statusText
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewDashboard:
		if m.dropdownOpen {
			return "enter open | x dismiss | A mark all read | esc close"
		}
		return "n notifications | r refresh | L log out | ? help | q quit"
	default:
		return "ctrl+c quit"
	}
}

// syncWithSession routes to the login form or the dashboard according to
// the controller's current session.
func (m Model) syncWithSession(s model.Session) (Model, tea.Cmd) {
	if m.core.Session.State() == session.StateInitializing {
		return m, nil
	}

	if s.Authenticated() {
		m.principal = s.Principal
		if m.currentView == ViewLogin || m.currentView == ViewStarting {
			m.currentView = ViewDashboard
		}
		return m, m.refreshFromCore()
	}

	m.principal = nil
	m.dropdownOpen = false
	m.unreadCount = 0
	m.dashView.SetSnapshot(m.core.Dashboard.Snapshot())
	cmd := m.dropdown.SetRecords(nil)
	if m.currentView != ViewLogin {
		m.currentView = ViewLogin
		return m, tea.Batch(cmd, m.loginView.Start())
	}
	return m, cmd
}

// refreshFromCore copies the dashboard cache and the live notifications
// into the views.
func (m *Model) refreshFromCore() tea.Cmd {
	m.dashView.SetSnapshot(m.core.Dashboard.Snapshot())
	m.unreadCount = m.core.Dedup.Unread()
	return m.dropdown.SetRecords(m.core.Dedup.Live())
}

func (m Model) waitForSession() tea.Cmd {
	ch := m.sessionCh
	return func() tea.Msg {
		return sessionMsg{session: <-ch}
	}
}

func (m Model) login(identifier, secret string) tea.Cmd {
	ctrl := m.core.Session
	return func() tea.Msg {
		p, err := ctrl.Login(context.Background(), identifier, secret)
		return loginResultMsg{principal: p, err: err}
	}
}

func (m Model) logout() tea.Cmd {
	ctrl := m.core.Session
	return func() tea.Msg {
		ctrl.Logout(context.Background())
		return logoutDoneMsg{}
	}
}

func (m Model) revalidate() tea.Cmd {
	ctrl := m.core.Session
	return func() tea.Msg {
		return verifyDoneMsg{outcome: ctrl.Revalidate(context.Background())}
	}
}

func (m Model) acknowledgeOne(id model.BookingID) tea.Cmd {
	d := m.core.Dedup
	return func() tea.Msg {
		return ackResultMsg{err: d.AcknowledgeOne(context.Background(), id)}
	}
}

func (m Model) acknowledgeAll() tea.Cmd {
	d := m.core.Dedup
	return func() tea.Msg {
		return ackResultMsg{err: d.AcknowledgeAll(context.Background())}
	}
}

// verifyStatusText describes a manual session check for the status bar.
// A failed check that ended the session is shown on the login form instead.
func verifyStatusText(out session.Outcome) string {
	switch out.Kind {
	case session.OutcomeActive:
		return "Session is valid."
	case session.OutcomeTransient, session.OutcomeUnclassified:
		return "Could not check the session, still signed in: " + errText(out.Err)
	default:
		return ""
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// loginErrorText maps a login failure to the message shown under the form.
func loginErrorText(err error) string {
	var verr *backend.ValidationError
	switch {
	case errors.Is(err, session.ErrRoleNotPermitted):
		return "This console is for administrators only."
	case errors.Is(err, session.ErrMissingCredentials):
		return "Enter your email or username and password."
	case errors.Is(err, session.ErrInitializing):
		return "Still checking the stored session, try again."
	case errors.As(err, &verr):
		return verr.Message
	case backend.IsAuthError(err):
		return "Invalid credentials."
	default:
		return "Could not reach the server: " + err.Error()
	}
}
