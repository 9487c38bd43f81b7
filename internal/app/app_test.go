package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/credential"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/session"
	"github.com/nhle/rental-console/tests/testutil"
)

func newTestModel(t *testing.T) (Model, *Core) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cfg := &model.AppConfig{
		Backend:       model.BackendConfig{BaseURL: srv.URL, Timeout: time.Second},
		Session:       model.SessionConfig{VerifyInterval: time.Hour},
		Poll:          model.PollConfig{Interval: time.Hour},
		Notifications: model.NotificationConfig{MaxLive: 10},
	}
	st := testutil.NewTestStore(t)
	core := NewCore(cfg, st, credential.NewSlotVault(st), zerolog.Nop())
	t.Cleanup(func() {
		core.Session.Close()
		core.Poller.Stop()
	})

	m := New(core, zerolog.Nop())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), core
}

func TestModel_RoutesToLoginWithoutSession(t *testing.T) {
	m, core := newTestModel(t)
	assert.Equal(t, ViewStarting, m.currentView)

	require.NoError(t, core.Start(context.Background()))
	next, _ := m.Update(startedMsg{})
	m = next.(Model)

	assert.Equal(t, ViewLogin, m.currentView)
	assert.Nil(t, m.principal)
	assert.Contains(t, m.View(), "Admin Sign In")
}

func TestModel_LoginFailureStaysOnForm(t *testing.T) {
	m, core := newTestModel(t)
	require.NoError(t, core.Start(context.Background()))
	next, _ := m.Update(startedMsg{})
	m = next.(Model)

	next, _ = m.Update(loginResultMsg{err: session.ErrRoleNotPermitted})
	m = next.(Model)

	assert.Equal(t, ViewLogin, m.currentView)
	assert.Contains(t, m.View(), "administrators only")
}

func TestModel_DashboardKeysIgnoredOnLogin(t *testing.T) {
	m, core := newTestModel(t)
	require.NoError(t, core.Start(context.Background()))
	next, _ := m.Update(startedMsg{})
	m = next.(Model)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = next.(Model)
	assert.False(t, m.dropdownOpen)
}

func TestModel_DashboardAfterSessionEvent(t *testing.T) {
	m, core := newTestModel(t)
	require.NoError(t, core.Start(context.Background()))

	// Pretend the controller published an authenticated session.
	m.currentView = ViewLogin
	next, _ := m.syncWithSession(model.Session{Principal: &model.Principal{Email: "a@x.io", Role: model.RoleAdmin}, Token: "t"})
	m = next

	assert.Equal(t, ViewDashboard, m.currentView)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = updated.(Model)
	assert.True(t, m.dropdownOpen)
	assert.Contains(t, m.View(), "Notifications")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	require.NotNil(t, cmd)
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.False(t, m.dropdownOpen)
}

func TestLoginErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrRoleNotPermitted, "This console is for administrators only."},
		{session.ErrMissingCredentials, "Enter your email or username and password."},
		{&backend.ValidationError{StatusCode: 422, Message: "Email is invalid"}, "Email is invalid"},
		{&backend.AuthError{StatusCode: 401}, "Invalid credentials."},
		{errors.New("dial tcp: refused"), "Could not reach the server: dial tcp: refused"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, loginErrorText(tc.err))
	}
}

func TestVerifyStatusText(t *testing.T) {
	assert.Equal(t, "Session is valid.", verifyStatusText(session.Outcome{Kind: session.OutcomeActive}))
	assert.Equal(t,
		"Could not check the session, still signed in: gateway timeout",
		verifyStatusText(session.Outcome{Kind: session.OutcomeTransient, Err: errors.New("gateway timeout")}),
	)
	assert.Empty(t, verifyStatusText(session.Outcome{Kind: session.OutcomeUnauthorized}))
}

func TestModel_VerifyKeyReturnsToLoginWithoutSession(t *testing.T) {
	m, core := newTestModel(t)
	require.NoError(t, core.Start(context.Background()))
	next, _ := m.Update(startedMsg{})
	m = next.(Model)

	m, _ = m.syncWithSession(model.Session{Principal: &model.Principal{Email: "a@x.io", Role: model.RoleAdmin}, Token: "t"})
	require.Equal(t, ViewDashboard, m.currentView)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("v")})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "Checking session...", m.statusText)

	// No token is stored, so the check finds no session.
	msg := cmd()
	require.IsType(t, verifyDoneMsg{}, msg)
	updated, _ = m.Update(msg)
	m = updated.(Model)
	assert.Equal(t, ViewLogin, m.currentView)
	assert.Empty(t, m.statusText)
}
