package session

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/model"
)

// State is the controller's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Credentials is the token slot of the credential store.
type Credentials interface {
	TokenReader
	SetToken(token string) error
	ClearToken() error
}

// Authenticator is the backend surface the controller drives.
type Authenticator interface {
	IdentityChecker
	Login(ctx context.Context, identifier, secret string) (*backend.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// Listener is called after every session transition with the new session.
// Listeners run synchronously and must not call back into the Controller.
type Listener func(model.Session)

// Resetter is an in-memory aggregate that is emptied when a session ends.
type Resetter interface {
	Reset()
}

// logoutTimeout bounds the best-effort server-side logout.
const logoutTimeout = 5 * time.Second

// Controller orchestrates login, logout, and periodic background
// verification, and is the single owner of session state.
type Controller struct {
	creds    Credentials
	auth     Authenticator
	verifier *Verifier
	interval time.Duration
	log      zerolog.Logger

	// transitionMu serializes state transitions together with their
	// listener dispatch so listeners observe transitions in order.
	transitionMu gosync.Mutex

	mu        gosync.Mutex
	state     State
	principal *model.Principal
	token     string
	epoch     uint64
	listeners []Listener
	resetters []Resetter

	lifecycleMu gosync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewController creates a controller. verifyInterval is the background
// re-verification period; non-positive values use the default.
func NewController(
	creds Credentials,
	auth Authenticator,
	verifyInterval time.Duration,
	log zerolog.Logger,
) *Controller {
	if verifyInterval <= 0 {
		verifyInterval = model.DefaultVerifyInterval
	}
	return &Controller{
		creds:    creds,
		auth:     auth,
		verifier: NewVerifier(creds, auth, log),
		interval: verifyInterval,
		log:      log.With().Str("component", "session").Logger(),
		state:    StateInitializing,
	}
}

// Subscribe registers a listener for session transitions.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// RegisterReset registers an aggregate to empty whenever a session ends.
func (c *Controller) RegisterReset(r Resetter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetters = append(c.resetters, r)
}

// Start runs the initial verification, leaves StateInitializing, and arms
// the background verification timer until Close.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lifecycleMu.Unlock()

	c.verify(ctx, ReasonInitial)

	go c.loop(loopCtx, c.done)
	return nil
}

// Close stops the background timer and waits for it to exit. It does not
// touch session state.
func (c *Controller) Close() {
	c.lifecycleMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.verify(ctx, ReasonBackground)
		}
	}
}

// Revalidate runs one background verification immediately.
func (c *Controller) Revalidate(ctx context.Context) Outcome {
	return c.verify(ctx, ReasonBackground)
}

// verify runs the verifier and applies its outcome if the session context
// has not changed while the call was outstanding.
func (c *Controller) verify(ctx context.Context, reason Reason) Outcome {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	out := c.verifier.Verify(ctx, reason)
	c.apply(epoch, reason, out)
	return out
}

func (c *Controller) apply(epoch uint64, reason Reason, out Outcome) {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.log.Debug().
			Stringer("reason", reason).
			Stringer("outcome", out.Kind).
			Msg("discarding verification from a superseded session")
		return
	}

	prev := c.sessionLocked()
	prevState := c.state
	ended := false

	switch out.Kind {
	case OutcomeActive:
		c.principal = out.Principal
		c.token = out.Token
		c.state = StateAuthenticated

	case OutcomeNoSession:
		ended = c.endLocked(false)

	case OutcomeUnauthorized, OutcomeRejectedRole:
		ended = c.endLocked(true)

	case OutcomeTransient, OutcomeUnclassified:
		if reason == ReasonInitial {
			ended = c.endLocked(true)
		} else {
			c.log.Warn().
				Err(out.Err).
				Stringer("outcome", out.Kind).
				Msg("background verification failed; keeping session")
		}
	}

	next := c.sessionLocked()
	nextState := c.state
	listeners, resetters := c.hooksLocked()
	changed := nextState != prevState || !samePrincipal(prev.Principal, next.Principal)
	c.mu.Unlock()

	if changed {
		c.log.Info().
			Stringer("reason", reason).
			Stringer("outcome", out.Kind).
			Stringer("from", prevState).
			Stringer("to", nextState).
			Msg("session transition")
	}
	if out.Definitive() {
		c.log.Warn().Err(out.Err).Stringer("outcome", out.Kind).Msg("session rejected by backend")
	}

	if changed {
		dispatch(listeners, next)
	}
	if ended {
		reset(resetters)
	}
}

// Login authenticates with the backend and installs an admin session.
// When no session is active, any stored token is cleared first so a token
// of another scope never survives an admin login attempt.
func (c *Controller) Login(ctx context.Context, identifier, secret string) (*model.Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	c.mu.Lock()
	if c.state == StateInitializing {
		c.mu.Unlock()
		return nil, ErrInitializing
	}
	if c.state != StateAuthenticated {
		if err := c.creds.ClearToken(); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("clearing stale token: %w", err)
		}
	}
	c.mu.Unlock()

	res, err := c.auth.Login(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}
	if !res.User.IsAdmin() {
		c.log.Info().Str("identifier", identifier).Str("role", string(res.User.Role)).Msg("login rejected: not an admin")
		return nil, ErrRoleNotPermitted
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if err := c.creds.SetToken(res.Token); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("saving token: %w", err)
	}
	c.epoch++
	c.principal = res.User
	c.token = res.Token
	c.state = StateAuthenticated
	next := c.sessionLocked()
	listeners, _ := c.hooksLocked()
	c.mu.Unlock()

	c.log.Info().Str("principal", string(res.User.ID)).Msg("logged in")
	dispatch(listeners, next)
	return res.User, nil
}

// Logout ends the session. Local state is cleared first and
// unconditionally; the server-side invalidation is best-effort and its
// failure is only logged. Calling Logout again is a no-op on state.
func (c *Controller) Logout(ctx context.Context) {
	c.logout(ctx, 0, false)
}

// logout ends the session. With bound set it only does so while epoch is
// still the current authenticated session, and reports whether it did.
func (c *Controller) logout(ctx context.Context, epoch uint64, bound bool) bool {
	c.transitionMu.Lock()

	c.mu.Lock()
	if bound && (c.epoch != epoch || c.state != StateAuthenticated) {
		c.mu.Unlock()
		c.transitionMu.Unlock()
		return false
	}
	token := c.token
	wasAuthenticated := c.state == StateAuthenticated
	c.endLocked(true)
	next := c.sessionLocked()
	listeners, resetters := c.hooksLocked()
	c.mu.Unlock()

	if wasAuthenticated {
		c.log.Info().Msg("logged out")
		dispatch(listeners, next)
	}
	reset(resetters)
	c.transitionMu.Unlock()

	if token == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	if err := c.auth.Logout(ctx, token); err != nil {
		c.log.Warn().Err(err).Msg("server-side logout failed")
	}
	return true
}

// Guard inspects an error from an authenticated data fetch made under the
// session epoch returned by Current. If the backend rejected the token and
// that session is still the active one, it is ended before the error is
// returned. Rejections of a superseded session leave the current one alone.
func (c *Controller) Guard(ctx context.Context, epoch uint64, err error) error {
	if err == nil || !backend.IsAuthError(err) {
		return err
	}
	if c.logout(ctx, epoch, true) {
		c.log.Warn().Err(err).Msg("backend rejected token during data fetch")
	} else {
		c.log.Debug().Err(err).Msg("ignoring auth failure from a superseded session")
	}
	return err
}

// Current returns the session together with its epoch. Data fetches pass
// the epoch to Guard.
func (c *Controller) Current() (model.Session, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked(), c.epoch
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated is derived from the presence of a principal.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal != nil
}

// Principal returns the authenticated principal, or nil.
func (c *Controller) Principal() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.principal == nil {
		return nil
	}
	p := *c.principal
	return &p
}

// endLocked drops the in-memory session and, if purge is set, the stored
// token. It reports whether an authenticated session was ended.
func (c *Controller) endLocked(purge bool) bool {
	if purge {
		if err := c.creds.ClearToken(); err != nil {
			c.log.Error().Err(err).Msg("clearing stored token")
		}
	}

	wasAuthenticated := c.state == StateAuthenticated
	c.principal = nil
	c.token = ""
	c.state = StateAnonymous
	c.epoch++
	return wasAuthenticated
}

func (c *Controller) sessionLocked() model.Session {
	s := model.Session{Token: c.token}
	if c.principal != nil {
		p := *c.principal
		s.Principal = &p
	}
	return s
}

func (c *Controller) hooksLocked() ([]Listener, []Resetter) {
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	resetters := make([]Resetter, len(c.resetters))
	copy(resetters, c.resetters)
	return listeners, resetters
}

func dispatch(listeners []Listener, s model.Session) {
	for _, l := range listeners {
		l(s)
	}
}

func reset(resetters []Resetter) {
	for _, r := range resetters {
		r.Reset()
	}
}

func samePrincipal(a, b *model.Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
