package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/credential"
	"github.com/nhle/rental-console/internal/dashboard"
	"github.com/nhle/rental-console/internal/model"
	"github.com/nhle/rental-console/internal/notify"
	"github.com/nhle/rental-console/internal/session"
	"github.com/nhle/rental-console/internal/store"
	appsync "github.com/nhle/rental-console/internal/sync"
)

// ErrNotAuthenticated is returned by the dashboard fetch when no admin
// session is active.
var ErrNotAuthenticated = errors.New("no active admin session")

// Core holds the wired session and data-sync components shared by the
// interactive console and headless mode.
type Core struct {
	Config      *model.AppConfig
	Store       *store.SQLiteStore
	Credentials *credential.Store
	API         *backend.API
	Session     *session.Controller
	Dedup       *notify.Deduplicator
	Dashboard   *dashboard.State
	Poller      *appsync.Poller

	log zerolog.Logger
}

// Open opens local storage and the credential vault named by cfg and wires
// the components together.
func Open(cfg *model.AppConfig, log zerolog.Logger) (*Core, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	vault, err := openVault(cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	return NewCore(cfg, st, vault, log), nil
}

func openVault(cfg *model.AppConfig, st *store.SQLiteStore) (credential.Vault, error) {
	switch cfg.Storage.CredentialBackend {
	case model.CredentialBackendSQLite:
		return credential.NewSlotVault(st), nil
	default:
		kr, err := credential.OpenKeyring(cfg.Storage.KeyringDir)
		if err != nil {
			return nil, fmt.Errorf("opening keyring: %w", err)
		}
		return kr, nil
	}
}

// NewCore wires the components over an already-open store and vault.
func NewCore(cfg *model.AppConfig, st *store.SQLiteStore, vault credential.Vault, log zerolog.Logger) *Core {
	creds := credential.NewStore(vault, st)
	api := backend.NewAPI(backend.NewClient(
		cfg.Backend.BaseURL,
		cfg.Backend.Timeout,
		cfg.Backend.MaxRetries,
		log,
	))

	c := &Core{
		Config:      cfg,
		Store:       st,
		Credentials: creds,
		API:         api,
		Session:     session.NewController(creds, api, cfg.Session.VerifyInterval, log),
		Dedup:       notify.New(creds, cfg.Notifications.MaxLive, log),
		Dashboard:   dashboard.NewState(),
		log:         log,
	}
	c.Poller = appsync.New(
		c.fetchDashboard,
		appsync.NewPipeline(c.Dashboard, c.Dedup),
		cfg.Poll.Interval,
		log,
	)

	// Polling follows the session. Resetters run after listeners, so the
	// poller is already stopped when the aggregates are emptied.
	c.Session.Subscribe(func(s model.Session) {
		if s.Authenticated() {
			c.Poller.Activate()
			return
		}
		c.Poller.Deactivate()
	})
	c.Session.RegisterReset(c.Dashboard)
	c.Session.RegisterReset(c.Dedup)

	return c
}

// Start runs the initial session verification and arms background
// re-verification.
func (c *Core) Start(ctx context.Context) error {
	return c.Session.Start(ctx)
}

// Close stops background work and closes local storage. Session state is
// left as is so a stored token survives a restart.
func (c *Core) Close() error {
	c.Session.Close()
	c.Poller.Stop()
	return c.Store.Close()
}

// fetchDashboard is the poller's fetcher. An auth failure ends the session
// it was made under, through the controller, before the error reaches the
// poller.
func (c *Core) fetchDashboard(ctx context.Context) (*model.Dashboard, error) {
	s, epoch := c.Session.Current()
	if s.Token == "" {
		return nil, ErrNotAuthenticated
	}

	d, err := c.API.Dashboard(ctx, s.Token)
	if err != nil {
		return nil, c.Session.Guard(ctx, epoch, err)
	}
	return d, nil
}
