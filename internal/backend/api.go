package backend

import (
	"context"
	"fmt"

	"github.com/nhle/rental-console/internal/model"
)

// Endpoint paths, relative to the API root.
const (
	PathVerify    = "/auth/verify"
	PathLogin     = "/auth/login"
	PathLogout    = "/auth/logout"
	PathDashboard = "/admin/dashboard"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// LoginResult is a successful login: the principal and its bearer token.
type LoginResult struct {
	User  *model.Principal `json:"user"`
	Token string           `json:"token"`
}

type verifyResponse struct {
	User *model.Principal `json:"user"`
}

// API exposes the rental backend endpoints used by the console.
type API struct {
	client *Client
}

// NewAPI wraps a client.
func NewAPI(c *Client) *API {
	return &API{client: c}
}

// Verify resolves the principal that owns token.
func (a *API) Verify(ctx context.Context, token string) (*model.Principal, error) {
	var resp verifyResponse
	if err := a.client.Get(ctx, PathVerify, token, &resp); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("verifying token: %w: missing user", ErrMalformedResponse)
	}
	return resp.User, nil
}

// Login exchanges credentials for a principal and bearer token.
func (a *API) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	var resp LoginResult
	err := a.client.Post(ctx, PathLogin, "", LoginRequest{
		Identifier: identifier,
		Secret:     secret,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if resp.User == nil || resp.Token == "" {
		return nil, fmt.Errorf("logging in: %w: missing user or token", ErrMalformedResponse)
	}
	return &resp, nil
}

// Logout asks the backend to invalidate token.
func (a *API) Logout(ctx context.Context, token string) error {
	if err := a.client.Post(ctx, PathLogout, token, nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Dashboard fetches the admin dashboard snapshot.
func (a *API) Dashboard(ctx context.Context, token string) (*model.Dashboard, error) {
	var d model.Dashboard
	if err := a.client.Get(ctx, PathDashboard, token, &d); err != nil {
		return nil, fmt.Errorf("fetching dashboard: %w", err)
	}
	return &d, nil
}
