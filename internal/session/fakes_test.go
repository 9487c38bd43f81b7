package session_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/model"
)

var (
	admin    = &model.Principal{ID: "1", Email: "admin@rentals.io", Name: "Ada", Role: model.RoleAdmin}
	customer = &model.Principal{ID: "2", Email: "cust@rentals.io", Name: "Cy", Role: model.RoleCustomer}

	errUnauthorized = &backend.AuthError{StatusCode: http.StatusUnauthorized, Message: "Invalid token"}
	errUnavailable  = &backend.StatusError{StatusCode: http.StatusServiceUnavailable, Method: http.MethodGet, Path: backend.PathVerify}
)

// fakeAuth is a scriptable Authenticator.
type fakeAuth struct {
	mu          sync.Mutex
	verifyFn    func(ctx context.Context, token string) (*model.Principal, error)
	loginFn     func(ctx context.Context, identifier, secret string) (*backend.LoginResult, error)
	logoutErr   error
	verifyCalls int
	loginCalls  int
	logouts     []string
}

func (f *fakeAuth) Verify(ctx context.Context, token string) (*model.Principal, error) {
	f.mu.Lock()
	f.verifyCalls++
	fn := f.verifyFn
	f.mu.Unlock()

	if fn == nil {
		return admin, nil
	}
	return fn(ctx, token)
}

func (f *fakeAuth) Login(ctx context.Context, identifier, secret string) (*backend.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()

	if fn == nil {
		return &backend.LoginResult{User: admin, Token: "fresh"}, nil
	}
	return fn(ctx, identifier, secret)
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, token)
	return f.logoutErr
}

func (f *fakeAuth) setVerify(fn func(ctx context.Context, token string) (*model.Principal, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyFn = fn
}

func (f *fakeAuth) counts() (verify, login int, logouts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls, f.loginCalls, append([]string(nil), f.logouts...)
}

// countingReset records how often Reset was called.
type countingReset struct {
	mu sync.Mutex
	n  int
}

func (r *countingReset) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

func (r *countingReset) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
