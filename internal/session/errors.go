package session

import "errors"

var (
	// ErrRoleNotPermitted is returned by Login when the account is valid
	// but is not an administrator.
	ErrRoleNotPermitted = errors.New("admin access only")

	// ErrMissingCredentials is returned by Login when the identifier or
	// secret is empty.
	ErrMissingCredentials = errors.New("identifier and secret are required")

	// ErrInitializing is returned by Login before Start has settled the
	// initial session state.
	ErrInitializing = errors.New("session is still initializing")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session controller already started")
)
