// Package session owns the admin bearer-token lifecycle.
//
// A Verifier checks the stored token against the backend and classifies
// the result. A Controller applies that classification: definitive
// rejections always end the session, transient failures end it only when
// no verification has succeeded yet (the initial check at start-up), and
// background re-verification never evicts a session on a connectivity
// failure.
//
// Every path that applies an outcome is guarded by a session epoch that is
// captured before the network call. Logout and Login advance the epoch, so
// an outcome that arrives after the operator has logged out is discarded
// instead of resurrecting the session.
package session
