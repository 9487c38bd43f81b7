package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/rental-console/internal/backend"
	"github.com/nhle/rental-console/internal/model"
)

// Reason tells the controller which policy applies to a verification.
type Reason int

const (
	// ReasonInitial is the start-up check. No verification has succeeded
	// yet, so a transient failure is treated as session loss.
	ReasonInitial Reason = iota

	// ReasonBackground is the periodic re-check of a running session.
	ReasonBackground
)

func (r Reason) String() string {
	if r == ReasonInitial {
		return "initial"
	}
	return "background"
}

// OutcomeKind classifies the result of a verification.
type OutcomeKind int

const (
	OutcomeNoSession OutcomeKind = iota
	OutcomeActive
	OutcomeRejectedRole
	OutcomeUnauthorized
	OutcomeTransient
	OutcomeUnclassified
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoSession:
		return "no_session"
	case OutcomeActive:
		return "active"
	case OutcomeRejectedRole:
		return "rejected_role"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeTransient:
		return "transient"
	default:
		return "unclassified"
	}
}

// Outcome is the tagged result of Verifier.Verify.
type Outcome struct {
	Kind OutcomeKind

	// Principal and Token are set only for OutcomeActive.
	Principal *model.Principal
	Token     string

	// Err is the underlying failure, if any.
	Err error
}

// Definitive reports whether the outcome requires purging the session
// regardless of the verification reason.
func (o Outcome) Definitive() bool {
	return o.Kind == OutcomeUnauthorized || o.Kind == OutcomeRejectedRole
}

// TokenReader reads the stored bearer token.
type TokenReader interface {
	Token() (string, bool, error)
}

// IdentityChecker resolves the principal behind a token.
type IdentityChecker interface {
	Verify(ctx context.Context, token string) (*model.Principal, error)
}

// Verifier checks the stored token against the identity endpoint and
// classifies the result. It never mutates session state.
type Verifier struct {
	tokens  TokenReader
	checker IdentityChecker
	log     zerolog.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(tokens TokenReader, checker IdentityChecker, log zerolog.Logger) *Verifier {
	return &Verifier{
		tokens:  tokens,
		checker: checker,
		log:     log.With().Str("component", "verifier").Logger(),
	}
}

// Verify classifies the stored token. Without a stored token no network
// call is made.
func (v *Verifier) Verify(ctx context.Context, reason Reason) Outcome {
	token, ok, err := v.tokens.Token()
	if err != nil {
		return Outcome{Kind: OutcomeUnclassified, Err: fmt.Errorf("reading stored token: %w", err)}
	}
	if !ok {
		return Outcome{Kind: OutcomeNoSession}
	}

	principal, err := v.checker.Verify(ctx, token)
	if err != nil {
		out := Outcome{Kind: outcomeFor(backend.Classify(err)), Err: err}
		v.log.Debug().
			Err(err).
			Stringer("reason", reason).
			Stringer("outcome", out.Kind).
			Msg("verification failed")
		return out
	}

	if !principal.IsAdmin() {
		return Outcome{
			Kind: OutcomeRejectedRole,
			Err:  fmt.Errorf("%w: role %q", ErrRoleNotPermitted, principal.Role),
		}
	}

	return Outcome{Kind: OutcomeActive, Principal: principal, Token: token}
}

func outcomeFor(kind backend.Kind) OutcomeKind {
	switch kind {
	case backend.KindUnauthorized:
		return OutcomeUnauthorized
	case backend.KindTransient:
		return OutcomeTransient
	default:
		return OutcomeUnclassified
	}
}
