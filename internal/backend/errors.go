package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx response cannot be used.
var ErrMalformedResponse = errors.New("malformed backend response")

// AuthError indicates that the backend rejected the bearer credential as
// missing, invalid, or expired. It is returned for HTTP 401/403 and for
// any response that carries an explicit invalid-token message.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ValidationError is returned for 400/422 responses. It never affects the
// session.
type ValidationError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation failed (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("validation failed (%d): %s %v", e.StatusCode, e.Message, e.Fields)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// StatusError is any other non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Transient reports whether retrying later could succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Kind is the failure class used by session policy.
type Kind int

const (
	KindNone Kind = iota
	KindUnauthorized
	KindValidation
	KindTransient
	KindUnclassified
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	default:
		return "unclassified"
	}
}

// Classify maps an error returned by Client into a failure class.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindUnauthorized
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		if sErr.Transient() {
			return KindTransient
		}
		return KindUnclassified
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindTransient
	}

	return KindUnclassified
}

// invalidTokenMarkers are lower-cased message fragments the backend uses
// to signal a rejected credential regardless of status code.
var invalidTokenMarkers = []string{
	"invalid token",
	"token expired",
	"jwt expired",
	"no token provided",
}

func isInvalidTokenMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range invalidTokenMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
