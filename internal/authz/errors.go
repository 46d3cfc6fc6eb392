package authz

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoToken           = errors.New("authz: missing token")
	ErrInvalidToken      = errors.New("authz: invalid token")
	ErrNoBusinessContext = errors.New("authz: missing business context")
	ErrNoAccess          = errors.New("authz: no access to business")
	ErrInternal          = errors.New("authz: internal authentication error")
)

// AuthError is the typed failure returned by the gate. Message is always safe
// to return to the caller; identity failures stay generic, access failures may
// name the missing context but never internals.
type AuthError struct {
	Code       string
	Message    string
	HTTPStatus int
	err        error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.err }

func newAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrNoToken):
		return &AuthError{Code: "no_token", Message: "missing or invalid authorization header", HTTPStatus: http.StatusUnauthorized, err: err}
	case errors.Is(err, ErrInvalidToken):
		return &AuthError{Code: "invalid_token", Message: "invalid or expired token", HTTPStatus: http.StatusUnauthorized, err: err}
	case errors.Is(err, ErrNoBusinessContext):
		return &AuthError{Code: "no_business_context", Message: "tenant and business context are required", HTTPStatus: http.StatusForbidden, err: err}
	case errors.Is(err, ErrNoAccess):
		return &AuthError{Code: "no_access", Message: "no access to the requested business", HTTPStatus: http.StatusForbidden, err: err}
	default:
		return &AuthError{Code: "internal", Message: "internal authentication error", HTTPStatus: http.StatusInternalServerError, err: err}
	}
}

// Decision is the outcome of an authorization check. The zero value is a deny
// with no detail; use Allow/Deny constructors.
type Decision struct {
	Allowed            bool
	MissingPermissions []Permission
}

// Allow is the affirmative decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny names the permissions the principal lacked.
func Deny(missing []Permission) Decision {
	return Decision{Allowed: false, MissingPermissions: missing}
}

// Message renders the caller-facing denial text naming the missing
// permissions, per the access-error policy.
func (d Decision) Message() string {
	if d.Allowed {
		return ""
	}
	if len(d.MissingPermissions) == 0 {
		return "insufficient permissions"
	}
	keys := make([]string, len(d.MissingPermissions))
	for i, p := range d.MissingPermissions {
		keys[i] = string(p)
	}
	return fmt.Sprintf("insufficient permissions: missing %s", strings.Join(keys, ", "))
}
