package authz

import (
	"context"
	"errors"
	"strings"
)

// Gate validates an inbound claim into a Principal. The validated claim is the
// only authoritative source of tenant and business identity; client-supplied
// headers are informational and never trusted.
type Gate struct {
	store AccessStore
	sink  EventSink
}

// NewGate builds a gate over the given store. sink may be nil.
func NewGate(store AccessStore, sink EventSink) *Gate {
	return &Gate{store: store, sink: sink}
}

// Authenticate validates the raw bearer token and cross-checks the access
// grant. Failures map to a typed AuthError: identity failures are 401, missing
// context and missing access are 403, store failures are a fail-closed 500.
func (g *Gate) Authenticate(ctx context.Context, rawToken string, meta RequestMeta) (Principal, *AuthError) {
	claims, err := ParseToken(rawToken)
	if err != nil {
		g.recordAuthFailure(ctx, err, meta)
		return Principal{}, newAuthError(err)
	}

	principal := Principal{
		UserID:     strings.TrimSpace(claims.Subject),
		Email:      strings.TrimSpace(claims.Email),
		TenantID:   strings.TrimSpace(claims.TenantID),
		BusinessID: strings.TrimSpace(claims.BusinessID),
		SessionID:  strings.TrimSpace(claims.SessionID),
	}
	if principal.UserID == "" || principal.Email == "" {
		g.recordAuthFailure(ctx, ErrInvalidToken, meta)
		return Principal{}, newAuthError(ErrInvalidToken)
	}
	if principal.TenantID == "" || principal.BusinessID == "" {
		return Principal{}, newAuthError(ErrNoBusinessContext)
	}

	// A header asserting a different tenant than the validated claim is a
	// spoofing signal. Log it; keep deciding on the claim alone.
	if header := strings.TrimSpace(meta.HeaderTenantID); header != "" && header != principal.TenantID {
		if g.sink != nil {
			g.sink.CrossTenantAttempt(ctx, principal, header, meta)
		}
	}

	ok, err := g.store.HasAccessGrant(ctx, principal.UserID, principal.TenantID, principal.BusinessID)
	if err != nil {
		return Principal{}, newAuthError(err)
	}
	if !ok {
		if g.sink != nil {
			g.sink.CrossTenantAttempt(ctx, principal, principal.TenantID, meta)
		}
		return Principal{}, newAuthError(ErrNoAccess)
	}
	return principal, nil
}

func (g *Gate) recordAuthFailure(ctx context.Context, err error, meta RequestMeta) {
	if g.sink == nil {
		return
	}
	// An absent token is an ordinary unauthenticated request, not an attack
	// signal; rejecting it must leave no store side effects.
	if errors.Is(err, ErrNoToken) {
		return
	}
	g.sink.AuthFailure(ctx, "invalid token", meta)
}
