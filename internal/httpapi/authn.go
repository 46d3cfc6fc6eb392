package httpapi

import (
	"net/http"
	"strings"

	"voxdesk.io/internal/authz"
	"voxdesk.io/internal/obs"
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
}

// withAuth validates the bearer token through the gate and attaches the
// resulting principal to the request context. Only the validated claim
// decides tenant scope; the X-Tenant-ID header is captured purely so the gate
// can flag contradictions.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		meta := authz.RequestMeta{
			IP:             ClientIP(r),
			UserAgent:      r.Header.Get("User-Agent"),
			Path:           r.URL.Path,
			Method:         r.Method,
			HeaderTenantID: r.Header.Get("X-Tenant-ID"),
		}
		ctx := authz.ContextWithRequestMeta(r.Context(), meta)

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		principal, authErr := a.gate.Authenticate(ctx, token, meta)
		if authErr != nil {
			if authErr.HTTPStatus == http.StatusInternalServerError {
				obs.LogError("authentication_failed", map[string]any{
					"request_id": requestIDFromContext(ctx),
					"error":      authErr.Unwrap().Error(),
				})
			}
			writeError(w, r, authErr.HTTPStatus, authErr.Message)
			return
		}

		// Session liveness rides along with authentication: refresh the
		// sliding window and pick up the step-up signal on IP change.
		if principal.SessionID != "" && a.sessions != nil {
			check := a.sessions.ValidateSecurity(ctx, principal.SessionID, principal.UserID, meta.IP)
			if !check.Valid {
				writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if check.StepUpRecommended {
				w.Header().Set("X-Step-Up-Required", "true")
			}
			_ = a.sessions.Touch(ctx, principal.SessionID, principal.UserID)
		}

		next.ServeHTTP(w, r.WithContext(authz.ContextWithPrincipal(ctx, principal)))
	})
}

// withAuthorization enforces the static route-permission table after
// authentication.
func (a *API) withAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required := a.routePerms.required(r.Method, r.URL.Path)
		if len(required) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		principal, ok := authz.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		decision := a.resolver.Authorize(r.Context(), principal, required...)
		if !decision.Allowed {
			obs.AuthzDecision("deny")
			writeError(w, r, http.StatusForbidden, decision.Message())
			return
		}
		obs.AuthzDecision("allow")
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return strings.HasPrefix(path, "/assets/")
}
