package httpapi

import (
	"net/http"
	"strings"
	"time"

	"voxdesk.io/internal/session"
)

type sessionView struct {
	ID           string `json:"id"`
	IP           string `json:"ip"`
	DeviceInfo   string `json:"device_info"`
	Current      bool   `json:"current"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
	ExpiresAt    string `json:"expires_at"`
}

// handleSessions serves the collection: list own active sessions, or end all
// of them.
func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		sessions, err := a.sessions.ListActive(r.Context(), principal.UserID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "could not list sessions")
			return
		}
		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, sessionView{
				ID:           s.ID,
				IP:           s.IP,
				DeviceInfo:   s.DeviceInfo,
				Current:      s.ID == principal.SessionID,
				CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
				LastActivity: s.LastActivity.UTC().Format(time.RFC3339),
				ExpiresAt:    s.ExpiresAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
	case http.MethodDelete:
		n, err := a.sessions.InvalidateAll(r.Context(), principal.UserID, session.EndReasonLogoutAll)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "could not end sessions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ended": n})
	default:
		methodNotAllowed(w, r, "GET, DELETE")
	}
}

// handleSessionScoped ends one session by id (logout).
func (a *API) handleSessionScoped(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions/"), "/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err := a.sessions.Invalidate(r.Context(), sessionID, principal.UserID, session.EndReasonLogout); err != nil {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended"})
}

// handleMyPermissions returns the caller's freshly resolved permission set.
func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms := a.resolver.Resolve(r.Context(), principal)
	roles := make([]string, len(perms.Roles))
	for i, role := range perms.Roles {
		roles[i] = string(role)
	}
	keys := perms.Permissions.Sorted()
	permissions := make([]string, len(keys))
	for i, p := range keys {
		permissions[i] = string(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     perms.UserID,
		"roles":       roles,
		"permissions": permissions,
		"is_owner":    perms.IsOwner,
	})
}
