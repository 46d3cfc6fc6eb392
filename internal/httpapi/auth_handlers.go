package httpapi

import (
	"net/http"
	"strings"
	"time"

	"voxdesk.io/internal/authz"
	"voxdesk.io/internal/security"
)

const sessionTokenTTL = time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	ExpiresIn int    `json:"expires_in"`
	SessionID string `json:"session_id"`
}

// handleLogin verifies credentials, opens a session and issues the signed
// session token. Failed attempts are recorded as auth_failure events; the
// response never distinguishes unknown email from wrong password.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	ip := ClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	account, err := a.users.FindUserByEmail(r.Context(), email)
	if err != nil {
		a.recordLoginFailure(r, email, "unknown account")
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}
	ok, err := VerifyPassword(req.Password, account.PasswordHash)
	if err != nil || !ok {
		a.recordLoginFailure(r, email, "password mismatch")
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if account.Status != "" && account.Status != "active" {
		a.recordLoginFailure(r, email, "account disabled")
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}

	principal := authz.Principal{
		UserID:     account.ID,
		Email:      account.Email,
		TenantID:   account.TenantID,
		BusinessID: account.BusinessID,
	}
	sessionID, err := a.sessions.Create(r.Context(), principal, ip, userAgent)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal authentication error")
		return
	}

	token, expiresAt, err := authz.IssueToken(account.ID, account.Email, account.TenantID, account.BusinessID, sessionID, sessionTokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal authentication error")
		return
	}

	if a.monitor != nil {
		a.monitor.LogEvent(r.Context(), &security.SecurityEvent{
			Type:       security.EventAuthSuccess,
			UserID:     account.ID,
			TenantID:   account.TenantID,
			BusinessID: account.BusinessID,
			IP:         ip,
			UserAgent:  userAgent,
			Detail:     map[string]any{"session_id": sessionID},
		})
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		ExpiresIn: int(sessionTokenTTL.Seconds()),
		SessionID: sessionID,
	})
}

func (a *API) recordLoginFailure(r *http.Request, email, reason string) {
	if a.monitor == nil {
		return
	}
	a.monitor.LogEvent(r.Context(), &security.SecurityEvent{
		Type:      security.EventAuthFailure,
		IP:        ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Detail: map[string]any{
			"email":  email,
			"reason": reason,
		},
	})
}
