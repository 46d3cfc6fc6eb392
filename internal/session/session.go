package session

import (
	"context"
	"time"
)

// Session is one tracked login instance. Sessions reach a terminal state by
// being marked inactive with an end reason; rows are never deleted, the audit
// trail depends on them.
type Session struct {
	ID           string
	UserID       string
	TenantID     string
	BusinessID   string
	IP           string
	DeviceInfo   string
	Active       bool
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	EndReason    string
}

// End reasons recorded when a session goes inactive.
const (
	EndReasonLogout      = "logout"
	EndReasonLogoutAll   = "logout_all"
	EndReasonExpired     = "expired"
	EndReasonMaxSessions = "max_sessions_exceeded"
	EndReasonSecurity    = "security_invalidation"
)

// Store is the persistence surface for session rows. Serialization of
// concurrent writes for the same user is the store's responsibility; the
// manager issues plain read-then-write sequences.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID, userID string) (*Session, error)
	// Touch extends last_activity and expires_at on an active session.
	Touch(ctx context.Context, sessionID, userID string, lastActivity, expiresAt time.Time) error
	// Invalidate marks the session inactive with the reason. Idempotent.
	Invalidate(ctx context.Context, sessionID, userID, reason string) error
	InvalidateAll(ctx context.Context, userID, reason string) (int, error)
	// ListActive returns the user's active sessions ordered by last activity,
	// most recent first.
	ListActive(ctx context.Context, userID string) ([]*Session, error)
	// InvalidateExpired marks every active session past the cutoff inactive
	// with the given reason and returns how many rows changed.
	InvalidateExpired(ctx context.Context, now time.Time, reason string) (int, error)
}
