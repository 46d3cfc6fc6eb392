package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"voxdesk.io/internal/authz"
	"voxdesk.io/internal/ids"
	"voxdesk.io/internal/obs"
	"voxdesk.io/internal/security"
)

// Policy constants. The concurrency cap is a soft protective measure, not a
// hard security boundary; a racing create may transiently exceed it by one.
const (
	MaxConcurrentSessions = 10
	InactivityTimeout     = 60 * time.Minute
	SuspiciousSessions    = 5
	SweepInterval         = 15 * time.Minute
)

var (
	ErrNotFound     = errors.New("session: not found")
	ErrInvalidInput = errors.New("session: invalid input")
)

// SecurityLog is the slice of the monitor the manager needs.
type SecurityLog interface {
	LogEvent(ctx context.Context, event *security.SecurityEvent)
}

// Manager owns the session lifecycle: creation, activity refresh, explicit and
// implicit invalidation, and the periodic expiry sweep.
type Manager struct {
	store         Store
	events        SecurityLog
	now           func() time.Time
	sweepInFlight atomic.Bool
}

// NewManager builds a manager over the given store. events may be nil.
func NewManager(store Store, events SecurityLog) *Manager {
	return &Manager{store: store, events: events, now: time.Now}
}

// Create inserts an active session for the principal and enforces the
// concurrency policy: past the suspicious threshold the login is flagged,
// past the hard cap the oldest sessions by last activity are invalidated.
func (m *Manager) Create(ctx context.Context, p authz.Principal, ip, userAgent string) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := m.now().UTC()
	s := &Session{
		ID:           ids.New(),
		UserID:       p.UserID,
		TenantID:     p.TenantID,
		BusinessID:   p.BusinessID,
		IP:           ip,
		DeviceInfo:   DeviceInfo(userAgent),
		Active:       true,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(InactivityTimeout),
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return "", err
	}
	obs.SessionOpened()

	active, err := m.store.ListActive(ctx, p.UserID)
	if err != nil {
		// The session exists; policy enforcement just degrades this once.
		obs.LogError("session_policy_check_failed", map[string]any{
			"user_id": p.UserID,
			"error":   err.Error(),
		})
		return s.ID, nil
	}

	if len(active) > SuspiciousSessions && m.events != nil {
		m.events.LogEvent(ctx, &security.SecurityEvent{
			Type:       security.EventSuspiciousLogin,
			UserID:     p.UserID,
			TenantID:   p.TenantID,
			BusinessID: p.BusinessID,
			IP:         ip,
			UserAgent:  userAgent,
			Detail: map[string]any{
				"concurrent_sessions": len(active),
				"threshold":           SuspiciousSessions,
			},
		})
	}

	if len(active) > MaxConcurrentSessions {
		// ListActive is ordered most recent first; trim from the tail.
		for _, old := range active[MaxConcurrentSessions:] {
			if err := m.store.Invalidate(ctx, old.ID, p.UserID, EndReasonMaxSessions); err != nil {
				obs.LogError("session_cap_invalidate_failed", map[string]any{
					"session_id": old.ID,
					"user_id":    p.UserID,
					"error":      err.Error(),
				})
				continue
			}
			obs.SessionClosed()
		}
	}

	return s.ID, nil
}

// Touch extends both last_activity and expires_at to now plus the inactivity
// timeout. Called on every authenticated request (sliding-window expiry).
func (m *Manager) Touch(ctx context.Context, sessionID, userID string) error {
	now := m.now().UTC()
	return m.store.Touch(ctx, sessionID, userID, now, now.Add(InactivityTimeout))
}

// Invalidate marks one session inactive with the reason.
func (m *Manager) Invalidate(ctx context.Context, sessionID, userID, reason string) error {
	if err := m.store.Invalidate(ctx, sessionID, userID, reason); err != nil {
		return err
	}
	obs.SessionClosed()
	return nil
}

// InvalidateAll ends every active session for the user, e.g. after a
// credential change or a critical threat response.
func (m *Manager) InvalidateAll(ctx context.Context, userID, reason string) (int, error) {
	n, err := m.store.InvalidateAll(ctx, userID, reason)
	for i := 0; i < n; i++ {
		obs.SessionClosed()
	}
	return n, err
}

// ListActive returns the user's active sessions, most recent activity first.
func (m *Manager) ListActive(ctx context.Context, userID string) ([]*Session, error) {
	return m.store.ListActive(ctx, userID)
}

// Validation is the outcome of a per-sensitive-operation session check.
type Validation struct {
	Valid  bool
	Reason string
	// StepUpRecommended is set when the request IP differs from the session's
	// recorded IP. The session stays valid (mobile networks churn IPs), but
	// handlers for sensitive operations should require re-authentication.
	StepUpRecommended bool
}

// ValidateSecurity checks the session at use time. Expiry enforcement is lazy:
// an expired-but-still-active row is invalidated here rather than waiting for
// the sweep.
func (m *Manager) ValidateSecurity(ctx context.Context, sessionID, userID, currentIP string) Validation {
	s, err := m.store.Get(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Validation{Valid: false, Reason: "Session not found"}
		}
		// Fail closed on store errors: an unverifiable session is invalid.
		return Validation{Valid: false, Reason: "Session could not be verified"}
	}
	if !s.Active {
		return Validation{Valid: false, Reason: "Session is not active"}
	}
	now := m.now().UTC()
	if now.After(s.ExpiresAt) {
		if err := m.store.Invalidate(ctx, sessionID, userID, EndReasonExpired); err == nil {
			obs.SessionClosed()
		}
		return Validation{Valid: false, Reason: "Session expired"}
	}

	if currentIP != "" && s.IP != "" && currentIP != s.IP {
		if m.events != nil {
			m.events.LogEvent(ctx, &security.SecurityEvent{
				Type:       security.EventSessionHijackAttempt,
				UserID:     userID,
				TenantID:   s.TenantID,
				BusinessID: s.BusinessID,
				IP:         currentIP,
				Detail: map[string]any{
					"session_id": sessionID,
					"session_ip": s.IP,
					"request_ip": currentIP,
				},
			})
		}
		return Validation{Valid: true, StepUpRecommended: true}
	}
	return Validation{Valid: true}
}

// CleanupExpired marks every still-active session past its expiry inactive
// with reason "expired". Idempotent; safe to run on a timer.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	n, err := m.store.InvalidateExpired(ctx, m.now().UTC(), EndReasonExpired)
	for i := 0; i < n; i++ {
		obs.SessionClosed()
	}
	return n, err
}

// RunSweeper runs CleanupExpired on a fixed interval until ctx is cancelled.
// Overlapping runs are skipped rather than queued; eventual consistency of
// cleanup is acceptable.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.sweepInFlight.CompareAndSwap(false, true) {
				continue
			}
			n, err := m.CleanupExpired(ctx)
			if err != nil {
				obs.LogError("session_sweep_failed", map[string]any{"error": err.Error()})
			} else if n > 0 {
				obs.LogRequest(map[string]any{
					"ts":    m.now().UTC().Format(time.RFC3339Nano),
					"level": "info",
					"msg":   "session_sweep_complete",
					"ended": n,
				})
			}
			m.sweepInFlight.Store(false)
		}
	}
}
