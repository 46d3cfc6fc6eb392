package security

import (
	"context"
	"time"
)

// EventType is the closed enumeration of security event kinds.
type EventType string

const (
	EventAuthSuccess          EventType = "auth_success"
	EventAuthFailure          EventType = "auth_failure"
	EventPermissionViolation  EventType = "permission_violation"
	EventUnauthorizedAccess   EventType = "unauthorized_access"
	EventPrivilegeEscalation  EventType = "privilege_escalation"
	EventCrossTenantAccess    EventType = "cross_tenant_access"
	EventSessionHijackAttempt EventType = "session_hijack_attempt"
	EventSuspiciousLogin      EventType = "suspicious_login"
	EventRateLimitExceeded    EventType = "rate_limit_exceeded"
	EventDataExport           EventType = "data_export"
)

// Severity classifies an event independent of its computed risk score.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel is derived from the computed risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// severityByType is the static severity classification per event type.
var severityByType = map[EventType]Severity{
	EventAuthSuccess:          SeverityLow,
	EventAuthFailure:          SeverityLow,
	EventPermissionViolation:  SeverityMedium,
	EventUnauthorizedAccess:   SeverityMedium,
	EventPrivilegeEscalation:  SeverityHigh,
	EventCrossTenantAccess:    SeverityCritical,
	EventSessionHijackAttempt: SeverityCritical,
	EventSuspiciousLogin:      SeverityMedium,
	EventRateLimitExceeded:    SeverityLow,
	EventDataExport:           SeverityMedium,
}

// SeverityFor returns the static severity for the event type.
func SeverityFor(t EventType) Severity {
	if s, ok := severityByType[t]; ok {
		return s
	}
	return SeverityLow
}

// baseScoreByType is the base risk contribution per event type.
var baseScoreByType = map[EventType]int{
	EventAuthSuccess:          0,
	EventAuthFailure:          10,
	EventRateLimitExceeded:    15,
	EventDataExport:           15,
	EventSuspiciousLogin:      20,
	EventPermissionViolation:  25,
	EventUnauthorizedAccess:   30,
	EventPrivilegeEscalation:  40,
	EventCrossTenantAccess:    50,
	EventSessionHijackAttempt: 50,
}

// alertThresholdByType is the rolling one-hour count above which a threshold
// alert is raised. Types absent from the table never alert on volume.
var alertThresholdByType = map[EventType]int{
	EventAuthFailure:          5,
	EventCrossTenantAccess:    1,
	EventSessionHijackAttempt: 1,
	EventPrivilegeEscalation:  3,
	EventSuspiciousLogin:      3,
	EventUnauthorizedAccess:   5,
	EventPermissionViolation:  10,
	EventRateLimitExceeded:    10,
}

// SecurityEvent is an append-only record. Once persisted it is never updated
// or deleted; the compliance trail depends on that.
type SecurityEvent struct {
	ID         string
	Type       EventType
	Severity   Severity
	UserID     string
	TenantID   string
	BusinessID string
	IP         string
	UserAgent  string
	Detail     map[string]any
	RiskScore  int
	RiskLevel  RiskLevel
	OccurredAt time.Time
}

// Incident is the side-channel record opened for critical threats. Distinct
// from the event log; it exists for human or automated follow-up.
type Incident struct {
	ID                 string
	EventID            string
	TenantID           string
	RiskScore          int
	Indicators         []string
	RecommendedActions []string
	Status             string
	OpenedAt           time.Time
}

// IncidentStatusOpen is the only status this core ever writes.
const IncidentStatusOpen = "open"

// ThresholdAlert records that one event type exceeded its rolling-window
// threshold.
type ThresholdAlert struct {
	ID        string
	Type      EventType
	TenantID  string
	Count     int
	Threshold int
	RaisedAt  time.Time
}

// ThreatAnalysis is the ephemeral output of scoring a single event. Only the
// score and level are copied onto the persisted event.
type ThreatAnalysis struct {
	Score              int
	Level              RiskLevel
	Indicators         []string
	RecommendedActions []string
	ShouldBlock        bool
}

// EventStore persists events, incidents and alerts.
type EventStore interface {
	AppendEvent(ctx context.Context, event *SecurityEvent) error
	OpenIncident(ctx context.Context, incident *Incident) error
	RaiseAlert(ctx context.Context, alert *ThresholdAlert) error
	// CountRecentByType returns the number of events of the given type for
	// the tenant since the cutoff.
	CountRecentByType(ctx context.Context, tenantID string, t EventType, since time.Time) (int, error)
}

// HistoryStore provides the recent-activity lookups the analyzer scores with.
// Lookups hit the persistent event log directly; there is no separate cache.
type HistoryStore interface {
	CountByIPAndType(ctx context.Context, ip string, t EventType, since time.Time) (int, error)
	CountDistinctTypesByIP(ctx context.Context, ip string, since time.Time) (int, error)
	CountByIP(ctx context.Context, ip string, since time.Time) (int, error)
	CountDistinctIPsByUser(ctx context.Context, userID string, since time.Time) (int, error)
	CountByUserAndTypes(ctx context.Context, userID string, types []EventType, since time.Time) (int, error)
	ListEventTimesByUser(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}
