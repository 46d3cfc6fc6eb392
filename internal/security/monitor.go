package security

import (
	"context"
	"time"

	"voxdesk.io/internal/ids"
	"voxdesk.io/internal/obs"
)

// Monitor is the append-only security event log with synchronous risk scoring.
// It is constructed once at the composition root and injected wherever events
// are raised; there is no package-level instance.
//
// Logging is best-effort by contract: no failure inside LogEvent may surface
// to the caller or interrupt the originating request. The authorization
// decision itself is the fail-closed half of that asymmetry.
type Monitor struct {
	store    EventStore
	analyzer *Analyzer
	now      func() time.Time
}

// NewMonitor builds a monitor over the given store and analyzer.
func NewMonitor(store EventStore, analyzer *Analyzer) *Monitor {
	return &Monitor{store: store, analyzer: analyzer, now: time.Now}
}

// LogEvent scores and persists the event, opens an incident for blocking
// threats, and raises a threshold alert when the rolling one-hour count for
// the event type exceeds its static limit.
func (m *Monitor) LogEvent(ctx context.Context, event *SecurityEvent) {
	if m == nil || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityFor(event.Type)
	}

	analysis := m.analyzer.Analyze(ctx, event)
	event.RiskScore = analysis.Score
	event.RiskLevel = analysis.Level

	if err := m.store.AppendEvent(ctx, event); err != nil {
		obs.LogError("security_event_persist_failed", map[string]any{
			"event_type": string(event.Type),
			"error":      err.Error(),
		})
	}
	obs.SecurityEventLogged(string(event.Type), string(event.Severity), analysis.Score)

	if analysis.ShouldBlock {
		m.openIncident(ctx, event, analysis)
	}
	m.checkThreshold(ctx, event)

	if event.Severity == SeverityHigh || event.Severity == SeverityCritical ||
		analysis.Level == RiskHigh || analysis.Level == RiskCritical {
		obs.LogAlert("security_alert", map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"severity":   string(event.Severity),
			"risk_score": analysis.Score,
			"risk_level": string(analysis.Level),
			"indicators": analysis.Indicators,
			"ip":         event.IP,
			"user_id":    event.UserID,
			"tenant_id":  event.TenantID,
		})
	}
}

// openIncident writes the critical-threat side channel. Never silently
// dropped: a persistence failure is logged with full detail.
func (m *Monitor) openIncident(ctx context.Context, event *SecurityEvent, analysis ThreatAnalysis) {
	incident := &Incident{
		ID:                 ids.New(),
		EventID:            event.ID,
		TenantID:           event.TenantID,
		RiskScore:          analysis.Score,
		Indicators:         analysis.Indicators,
		RecommendedActions: analysis.RecommendedActions,
		Status:             IncidentStatusOpen,
		OpenedAt:           m.now().UTC(),
	}
	if err := m.store.OpenIncident(ctx, incident); err != nil {
		obs.LogError("security_incident_persist_failed", map[string]any{
			"event_id":   event.ID,
			"risk_score": analysis.Score,
			"error":      err.Error(),
		})
	}
}

func (m *Monitor) checkThreshold(ctx context.Context, event *SecurityEvent) {
	threshold, ok := alertThresholdByType[event.Type]
	if !ok {
		return
	}
	since := m.now().UTC().Add(-time.Hour)
	count, err := m.store.CountRecentByType(ctx, event.TenantID, event.Type, since)
	if err != nil {
		obs.LogError("security_threshold_check_failed", map[string]any{
			"event_type": string(event.Type),
			"error":      err.Error(),
		})
		return
	}
	if count < threshold {
		return
	}
	alert := &ThresholdAlert{
		ID:        ids.New(),
		Type:      event.Type,
		TenantID:  event.TenantID,
		Count:     count,
		Threshold: threshold,
		RaisedAt:  m.now().UTC(),
	}
	if err := m.store.RaiseAlert(ctx, alert); err != nil {
		obs.LogError("security_alert_persist_failed", map[string]any{
			"event_type": string(event.Type),
			"count":      count,
			"error":      err.Error(),
		})
	}
}
