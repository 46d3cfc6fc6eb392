package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voxdesk.io/internal/security"
)

var (
	_ security.EventStore   = (*Store)(nil)
	_ security.HistoryStore = (*Store)(nil)
)

// AppendEvent writes one immutable event row. There is no update or delete
// path for security_events anywhere in this codebase.
func (s *Store) AppendEvent(ctx context.Context, event *security.SecurityEvent) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	detailJSON := []byte("{}")
	if len(event.Detail) > 0 {
		data, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detailJSON = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into security_events (id, event_type, severity, user_id, tenant_id, business_id, ip, user_agent, detail, risk_score, risk_level, occurred_at)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), nullif($6, ''), $7, $8, $9, $10, $11, $12)
	`, event.ID, string(event.Type), string(event.Severity), event.UserID, event.TenantID,
		event.BusinessID, event.IP, event.UserAgent, detailJSON, event.RiskScore,
		string(event.RiskLevel), event.OccurredAt)
	return err
}

// OpenIncident writes the critical-threat follow-up record.
func (s *Store) OpenIncident(ctx context.Context, incident *security.Incident) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	indicators, err := json.Marshal(incident.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	actions, err := json.Marshal(incident.RecommendedActions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into security_incidents (id, event_id, tenant_id, risk_score, indicators, recommended_actions, status, opened_at)
		values ($1, $2, nullif($3, ''), $4, $5, $6, $7, $8)
	`, incident.ID, incident.EventID, incident.TenantID, incident.RiskScore,
		indicators, actions, incident.Status, incident.OpenedAt)
	return err
}

// RaiseAlert writes a threshold alert row.
func (s *Store) RaiseAlert(ctx context.Context, alert *security.ThresholdAlert) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into security_alerts (id, event_type, tenant_id, event_count, threshold, raised_at)
		values ($1, $2, nullif($3, ''), $4, $5, $6)
	`, alert.ID, string(alert.Type), alert.TenantID, alert.Count, alert.Threshold, alert.RaisedAt)
	return err
}

// CountRecentByType counts events of one type for the tenant since the cutoff.
func (s *Store) CountRecentByType(ctx context.Context, tenantID string, t security.EventType, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from security_events
		where event_type = $1 and tenant_id is not distinct from nullif($2, '') and occurred_at >= $3
	`, string(t), tenantID, since).Scan(&count)
	return count, err
}

// --- analyzer history lookups ---

func (s *Store) CountByIPAndType(ctx context.Context, ip string, t security.EventType, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from security_events
		where ip = $1 and event_type = $2 and occurred_at >= $3
	`, ip, string(t), since).Scan(&count)
	return count, err
}

func (s *Store) CountDistinctTypesByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(distinct event_type) from security_events
		where ip = $1 and occurred_at >= $2
	`, ip, since).Scan(&count)
	return count, err
}

func (s *Store) CountByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from security_events
		where ip = $1 and occurred_at >= $2
	`, ip, since).Scan(&count)
	return count, err
}

func (s *Store) CountDistinctIPsByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(distinct ip) from security_events
		where user_id = $1 and occurred_at >= $2
	`, userID, since).Scan(&count)
	return count, err
}

func (s *Store) CountByUserAndTypes(ctx context.Context, userID string, types []security.EventType, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	typesJSON, err := json.Marshal(names)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx, `
		select count(*) from security_events
		where user_id = $1 and occurred_at >= $2
		  and event_type in (select jsonb_array_elements_text($3::jsonb))
	`, userID, since, typesJSON).Scan(&count)
	return count, err
}

func (s *Store) ListEventTimesByUser(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select occurred_at from security_events
		where user_id = $1 and occurred_at >= $2
		order by occurred_at
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return times, nil
}
