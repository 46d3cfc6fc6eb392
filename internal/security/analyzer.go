package security

import (
	"context"
	"fmt"
	"time"
)

const (
	ipLookback        = time.Hour
	burstLookback     = 5 * time.Minute
	userLookback      = 24 * time.Hour
	offHoursStart     = 22 // events at or after this local hour count as off-hours
	offHoursEnd       = 6  // events before this local hour count as off-hours
	nightWindowStart  = 23
	nightWindowEnd    = 5
	maxRiskScore      = 100
	criticalThreshold = 80
	highThreshold     = 60
	mediumThreshold   = 30
)

// Analyzer scores a single event against recent activity by IP and by user.
// It holds no state of its own beyond the history store it reads from.
type Analyzer struct {
	history HistoryStore
	now     func() time.Time
}

// NewAnalyzer builds an analyzer over the given history store.
func NewAnalyzer(history HistoryStore) *Analyzer {
	return &Analyzer{history: history, now: time.Now}
}

// Analyze computes the risk score, level, indicators and recommended actions
// for the event. History lookup failures contribute nothing to the score; the
// base score and time heuristics still apply.
func (a *Analyzer) Analyze(ctx context.Context, event *SecurityEvent) ThreatAnalysis {
	score := baseScoreByType[event.Type]
	var indicators []string

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = a.now().UTC()
	}

	if event.IP != "" && event.IP != "unknown" {
		ipScore, ipIndicators := a.scoreIPHistory(ctx, event.IP, occurred)
		score += ipScore
		indicators = append(indicators, ipIndicators...)
	}
	if event.UserID != "" {
		userScore, userIndicators := a.scoreUserHistory(ctx, event.UserID, occurred)
		score += userScore
		indicators = append(indicators, userIndicators...)
	}

	switch occurred.Weekday() {
	case time.Saturday, time.Sunday:
		score += 5
		indicators = append(indicators, "event occurred on a weekend")
	}
	if hour := occurred.Hour(); hour >= nightWindowStart || hour < nightWindowEnd {
		score += 10
		indicators = append(indicators, "event occurred during night hours")
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	if score < 0 {
		score = 0
	}

	level, shouldBlock := classify(score)
	return ThreatAnalysis{
		Score:              score,
		Level:              level,
		Indicators:         indicators,
		RecommendedActions: actionsFor(level),
		ShouldBlock:        shouldBlock,
	}
}

func (a *Analyzer) scoreIPHistory(ctx context.Context, ip string, at time.Time) (int, []string) {
	var (
		score      int
		indicators []string
	)

	failures, err := a.history.CountByIPAndType(ctx, ip, EventAuthFailure, at.Add(-ipLookback))
	if err == nil {
		switch {
		case failures >= 10:
			score += 30
			indicators = append(indicators, fmt.Sprintf("%d failed authentication attempts from IP %s in the last hour", failures, ip))
		case failures >= 5:
			score += 15
			indicators = append(indicators, fmt.Sprintf("%d failed authentication attempts from IP %s in the last hour", failures, ip))
		}
	}

	distinctTypes, err := a.history.CountDistinctTypesByIP(ctx, ip, at.Add(-ipLookback))
	if err == nil && distinctTypes >= 5 {
		score += 20
		indicators = append(indicators, fmt.Sprintf("diverse activity: %d distinct event types from IP %s", distinctTypes, ip))
	}

	burst, err := a.history.CountByIP(ctx, ip, at.Add(-burstLookback))
	if err == nil && burst >= 20 {
		score += 25
		indicators = append(indicators, fmt.Sprintf("automation signal: %d events from IP %s in 5 minutes", burst, ip))
	}

	return score, indicators
}

func (a *Analyzer) scoreUserHistory(ctx context.Context, userID string, at time.Time) (int, []string) {
	var (
		score      int
		indicators []string
	)
	since := at.Add(-userLookback)

	ipCount, err := a.history.CountDistinctIPsByUser(ctx, userID, since)
	if err == nil && ipCount >= 5 {
		score += 25
		indicators = append(indicators, fmt.Sprintf("user seen from %d distinct IPs in 24 hours", ipCount))
	}

	escalations, err := a.history.CountByUserAndTypes(ctx, userID, []EventType{EventPrivilegeEscalation, EventUnauthorizedAccess}, since)
	if err == nil && escalations >= 3 {
		score += 30
		indicators = append(indicators, fmt.Sprintf("%d privilege escalation or unauthorized access events for user in 24 hours", escalations))
	}

	times, err := a.history.ListEventTimesByUser(ctx, userID, since)
	if err == nil {
		offHours := 0
		for _, t := range times {
			if hour := t.Hour(); hour >= offHoursStart || hour < offHoursEnd {
				offHours++
			}
		}
		if offHours >= 10 {
			score += 15
			indicators = append(indicators, fmt.Sprintf("%d events outside business hours for user in 24 hours", offHours))
		}
	}

	return score, indicators
}

func classify(score int) (RiskLevel, bool) {
	switch {
	case score >= criticalThreshold:
		return RiskCritical, true
	case score >= highThreshold:
		return RiskHigh, false
	case score >= mediumThreshold:
		return RiskMedium, false
	default:
		return RiskLow, false
	}
}

func actionsFor(level RiskLevel) []string {
	switch level {
	case RiskCritical:
		return []string{"block account", "invalidate all sessions", "alert security team"}
	case RiskHigh:
		return []string{"require additional authentication", "restrict access", "alert security team"}
	case RiskMedium:
		return []string{"increase monitoring"}
	default:
		return []string{"standard monitoring"}
	}
}
