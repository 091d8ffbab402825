package models

import "time"

// Health categories derived from the final score.
type HealthCategory string

// Health category values.
const (
	HealthHealthy        HealthCategory = "healthy"
	HealthNeedsAttention HealthCategory = "needs-attention"
	HealthAtRisk         HealthCategory = "at-risk"
	HealthCritical       HealthCategory = "critical"
)

// CategoryForScore maps a final score to its health category.
func CategoryForScore(score int) HealthCategory {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 60:
		return HealthNeedsAttention
	case score >= 40:
		return HealthAtRisk
	default:
		return HealthCritical
	}
}

// Per-tier security penalty caps. Each tier is capped independently before
// summation so a flood of low findings cannot drown out a critical one.
const (
	criticalPenaltyPerFinding = 15
	criticalPenaltyCap        = 60
	highPenaltyPerFinding     = 8
	highPenaltyCap            = 40
	mediumPenaltyPerFinding   = 2
	mediumPenaltyCap          = 20
	lowPenaltyCap             = 10
)

// SecurityScoreDetails breaks the security penalty down by severity tier.
type SecurityScoreDetails struct {
	Counts          SeverityCounts `json:"counts"`
	CriticalPenalty int            `json:"critical_penalty"`
	HighPenalty     int            `json:"high_penalty"`
	MediumPenalty   int            `json:"medium_penalty"`
	LowPenalty      int            `json:"low_penalty"`
}

// NewSecurityScoreDetails derives the capped per-tier penalties from
// severity counts.
func NewSecurityScoreDetails(counts SeverityCounts) SecurityScoreDetails {
	return SecurityScoreDetails{
		Counts:          counts,
		CriticalPenalty: capped(counts.Critical*criticalPenaltyPerFinding, criticalPenaltyCap),
		HighPenalty:     capped(counts.High*highPenaltyPerFinding, highPenaltyCap),
		MediumPenalty:   capped(counts.Medium*mediumPenaltyPerFinding, mediumPenaltyCap),
		LowPenalty:      capped(counts.Low/2, lowPenaltyCap),
	}
}

// Penalty returns the total security penalty.
func (d SecurityScoreDetails) Penalty() int {
	return d.CriticalPenalty + d.HighPenalty + d.MediumPenalty + d.LowPenalty
}

// Incident penalty caps.
const (
	recentIncidentPenaltyEach = 2
	recentIncidentPenaltyCap  = 20
	repeatPatternPenaltyEach  = 3
	repeatPatternPenaltyCap   = 15
)

// IncidentScoreDetails summarizes incident analysis output for scoring.
type IncidentScoreDetails struct {
	CodeCounts      map[string]int `json:"code_counts,omitempty"`
	TotalIncidents  int            `json:"total_incidents"`
	RecentIncidents int            `json:"recent_incidents"`
	RepeatPatterns  int            `json:"repeat_patterns"`
}

// Penalty returns the capped incident penalty.
func (d IncidentScoreDetails) Penalty() int {
	return capped(d.RecentIncidents*recentIncidentPenaltyEach, recentIncidentPenaltyCap) +
		capped(d.RepeatPatterns*repeatPatternPenaltyEach, repeatPatternPenaltyCap)
}

// HealthScoreBreakdown is the itemized result of a health scoring run. It is
// immutable once computed: callers recompute on demand rather than mutating
// in place, so every number in the breakdown stays auditable.
type HealthScoreBreakdown struct {
	ComputedAt              time.Time            `json:"computed_at"`
	Category                HealthCategory       `json:"category"`
	Security                SecurityScoreDetails `json:"security"`
	Incidents               IncidentScoreDetails `json:"incidents"`
	BaseScore               int                  `json:"base_score"`
	SecurityPenalty         int                  `json:"security_penalty"`
	IncidentPenalty         int                  `json:"incident_penalty"`
	UsageAdjustment         int                  `json:"usage_adjustment"`
	MaintenanceAdjustment   int                  `json:"maintenance_adjustment"`
	DocumentationAdjustment int                  `json:"documentation_adjustment"`
	OverdueTaskPenalty      int                  `json:"overdue_task_penalty"`
	DataConflictPenalty     int                  `json:"data_conflict_penalty"`
	FinalScore              int                  `json:"final_score"`
	ApplicationID           int64                `json:"application_id"`
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
