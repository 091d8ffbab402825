// Package health computes the per-application health score. Scoring is a
// pure derivation from explicit inputs and an explicit as-of time, so the
// same portfolio state always produces the same breakdown.
package health

import (
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// ScoreInputs carries everything one scoring run needs. Signals that were
// never collected stay at their zero values and contribute nothing: an
// application with no usage data is not punished for the gap.
type ScoreInputs struct {
	AsOf                   time.Time
	LastRepositoryActivity time.Time // zero means activity is untracked
	UsageLevel             string    // empty means usage is untracked
	Incidents              models.IncidentScoreDetails
	SecurityCounts         models.SeverityCounts
	DocumentationPercent   *int // nil means documentation is untracked
	OverdueTasks           int
	DataConflicts          int
	ApplicationID          int64
}

const baseScore = 100

// Usage adjustments. Heavily used applications earn a small bonus; unused
// ones are flagged down as likely decommission candidates.
var usageAdjustments = map[string]int{
	models.UsageNone:     -10,
	models.UsageVeryLow:  -5,
	models.UsageLow:      -2,
	models.UsageModerate: 2,
	models.UsageHigh:     5,
}

// Operational penalty caps.
const (
	overdueTaskPenaltyEach  = 3
	overdueTaskPenaltyCap   = 15
	dataConflictPenaltyEach = 2
	dataConflictPenaltyCap  = 10
)

// Score derives the full health breakdown for one application.
func Score(in ScoreInputs) *models.HealthScoreBreakdown {
	security := models.NewSecurityScoreDetails(in.SecurityCounts)

	breakdown := &models.HealthScoreBreakdown{
		ApplicationID:           in.ApplicationID,
		ComputedAt:              in.AsOf,
		BaseScore:               baseScore,
		Security:                security,
		Incidents:               in.Incidents,
		SecurityPenalty:         security.Penalty(),
		IncidentPenalty:         in.Incidents.Penalty(),
		UsageAdjustment:         usageAdjustments[in.UsageLevel],
		MaintenanceAdjustment:   maintenanceAdjustment(in.LastRepositoryActivity, in.AsOf),
		DocumentationAdjustment: documentationAdjustment(in.DocumentationPercent),
		OverdueTaskPenalty:      capped(in.OverdueTasks*overdueTaskPenaltyEach, overdueTaskPenaltyCap),
		DataConflictPenalty:     capped(in.DataConflicts*dataConflictPenaltyEach, dataConflictPenaltyCap),
	}

	score := breakdown.BaseScore -
		breakdown.SecurityPenalty -
		breakdown.IncidentPenalty +
		breakdown.UsageAdjustment +
		breakdown.MaintenanceAdjustment +
		breakdown.DocumentationAdjustment -
		breakdown.OverdueTaskPenalty -
		breakdown.DataConflictPenalty

	breakdown.FinalScore = clamp(score)
	breakdown.Category = models.CategoryForScore(breakdown.FinalScore)

	return breakdown
}

// maintenanceAdjustment rewards recent repository activity and penalizes
// abandonment. Untracked activity is neutral.
func maintenanceAdjustment(lastActivity, asOf time.Time) int {
	if lastActivity.IsZero() {
		return 0
	}

	age := asOf.Sub(lastActivity)
	switch {
	case age < 30*24*time.Hour:
		return 5
	case age < 90*24*time.Hour:
		return 2
	case age < 180*24*time.Hour:
		return 0
	case age < 365*24*time.Hour:
		return -5
	default:
		return -10
	}
}

func documentationAdjustment(percent *int) int {
	if percent == nil {
		return 0
	}

	switch {
	case *percent >= 90:
		return 5
	case *percent >= 70:
		return 3
	case *percent >= 40:
		return 0
	case *percent >= 20:
		return -3
	default:
		return -5
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
