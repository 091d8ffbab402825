package models

import (
	"fmt"
	"time"
)

// RecommendationType classifies the signal that produced a recommendation.
type RecommendationType string

// Recommendation types.
const (
	RecommendationRepeatPattern      RecommendationType = "repeat-pattern"
	RecommendationHighVolume         RecommendationType = "high-volume"
	RecommendationClosureAnalysis    RecommendationType = "closure-analysis"
	RecommendationWorkNotePattern    RecommendationType = "work-note-pattern"
	RecommendationGeneralImprovement RecommendationType = "general-improvement"
	RecommendationProcessImprovement RecommendationType = "process-improvement"
	RecommendationTrainingNeed       RecommendationType = "training-need"
	RecommendationTechnicalDebt      RecommendationType = "technical-debt"
)

// ParseRecommendationType validates a stored recommendation type.
func ParseRecommendationType(s string) (RecommendationType, error) {
	switch RecommendationType(s) {
	case RecommendationRepeatPattern, RecommendationHighVolume, RecommendationClosureAnalysis,
		RecommendationWorkNotePattern, RecommendationGeneralImprovement,
		RecommendationProcessImprovement, RecommendationTrainingNeed, RecommendationTechnicalDebt:
		return RecommendationType(s), nil
	default:
		return "", &UnknownEnumError{Kind: "recommendation type", Value: s}
	}
}

// Priority levels for recommendations. 1 is highest.
const (
	PriorityUrgent   = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
	PriorityDeferred = 5
)

// IncidentRecommendation is a generated improvement suggestion tied to
// zero or one application. It is created by the pattern analyzer and then
// mutated only through status transitions; once a human has acted on one it
// is never silently re-derived.
type IncidentRecommendation struct {
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ID              string               `json:"id"`
	Type            RecommendationType   `json:"type"`
	Status          RecommendationStatus `json:"status"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	RootSignal      string               `json:"root_signal"`
	RelatedCodes    []string             `json:"related_codes,omitempty"`
	RelatedTickets  []string             `json:"related_tickets,omitempty"`
	ApplicationID   *int64               `json:"application_id,omitempty"`
	Priority        int                  `json:"priority"`
	Confidence      int                  `json:"confidence"`
	IncidentCount   int                  `json:"incident_count"`
}

// SignalKey identifies the (application, type, root signal) tuple used to
// deduplicate recommendations across analysis runs.
func (r *IncidentRecommendation) SignalKey() string {
	appID := int64(0)
	if r.ApplicationID != nil {
		appID = *r.ApplicationID
	}
	return fmt.Sprintf("%d:%s:%s", appID, r.Type, r.RootSignal)
}

// Transition moves the recommendation to a new lifecycle state, enforcing
// the state machine.
func (r *IncidentRecommendation) Transition(target RecommendationStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(target) {
		return fmt.Errorf("recommendation %s: invalid transition %s -> %s", r.ID, r.Status, target)
	}
	r.Status = target
	r.UpdatedAt = now
	return nil
}
