package models

import "fmt"

// UnknownEnumError reports a stored enumeration value that no longer parses.
// These fail loudly rather than defaulting so data corruption is visible.
type UnknownEnumError struct {
	Kind  string
	Value string
}

func (e *UnknownEnumError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Value)
}

// LinkStatus classifies whether an incident's configuration-item reference
// resolved to a known application.
type LinkStatus string

// Link status values.
const (
	LinkStatusUnknown          LinkStatus = "unknown"
	LinkStatusMissingReference LinkStatus = "missing-reference"
	LinkStatusNoMatch          LinkStatus = "no-match"
	LinkStatusLinked           LinkStatus = "linked"
	LinkStatusManuallyLinked   LinkStatus = "manually-linked"
)

// ParseLinkStatus validates a stored link status.
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch LinkStatus(s) {
	case LinkStatusUnknown, LinkStatusMissingReference, LinkStatusNoMatch,
		LinkStatusLinked, LinkStatusManuallyLinked:
		return LinkStatus(s), nil
	default:
		return "", &UnknownEnumError{Kind: "link status", Value: s}
	}
}

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

// Recommendation lifecycle values.
const (
	RecommendationActive     RecommendationStatus = "active"
	RecommendationInProgress RecommendationStatus = "in-progress"
	RecommendationResolved   RecommendationStatus = "resolved"
	RecommendationDismissed  RecommendationStatus = "dismissed"
	RecommendationExpired    RecommendationStatus = "expired"
)

// ParseRecommendationStatus validates a stored recommendation status.
func ParseRecommendationStatus(s string) (RecommendationStatus, error) {
	switch RecommendationStatus(s) {
	case RecommendationActive, RecommendationInProgress, RecommendationResolved,
		RecommendationDismissed, RecommendationExpired:
		return RecommendationStatus(s), nil
	default:
		return "", &UnknownEnumError{Kind: "recommendation status", Value: s}
	}
}

// CanTransitionTo reports whether the recommendation lifecycle permits
// moving to the target state. Active -> InProgress -> Resolved|Dismissed;
// Active -> Expired happens when supporting incidents age out.
func (s RecommendationStatus) CanTransitionTo(target RecommendationStatus) bool {
	switch s {
	case RecommendationActive:
		return target == RecommendationInProgress || target == RecommendationResolved ||
			target == RecommendationDismissed || target == RecommendationExpired
	case RecommendationInProgress:
		return target == RecommendationResolved || target == RecommendationDismissed
	default:
		return false
	}
}

// Open reports whether the recommendation still requires action.
func (s RecommendationStatus) Open() bool {
	return s == RecommendationActive || s == RecommendationInProgress
}

// AlertStatus is the lifecycle state of a departed-user alert.
type AlertStatus string

// Alert lifecycle values.
const (
	AlertOpen          AlertStatus = "open"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false-positive"
)

// ParseAlertStatus validates a stored alert status.
func ParseAlertStatus(s string) (AlertStatus, error) {
	switch AlertStatus(s) {
	case AlertOpen, AlertAcknowledged, AlertResolved, AlertFalsePositive:
		return AlertStatus(s), nil
	default:
		return "", &UnknownEnumError{Kind: "alert status", Value: s}
	}
}

// CanTransitionTo reports whether the alert lifecycle permits moving to the
// target state. Open -> Acknowledged -> Resolved|FalsePositive.
func (s AlertStatus) CanTransitionTo(target AlertStatus) bool {
	switch s {
	case AlertOpen:
		return target == AlertAcknowledged || target == AlertResolved || target == AlertFalsePositive
	case AlertAcknowledged:
		return target == AlertResolved || target == AlertFalsePositive
	default:
		return false
	}
}

// ImportJobStatus is the state of an in-flight import job.
type ImportJobStatus string

// Import job status values.
const (
	ImportJobRunning   ImportJobStatus = "running"
	ImportJobCompleted ImportJobStatus = "completed"
	ImportJobFailed    ImportJobStatus = "failed"
)

// ParseImportJobStatus validates a stored import job status.
func ParseImportJobStatus(s string) (ImportJobStatus, error) {
	switch ImportJobStatus(s) {
	case ImportJobRunning, ImportJobCompleted, ImportJobFailed:
		return ImportJobStatus(s), nil
	default:
		return "", &UnknownEnumError{Kind: "import job status", Value: s}
	}
}
