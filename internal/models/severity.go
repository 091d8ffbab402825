package models

import "fmt"

// Severity levels as constants for type safety and consistency.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// ValidSeverities returns all valid severity levels for validation.
func ValidSeverities() []string {
	return []string{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
	}
}

// ParseSeverity validates a stored severity value. Unknown values are an
// error so corrupt rows surface instead of being silently bucketed.
func ParseSeverity(severity string) (string, error) {
	switch severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return severity, nil
	default:
		return "", fmt.Errorf("unknown severity %q", severity)
	}
}
