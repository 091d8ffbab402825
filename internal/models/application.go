package models

import "time"

// Usage levels for a tracked application.
const (
	UsageNone     = "none"
	UsageVeryLow  = "very-low"
	UsageLow      = "low"
	UsageModerate = "moderate"
	UsageHigh     = "high"
)

// ParseUsageLevel validates a stored usage level.
func ParseUsageLevel(level string) (string, error) {
	switch level {
	case UsageNone, UsageVeryLow, UsageLow, UsageModerate, UsageHigh:
		return level, nil
	default:
		return "", &UnknownEnumError{Kind: "usage level", Value: level}
	}
}

// Role types for application role assignments.
const (
	RoleOwner         = "owner"
	RoleTechnicalLead = "technical-lead"
	RoleSupportGroup  = "support-group"
	RoleBusinessOwner = "business-owner"
)

// Application is a tracked portfolio application.
type Application struct {
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	LastRepositoryActivity time.Time `json:"last_repository_activity,omitzero"`
	Name                   string    `json:"name"`
	Description            string    `json:"description,omitempty"`
	RepositoryURL          string    `json:"repository_url,omitempty"`
	UsageLevel             string    `json:"usage_level"`
	TechnologyStack        []string  `json:"technology_stack,omitempty"`
	DocumentationPercent   int       `json:"documentation_percent"`
	DataConflictCount      int       `json:"data_conflict_count"`
	ID                     int64     `json:"id"`
}

// RoleAssignment ties a free-text identity string to a role on an
// application. The identity is whatever the source system recorded; it is
// resolved against the directory by the departed-user detector.
type RoleAssignment struct {
	CreatedAt     time.Time `json:"created_at"`
	RoleType      string    `json:"role_type"`
	AssigneeValue string    `json:"assignee_value"`
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
}

// Task is a tracked work item against an application.
type Task struct {
	DueAt         time.Time  `json:"due_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Title         string     `json:"title"`
	ID            int64      `json:"id"`
	ApplicationID int64      `json:"application_id"`
}

// Overdue reports whether the task is overdue as of the given time. The
// as-of time is explicit so scoring runs are reproducible.
func (t *Task) Overdue(asOf time.Time) bool {
	return t.CompletedAt == nil && !t.DueAt.IsZero() && t.DueAt.Before(asOf)
}

// CountOverdue counts tasks overdue as of the given time.
func CountOverdue(tasks []Task, asOf time.Time) int {
	count := 0
	for i := range tasks {
		if tasks[i].Overdue(asOf) {
			count++
		}
	}
	return count
}
