package models

import (
	"fmt"
	"strings"
	"time"
)

// DepartedUserAlert flags an identity string on a role assignment that no
// longer resolves against the directory. One alert exists per distinct
// (unmatched value, application, role) tuple; re-detection refreshes rather
// than duplicates.
type DepartedUserAlert struct {
	DetectedAt       time.Time   `json:"detected_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
	ID               string      `json:"id"`
	UnmatchedValue   string      `json:"unmatched_value"`
	RoleType         string      `json:"role_type"`
	Status           AlertStatus `json:"status"`
	ResolvedBy       string      `json:"resolved_by,omitempty"`
	ReplacementValue string      `json:"replacement_value,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	ApplicationID    int64       `json:"application_id"`
}

// Key returns the dedup key for the alert tuple. The unmatched value is
// case-folded so re-detections with different casing collapse together.
func (a *DepartedUserAlert) Key() string {
	return AlertKey(a.UnmatchedValue, a.ApplicationID, a.RoleType)
}

// AlertKey builds the dedup key for an (unmatched value, application, role)
// tuple.
func AlertKey(value string, applicationID int64, roleType string) string {
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(value)), applicationID, roleType)
}

// Acknowledge marks the alert as seen by an operator.
func (a *DepartedUserAlert) Acknowledge(now time.Time) error {
	if !a.Status.CanTransitionTo(AlertAcknowledged) {
		return fmt.Errorf("alert %s: invalid transition %s -> %s", a.ID, a.Status, AlertAcknowledged)
	}
	a.Status = AlertAcknowledged
	a.UpdatedAt = now
	return nil
}

// Resolve closes the alert. The resolver identity is required; the
// replacement identity and notes are optional.
func (a *DepartedUserAlert) Resolve(resolvedBy, replacement, notes string, now time.Time) error {
	if resolvedBy == "" {
		return fmt.Errorf("alert %s: resolver identity is required", a.ID)
	}
	if !a.Status.CanTransitionTo(AlertResolved) {
		return fmt.Errorf("alert %s: invalid transition %s -> %s", a.ID, a.Status, AlertResolved)
	}
	a.Status = AlertResolved
	a.ResolvedBy = resolvedBy
	a.ReplacementValue = replacement
	a.Notes = notes
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

// MarkFalsePositive closes the alert as a false positive.
func (a *DepartedUserAlert) MarkFalsePositive(resolvedBy, notes string, now time.Time) error {
	if resolvedBy == "" {
		return fmt.Errorf("alert %s: resolver identity is required", a.ID)
	}
	if !a.Status.CanTransitionTo(AlertFalsePositive) {
		return fmt.Errorf("alert %s: invalid transition %s -> %s", a.ID, a.Status, AlertFalsePositive)
	}
	a.Status = AlertFalsePositive
	a.ResolvedBy = resolvedBy
	a.Notes = notes
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}
