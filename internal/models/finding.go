// Package models contains domain entities for the portfolio health engine.
package models

import "time"

// SecurityFinding is a normalized security scan result attributed to an
// application. Ingestion and scanner mechanics live in an external
// collaborator; by the time a finding reaches the engine it is already
// normalized to the severity tiers in severity.go.
type SecurityFinding struct {
	DiscoveredAt  time.Time `json:"discovered_at"`
	Severity      string    `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Resource      string    `json:"resource,omitempty"`
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
}

// SeverityCounts tallies findings by severity tier.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// CountBySeverity aggregates findings into per-tier counts. Findings with
// an unrecognized severity are ignored here; validation happens at the
// storage boundary.
func CountBySeverity(findings []SecurityFinding) SeverityCounts {
	var counts SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			counts.Critical++
		case SeverityHigh:
			counts.High++
		case SeverityMedium:
			counts.Medium++
		case SeverityLow:
			counts.Low++
		}
	}
	return counts
}
