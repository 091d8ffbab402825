package models

import "time"

// Incident is a normalized ticket record from the incident system. Parsing
// the source export is an ingestion concern; the engine only sees rows that
// already passed row-level validation.
type Incident struct {
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	TicketNumber      string     `json:"ticket_number"`
	ShortDescription  string     `json:"short_description,omitempty"`
	ConfigurationItem string     `json:"configuration_item"`
	CloseCode         string     `json:"close_code,omitempty"`
	AssignmentGroup   string     `json:"assignment_group,omitempty"`
	ID                int64      `json:"id"`
}

// ClosedWithin reports whether the incident closed inside the window ending
// at asOf. Open incidents are not counted.
func (i *Incident) ClosedWithin(window time.Duration, asOf time.Time) bool {
	if i.ClosedAt == nil {
		return false
	}
	return i.ClosedAt.After(asOf.Add(-window)) && !i.ClosedAt.After(asOf)
}

// LinkedIncident is an incident plus the outcome of resolving its
// configuration item against the application portfolio.
type LinkedIncident struct {
	LinkedAt        time.Time  `json:"linked_at,omitzero"`
	Status          LinkStatus `json:"status"`
	ApplicationName string     `json:"application_name,omitempty"`
	StatusNotes     string     `json:"status_notes,omitempty"`
	ApplicationID   *int64     `json:"application_id,omitempty"`
	Incident        Incident   `json:"incident"`
}

// ManuallyLinked reports whether an operator pinned the link. Manual links
// are sticky: automatic re-link passes must leave them untouched.
func (l *LinkedIncident) ManuallyLinked() bool {
	return l.Status == LinkStatusManuallyLinked
}
