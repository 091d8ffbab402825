package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// CreateIncident inserts a raw incident with its initial link state.
func (db *DB) CreateIncident(ctx context.Context, linked *models.LinkedIncident) (int64, error) {
	query := `
		INSERT INTO incidents (ticket_number, short_description, configuration_item, close_code,
			assignment_group, opened_at, closed_at, link_status, application_id, status_notes, linked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inc := &linked.Incident
	result, err := db.ExecContext(ctx, query,
		inc.TicketNumber,
		inc.ShortDescription,
		inc.ConfigurationItem,
		inc.CloseCode,
		inc.AssignmentGroup,
		inc.OpenedAt,
		inc.ClosedAt,
		string(linked.Status),
		nullInt64(linked.ApplicationID),
		linked.StatusNotes,
		nullTime(linked.LinkedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting incident: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// UpdateIncidentLink rewrites the link outcome for an incident.
func (db *DB) UpdateIncidentLink(ctx context.Context, incidentID int64, linked *models.LinkedIncident) error {
	query := `
		UPDATE incidents
		SET link_status = ?, application_id = ?, status_notes = ?, linked_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		string(linked.Status),
		nullInt64(linked.ApplicationID),
		linked.StatusNotes,
		nullTime(linked.LinkedAt),
		incidentID,
	)
	if err != nil {
		return fmt.Errorf("updating incident link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("incident %d: %w", incidentID, ErrNotFound)
	}

	return nil
}

// GetIncidentByTicket retrieves an incident by its ticket number.
func (db *DB) GetIncidentByTicket(ctx context.Context, ticketNumber string) (*models.LinkedIncident, error) {
	query := incidentSelect + ` WHERE ticket_number = ?`
	return db.scanLinkedIncident(db.QueryRowContext(ctx, query, ticketNumber))
}

// ListIncidentsByApplication returns all incidents linked to an application.
func (db *DB) ListIncidentsByApplication(ctx context.Context, applicationID int64) ([]models.LinkedIncident, error) {
	query := incidentSelect + ` WHERE application_id = ? ORDER BY opened_at`
	return db.listIncidents(ctx, query, applicationID)
}

// ListIncidentsByLinkStatus returns incidents in a given link state.
func (db *DB) ListIncidentsByLinkStatus(ctx context.Context, status models.LinkStatus) ([]models.LinkedIncident, error) {
	query := incidentSelect + ` WHERE link_status = ? ORDER BY opened_at`
	return db.listIncidents(ctx, query, string(status))
}

// ListIncidents returns every incident, ordered by open time.
func (db *DB) ListIncidents(ctx context.Context) ([]models.LinkedIncident, error) {
	query := incidentSelect + ` ORDER BY opened_at`
	return db.listIncidents(ctx, query)
}

const incidentSelect = `
	SELECT id, ticket_number, short_description, configuration_item, close_code,
	       assignment_group, opened_at, closed_at, link_status, application_id,
	       status_notes, linked_at
	FROM incidents`

func (db *DB) listIncidents(ctx context.Context, query string, args ...any) ([]models.LinkedIncident, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incidents []models.LinkedIncident
	for rows.Next() {
		linked, err := db.scanLinkedIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, *linked)
	}

	return incidents, rows.Err()
}

func (db *DB) scanLinkedIncident(row rowScanner) (*models.LinkedIncident, error) {
	linked := &models.LinkedIncident{}
	inc := &linked.Incident

	var closedAt, linkedAt sql.NullTime
	var appID sql.NullInt64
	var status string

	err := row.Scan(
		&inc.ID,
		&inc.TicketNumber,
		&inc.ShortDescription,
		&inc.ConfigurationItem,
		&inc.CloseCode,
		&inc.AssignmentGroup,
		&inc.OpenedAt,
		&closedAt,
		&status,
		&appID,
		&linked.StatusNotes,
		&linkedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning incident: %w", err)
	}

	linked.Status, err = models.ParseLinkStatus(status)
	if err != nil {
		return nil, fmt.Errorf("incident %d: %w", inc.ID, err)
	}

	if closedAt.Valid {
		inc.ClosedAt = &closedAt.Time
	}
	if appID.Valid {
		linked.ApplicationID = &appID.Int64
	}
	if linkedAt.Valid {
		linked.LinkedAt = linkedAt.Time
	}

	return linked, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullTimePtr converts an optional time for storage.
func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
