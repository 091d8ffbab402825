package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// CreateAlert inserts a departed-user alert.
func (db *DB) CreateAlert(ctx context.Context, alert *models.DepartedUserAlert) error {
	query := `
		INSERT INTO departed_user_alerts (id, unmatched_value, application_id, role_type,
			status, resolved_by, replacement_value, notes, detected_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		alert.ID,
		alert.UnmatchedValue,
		alert.ApplicationID,
		alert.RoleType,
		string(alert.Status),
		alert.ResolvedBy,
		alert.ReplacementValue,
		alert.Notes,
		alert.DetectedAt,
		alert.UpdatedAt,
		nullTimePtr(alert.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}

	return nil
}

// UpdateAlert rewrites an alert's lifecycle fields after a transition.
func (db *DB) UpdateAlert(ctx context.Context, alert *models.DepartedUserAlert) error {
	query := `
		UPDATE departed_user_alerts
		SET status = ?, resolved_by = ?, replacement_value = ?, notes = ?, updated_at = ?, resolved_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		string(alert.Status),
		alert.ResolvedBy,
		alert.ReplacementValue,
		alert.Notes,
		alert.UpdatedAt,
		nullTimePtr(alert.ResolvedAt),
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrNotFound)
	}

	return nil
}

// GetAlert retrieves an alert by id.
func (db *DB) GetAlert(ctx context.Context, id string) (*models.DepartedUserAlert, error) {
	query := alertSelect + ` WHERE id = ?`
	return db.scanAlert(db.QueryRowContext(ctx, query, id))
}

// ListOpenAlerts returns alerts still requiring action (open or
// acknowledged), ordered by detection time.
func (db *DB) ListOpenAlerts(ctx context.Context) ([]models.DepartedUserAlert, error) {
	query := alertSelect + ` WHERE status IN (?, ?) ORDER BY detected_at`
	return db.listAlerts(ctx, query, string(models.AlertOpen), string(models.AlertAcknowledged))
}

// ListAlertsByApplication returns all alerts for an application.
func (db *DB) ListAlertsByApplication(ctx context.Context, applicationID int64) ([]models.DepartedUserAlert, error) {
	query := alertSelect + ` WHERE application_id = ? ORDER BY detected_at`
	return db.listAlerts(ctx, query, applicationID)
}

const alertSelect = `
	SELECT id, unmatched_value, application_id, role_type, status, resolved_by,
	       replacement_value, notes, detected_at, updated_at, resolved_at
	FROM departed_user_alerts`

func (db *DB) listAlerts(ctx context.Context, query string, args ...any) ([]models.DepartedUserAlert, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []models.DepartedUserAlert
	for rows.Next() {
		alert, err := db.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

func (db *DB) scanAlert(row rowScanner) (*models.DepartedUserAlert, error) {
	alert := &models.DepartedUserAlert{}
	var resolvedAt sql.NullTime
	var status string

	err := row.Scan(
		&alert.ID,
		&alert.UnmatchedValue,
		&alert.ApplicationID,
		&alert.RoleType,
		&status,
		&alert.ResolvedBy,
		&alert.ReplacementValue,
		&alert.Notes,
		&alert.DetectedAt,
		&alert.UpdatedAt,
		&resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning alert: %w", err)
	}

	alert.Status, err = models.ParseAlertStatus(status)
	if err != nil {
		return nil, fmt.Errorf("alert %s: %w", alert.ID, err)
	}

	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}

	return alert, nil
}
