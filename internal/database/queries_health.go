package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// InsertHealthSnapshot records a computed health score for trend history.
// The full breakdown is serialized here, at the storage boundary, so the
// score stays auditable after the fact.
func (db *DB) InsertHealthSnapshot(ctx context.Context, breakdown *models.HealthScoreBreakdown) (int64, error) {
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return 0, fmt.Errorf("marshaling breakdown: %w", err)
	}

	query := `
		INSERT INTO health_snapshots (application_id, final_score, category, breakdown, computed_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		breakdown.ApplicationID,
		breakdown.FinalScore,
		string(breakdown.Category),
		string(breakdownJSON),
		breakdown.ComputedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting health snapshot: %w", err)
	}

	return result.LastInsertId()
}

// LatestHealthSnapshot returns the most recent breakdown for an application.
func (db *DB) LatestHealthSnapshot(ctx context.Context, applicationID int64) (*models.HealthScoreBreakdown, error) {
	query := `
		SELECT breakdown
		FROM health_snapshots
		WHERE application_id = ?
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`

	var breakdownJSON string
	err := db.QueryRowContext(ctx, query, applicationID).Scan(&breakdownJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning health snapshot: %w", err)
	}

	breakdown := &models.HealthScoreBreakdown{}
	if err := json.Unmarshal([]byte(breakdownJSON), breakdown); err != nil {
		return nil, fmt.Errorf("unmarshaling breakdown for application %d: %w", applicationID, err)
	}

	return breakdown, nil
}

// ListHealthSnapshots returns score history for an application, newest first.
func (db *DB) ListHealthSnapshots(ctx context.Context, applicationID int64, limit int) ([]models.HealthScoreBreakdown, error) {
	query := `
		SELECT breakdown
		FROM health_snapshots
		WHERE application_id = ?
		ORDER BY computed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, applicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing health snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []models.HealthScoreBreakdown
	for rows.Next() {
		var breakdownJSON string
		if err := rows.Scan(&breakdownJSON); err != nil {
			return nil, fmt.Errorf("scanning health snapshot: %w", err)
		}

		var breakdown models.HealthScoreBreakdown
		if err := json.Unmarshal([]byte(breakdownJSON), &breakdown); err != nil {
			return nil, fmt.Errorf("unmarshaling breakdown: %w", err)
		}
		snapshots = append(snapshots, breakdown)
	}

	return snapshots, rows.Err()
}
