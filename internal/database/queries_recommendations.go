package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// CreateRecommendation inserts a generated recommendation.
func (db *DB) CreateRecommendation(ctx context.Context, rec *models.IncidentRecommendation) error {
	codesJSON, err := json.Marshal(rec.RelatedCodes)
	if err != nil {
		return fmt.Errorf("marshaling related codes: %w", err)
	}
	ticketsJSON, err := json.Marshal(rec.RelatedTickets)
	if err != nil {
		return fmt.Errorf("marshaling related tickets: %w", err)
	}

	query := `
		INSERT INTO recommendations (id, application_id, type, status, priority, confidence,
			title, description, root_signal, related_codes, related_tickets, incident_count,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		rec.ID,
		nullInt64(rec.ApplicationID),
		string(rec.Type),
		string(rec.Status),
		rec.Priority,
		rec.Confidence,
		rec.Title,
		rec.Description,
		rec.RootSignal,
		string(codesJSON),
		string(ticketsJSON),
		rec.IncidentCount,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting recommendation: %w", err)
	}

	return nil
}

// UpdateRecommendation rewrites a recommendation after a refresh or status
// transition. The id, type, and root signal are immutable.
func (db *DB) UpdateRecommendation(ctx context.Context, rec *models.IncidentRecommendation) error {
	codesJSON, err := json.Marshal(rec.RelatedCodes)
	if err != nil {
		return fmt.Errorf("marshaling related codes: %w", err)
	}
	ticketsJSON, err := json.Marshal(rec.RelatedTickets)
	if err != nil {
		return fmt.Errorf("marshaling related tickets: %w", err)
	}

	query := `
		UPDATE recommendations
		SET status = ?, priority = ?, confidence = ?, title = ?, description = ?,
		    related_codes = ?, related_tickets = ?, incident_count = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		string(rec.Status),
		rec.Priority,
		rec.Confidence,
		rec.Title,
		rec.Description,
		string(codesJSON),
		string(ticketsJSON),
		rec.IncidentCount,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating recommendation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("recommendation %s: %w", rec.ID, ErrNotFound)
	}

	return nil
}

// GetRecommendation retrieves a recommendation by id.
func (db *DB) GetRecommendation(ctx context.Context, id string) (*models.IncidentRecommendation, error) {
	query := recommendationSelect + ` WHERE id = ?`
	return db.scanRecommendation(db.QueryRowContext(ctx, query, id))
}

// ListOpenRecommendations returns active and in-progress recommendations.
func (db *DB) ListOpenRecommendations(ctx context.Context) ([]models.IncidentRecommendation, error) {
	query := recommendationSelect + ` WHERE status IN (?, ?) ORDER BY priority, created_at`
	return db.listRecommendations(ctx, query,
		string(models.RecommendationActive), string(models.RecommendationInProgress))
}

// ListRecommendationsByApplication returns all recommendations for an
// application, highest priority first.
func (db *DB) ListRecommendationsByApplication(ctx context.Context, applicationID int64) ([]models.IncidentRecommendation, error) {
	query := recommendationSelect + ` WHERE application_id = ? ORDER BY priority, created_at`
	return db.listRecommendations(ctx, query, applicationID)
}

const recommendationSelect = `
	SELECT id, application_id, type, status, priority, confidence, title, description,
	       root_signal, related_codes, related_tickets, incident_count, created_at, updated_at
	FROM recommendations`

func (db *DB) listRecommendations(ctx context.Context, query string, args ...any) ([]models.IncidentRecommendation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing recommendations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []models.IncidentRecommendation
	for rows.Next() {
		rec, err := db.scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}

	return recs, rows.Err()
}

func (db *DB) scanRecommendation(row rowScanner) (*models.IncidentRecommendation, error) {
	rec := &models.IncidentRecommendation{}
	var appID sql.NullInt64
	var recType, status, codesJSON, ticketsJSON string

	err := row.Scan(
		&rec.ID,
		&appID,
		&recType,
		&status,
		&rec.Priority,
		&rec.Confidence,
		&rec.Title,
		&rec.Description,
		&rec.RootSignal,
		&codesJSON,
		&ticketsJSON,
		&rec.IncidentCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning recommendation: %w", err)
	}

	rec.Type, err = models.ParseRecommendationType(recType)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", rec.ID, err)
	}

	rec.Status, err = models.ParseRecommendationStatus(status)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", rec.ID, err)
	}

	if appID.Valid {
		rec.ApplicationID = &appID.Int64
	}

	if err := json.Unmarshal([]byte(codesJSON), &rec.RelatedCodes); err != nil {
		return nil, fmt.Errorf("unmarshaling related codes for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(ticketsJSON), &rec.RelatedTickets); err != nil {
		return nil, fmt.Errorf("unmarshaling related tickets for %s: %w", rec.ID, err)
	}

	return rec, nil
}
