package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// GetImportRecord looks up a prior import by (data source, fingerprint).
// Returns ErrNotFound when no identical batch has been processed.
func (db *DB) GetImportRecord(ctx context.Context, dataSource, fingerprint string) (*models.ImportRecord, error) {
	query := `
		SELECT id, data_source, fingerprint, new_count, updated_count, skipped_count,
		       error_count, imported_by, imported_at
		FROM import_records
		WHERE data_source = ? AND fingerprint = ?
	`

	rec := &models.ImportRecord{}
	err := db.QueryRowContext(ctx, query, dataSource, fingerprint).Scan(
		&rec.ID,
		&rec.DataSource,
		&rec.Fingerprint,
		&rec.Counters.New,
		&rec.Counters.Updated,
		&rec.Counters.Skipped,
		&rec.Counters.Errors,
		&rec.ImportedBy,
		&rec.ImportedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning import record: %w", err)
	}

	return rec, nil
}

// CreateImportRecord persists the bookkeeping row for a completed import.
func (db *DB) CreateImportRecord(ctx context.Context, rec *models.ImportRecord) (int64, error) {
	query := `
		INSERT INTO import_records (data_source, fingerprint, new_count, updated_count,
			skipped_count, error_count, imported_by, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	importedAt := rec.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now()
	}

	result, err := db.ExecContext(ctx, query,
		rec.DataSource,
		rec.Fingerprint,
		rec.Counters.New,
		rec.Counters.Updated,
		rec.Counters.Skipped,
		rec.Counters.Errors,
		rec.ImportedBy,
		importedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting import record: %w", err)
	}

	return result.LastInsertId()
}

// ListImportRecords returns import history for a data source, newest first.
func (db *DB) ListImportRecords(ctx context.Context, dataSource string, limit int) ([]models.ImportRecord, error) {
	query := `
		SELECT id, data_source, fingerprint, new_count, updated_count, skipped_count,
		       error_count, imported_by, imported_at
		FROM import_records
		WHERE data_source = ?
		ORDER BY imported_at DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, dataSource, limit)
	if err != nil {
		return nil, fmt.Errorf("listing import records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.ImportRecord
	for rows.Next() {
		var rec models.ImportRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.DataSource,
			&rec.Fingerprint,
			&rec.Counters.New,
			&rec.Counters.Updated,
			&rec.Counters.Skipped,
			&rec.Counters.Errors,
			&rec.ImportedBy,
			&rec.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning import record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetRunningImportJob returns the in-flight job for a data source, or
// ErrNotFound when the source is idle.
func (db *DB) GetRunningImportJob(ctx context.Context, dataSource string) (*models.ImportJob, error) {
	query := `
		SELECT id, data_source, status, started_at, completed_at, error_details
		FROM import_jobs
		WHERE data_source = ? AND status = ?
	`

	return db.scanImportJob(db.QueryRowContext(ctx, query, dataSource, string(models.ImportJobRunning)))
}

// CreateImportJob inserts a running job row. The partial unique index on
// (data_source) WHERE status='running' rejects a second in-flight job.
func (db *DB) CreateImportJob(ctx context.Context, dataSource string) (int64, error) {
	query := `
		INSERT INTO import_jobs (data_source, status, started_at)
		VALUES (?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query, dataSource, string(models.ImportJobRunning), time.Now())
	if err != nil {
		return 0, fmt.Errorf("inserting import job: %w", err)
	}

	return result.LastInsertId()
}

// FinishImportJob marks a job completed or failed.
func (db *DB) FinishImportJob(ctx context.Context, jobID int64, status models.ImportJobStatus, errorDetails string) error {
	if status != models.ImportJobCompleted && status != models.ImportJobFailed {
		return fmt.Errorf("import job %d: %q is not a terminal status", jobID, status)
	}

	query := `
		UPDATE import_jobs
		SET status = ?, completed_at = ?, error_details = ?
		WHERE id = ? AND status = ?
	`

	result, err := db.ExecContext(ctx, query, string(status), time.Now(), errorDetails, jobID, string(models.ImportJobRunning))
	if err != nil {
		return fmt.Errorf("updating import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("running import job %d: %w", jobID, ErrNotFound)
	}

	return nil
}

func (db *DB) scanImportJob(row rowScanner) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var completedAt sql.NullTime
	var status string

	err := row.Scan(&job.ID, &job.DataSource, &status, &job.StartedAt, &completedAt, &job.ErrorDetails)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning import job: %w", err)
	}

	job.Status, err = models.ParseImportJobStatus(status)
	if err != nil {
		return nil, fmt.Errorf("import job %d: %w", job.ID, err)
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return job, nil
}
