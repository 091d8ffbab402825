// Package importer handles batch ingestion bookkeeping: content
// fingerprinting for duplicate detection and the one-job-per-source gate.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// Sentinel errors surfaced to callers so the CLI can report them cleanly.
var (
	ErrDuplicateImport  = errors.New("identical content was already imported for this source")
	ErrImportInProgress = errors.New("an import is already running for this source")
)

// Store is the persistence surface the importer needs.
type Store interface {
	GetImportRecord(ctx context.Context, dataSource, fingerprint string) (*models.ImportRecord, error)
	CreateImportRecord(ctx context.Context, rec *models.ImportRecord) (int64, error)
	ListImportRecords(ctx context.Context, dataSource string, limit int) ([]models.ImportRecord, error)
	GetRunningImportJob(ctx context.Context, dataSource string) (*models.ImportJob, error)
	CreateImportJob(ctx context.Context, dataSource string) (int64, error)
	FinishImportJob(ctx context.Context, jobID int64, status models.ImportJobStatus, errorDetails string) error
}

// DuplicateCheck is the outcome of fingerprinting a candidate batch.
type DuplicateCheck struct {
	Fingerprint string
	Prior       *models.ImportRecord
	Duplicate   bool
}

// Importer coordinates batch import bookkeeping. It does not parse batch
// content; source-specific row handling is supplied by the caller.
type Importer struct {
	store  Store
	logger logger.Logger
}

// NewImporter creates an Importer.
func NewImporter(store Store, log logger.Logger) *Importer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Importer{store: store, logger: log}
}

// CheckDuplicate fingerprints content and looks for a prior identical
// import of the same source. Read-only, so it is safe to call
// speculatively before asking the user to confirm a re-import.
func (i *Importer) CheckDuplicate(ctx context.Context, dataSource string, content []byte) (*DuplicateCheck, error) {
	check := &DuplicateCheck{Fingerprint: models.Fingerprint(content)}

	prior, err := i.store.GetImportRecord(ctx, dataSource, check.Fingerprint)
	if errors.Is(err, database.ErrNotFound) {
		return check, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking for prior import: %w", err)
	}

	check.Duplicate = true
	check.Prior = prior
	return check, nil
}

// Begin acquires the import gate for a source after rejecting duplicate
// content. On success the caller owns the returned job id and must finish
// it with Complete or Fail.
func (i *Importer) Begin(ctx context.Context, dataSource string, content []byte) (int64, string, error) {
	dataSource = strings.TrimSpace(dataSource)
	if dataSource == "" {
		return 0, "", fmt.Errorf("data source is required")
	}

	check, err := i.CheckDuplicate(ctx, dataSource, content)
	if err != nil {
		return 0, "", err
	}
	if check.Duplicate {
		return 0, "", fmt.Errorf("source %s, fingerprint %s imported at %s: %w",
			dataSource, shortFingerprint(check.Fingerprint),
			check.Prior.ImportedAt.Format(time.RFC3339), ErrDuplicateImport)
	}

	jobID, err := i.store.CreateImportJob(ctx, dataSource)
	if err != nil {
		// The partial unique index is the authority on mutual exclusion;
		// map its violation to the sentinel the CLI understands.
		if running, lookupErr := i.store.GetRunningImportJob(ctx, dataSource); lookupErr == nil {
			return 0, "", fmt.Errorf("source %s, job %d started at %s: %w",
				dataSource, running.ID, running.StartedAt.Format(time.RFC3339), ErrImportInProgress)
		}
		return 0, "", fmt.Errorf("starting import job: %w", err)
	}

	i.logger.Info("Import started",
		"source", dataSource,
		"job_id", jobID,
		"fingerprint", shortFingerprint(check.Fingerprint),
	)

	return jobID, check.Fingerprint, nil
}

// Complete finishes a job successfully and records the import with its
// counters so the same content is rejected next time.
func (i *Importer) Complete(ctx context.Context, jobID int64, dataSource, fingerprint, importedBy string, counters models.ImportCounters, now time.Time) (*models.ImportRecord, error) {
	rec := &models.ImportRecord{
		DataSource:  dataSource,
		Fingerprint: fingerprint,
		ImportedBy:  importedBy,
		Counters:    counters,
		ImportedAt:  now,
	}

	id, err := i.store.CreateImportRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}
	rec.ID = id

	if err := i.store.FinishImportJob(ctx, jobID, models.ImportJobCompleted, ""); err != nil {
		return rec, fmt.Errorf("closing import job: %w", err)
	}

	i.logger.Info("Import complete",
		"source", dataSource,
		"new", counters.New,
		"updated", counters.Updated,
		"skipped", counters.Skipped,
		"errors", counters.Errors,
	)

	return rec, nil
}

// Fail finishes a job unsuccessfully. No import record is written: the
// same content may be retried once the underlying problem is fixed.
func (i *Importer) Fail(ctx context.Context, jobID int64, dataSource string, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}

	if err := i.store.FinishImportJob(ctx, jobID, models.ImportJobFailed, details); err != nil {
		return fmt.Errorf("closing failed import job: %w", err)
	}

	i.logger.Error("Import failed", "source", dataSource, "error", details)
	return nil
}

// History returns recent import records for a source, newest first.
func (i *Importer) History(ctx context.Context, dataSource string, limit int) ([]models.ImportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return i.store.ListImportRecords(ctx, dataSource, limit)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
