package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint computes the content fingerprint for an uploaded batch. The
// same bytes always produce the same fingerprint, which is what makes
// duplicate submissions detectable.
func Fingerprint(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ImportCounters reports the per-row outcome of a processed batch. The
// counters are reported even under partial failure.
type ImportCounters struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Total returns the number of rows accounted for.
func (c ImportCounters) Total() int {
	return c.New + c.Updated + c.Skipped + c.Errors
}

// ImportRecord is the bookkeeping row for a completed batch import. The
// (data source, fingerprint) pair is unique: re-submitting identical content
// for the same source is detected, not reprocessed.
type ImportRecord struct {
	ImportedAt  time.Time      `json:"imported_at"`
	DataSource  string         `json:"data_source"`
	Fingerprint string         `json:"fingerprint"`
	ImportedBy  string         `json:"imported_by,omitempty"`
	Counters    ImportCounters `json:"counters"`
	ID          int64          `json:"id"`
}

// ImportJob is the mutual-exclusion gate for in-flight imports. Only one
// running job may exist per data source; a second submission is rejected
// rather than queued.
type ImportJob struct {
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	DataSource   string          `json:"data_source"`
	Status       ImportJobStatus `json:"status"`
	ErrorDetails string          `json:"error_details,omitempty"`
	ID           int64           `json:"id"`
}
