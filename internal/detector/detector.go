// Package detector scans application role assignments for identities that
// no longer resolve against the directory and raises departed-user alerts.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/henboffman/lifecycle-tool-sub002/internal/directory"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// Store is the persistence surface the detector needs.
type Store interface {
	ListRoleAssignments(ctx context.Context) ([]models.RoleAssignment, error)
	ListOpenAlerts(ctx context.Context) ([]models.DepartedUserAlert, error)
	CreateAlert(ctx context.Context, alert *models.DepartedUserAlert) error
}

// Summary reports the outcome of one detection pass.
type Summary struct {
	Assignments int `json:"assignments"`
	Matched     int `json:"matched"`
	Created     int `json:"created"`
	AlreadyOpen int `json:"already_open"`
}

// Detector resolves role assignees against the directory and raises alerts
// for the ones that fail. Detection only ever creates alerts: closing one
// is an operator decision made through the alert lifecycle.
type Detector struct {
	store   Store
	matcher *directory.Matcher
	logger  logger.Logger
}

// NewDetector creates a Detector using the given directory matcher.
func NewDetector(store Store, matcher *directory.Matcher, log logger.Logger) *Detector {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Detector{store: store, matcher: matcher, logger: log}
}

// Detect runs one detection pass as of the given time. An assignment whose
// tuple already has an open or acknowledged alert is skipped, so a resolved
// or false-positive alert can be re-raised if the identity is still broken
// on a later pass.
func (d *Detector) Detect(ctx context.Context, now time.Time) (*Summary, error) {
	assignments, err := d.store.ListRoleAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading role assignments: %w", err)
	}

	open, err := d.store.ListOpenAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open alerts: %w", err)
	}

	openKeys := make(map[string]bool, len(open))
	for i := range open {
		openKeys[open[i].Key()] = true
	}

	summary := &Summary{Assignments: len(assignments)}
	for i := range assignments {
		assignment := &assignments[i]

		value := strings.TrimSpace(assignment.AssigneeValue)
		if value == "" {
			continue
		}

		if d.matcher.Resolve(value, candidateType(value)).Matched {
			summary.Matched++
			continue
		}

		key := models.AlertKey(value, assignment.ApplicationID, assignment.RoleType)
		if openKeys[key] {
			summary.AlreadyOpen++
			continue
		}

		alert := &models.DepartedUserAlert{
			ID:             uuid.New().String(),
			UnmatchedValue: value,
			ApplicationID:  assignment.ApplicationID,
			RoleType:       assignment.RoleType,
			Status:         models.AlertOpen,
			DetectedAt:     now,
			UpdatedAt:      now,
		}
		if err := d.store.CreateAlert(ctx, alert); err != nil {
			return summary, fmt.Errorf("creating alert for %q on application %d: %w",
				value, assignment.ApplicationID, err)
		}

		// A second assignment with the same tuple in this pass must not
		// raise twice.
		openKeys[key] = true
		summary.Created++

		d.logger.Warn("Unresolvable role assignee",
			"value", value,
			"application_id", assignment.ApplicationID,
			"role", assignment.RoleType,
		)
	}

	d.logger.Info("Departed-user detection complete",
		"assignments", summary.Assignments,
		"matched", summary.Matched,
		"created", summary.Created,
		"already_open", summary.AlreadyOpen,
	)

	return summary, nil
}

func candidateType(value string) directory.CandidateType {
	if strings.Contains(value, "@") {
		return directory.CandidateEmail
	}
	return directory.CandidateName
}
