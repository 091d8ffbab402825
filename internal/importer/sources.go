package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// Data source names used for fingerprinting and the job gate.
const (
	SourceIncidents = "incidents"
	SourceRoles     = "roles"
	SourceDirectory = "directory"
)

// SourceStore extends Store with the row-level operations the built-in
// CSV sources need.
type SourceStore interface {
	Store
	GetIncidentByTicket(ctx context.Context, ticketNumber string) (*models.LinkedIncident, error)
	CreateIncident(ctx context.Context, linked *models.LinkedIncident) (int64, error)
	ListRoleAssignments(ctx context.Context) ([]models.RoleAssignment, error)
	CreateRoleAssignment(ctx context.Context, ra *models.RoleAssignment) (int64, error)
	GetApplicationByName(ctx context.Context, name string) (*models.Application, error)
	ReplaceDirectory(ctx context.Context, users []models.DirectoryUser) error
}

// timeLayouts accepted for timestamp columns, tried in order.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// ImportIncidents ingests an incident CSV export. Expected header:
// ticket_number,short_description,configuration_item,close_code,
// assignment_group,opened_at,closed_at. Rows for tickets already stored
// are skipped; malformed rows are counted as errors without aborting
// the batch.
func (i *Importer) ImportIncidents(ctx context.Context, store SourceStore, content []byte, importedBy string, now time.Time) (*models.ImportRecord, error) {
	jobID, fingerprint, err := i.Begin(ctx, SourceIncidents, content)
	if err != nil {
		return nil, err
	}

	counters, err := i.importIncidentRows(ctx, store, content, now)
	if err != nil {
		if failErr := i.Fail(ctx, jobID, SourceIncidents, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	return i.Complete(ctx, jobID, SourceIncidents, fingerprint, importedBy, *counters, now)
}

func (i *Importer) importIncidentRows(ctx context.Context, store SourceStore, content []byte, now time.Time) (*models.ImportCounters, error) {
	rows, err := readCSV(content, []string{
		"ticket_number", "short_description", "configuration_item",
		"close_code", "assignment_group", "opened_at", "closed_at",
	})
	if err != nil {
		return nil, err
	}

	counters := &models.ImportCounters{}
	for lineNo, row := range rows {
		ticket := strings.TrimSpace(row["ticket_number"])
		if ticket == "" {
			i.logger.Warn("Incident row missing ticket number", "line", lineNo+2)
			counters.Errors++
			continue
		}

		openedAt, err := parseTimestamp(row["opened_at"])
		if err != nil || openedAt.IsZero() {
			i.logger.Warn("Incident row has invalid opened_at", "ticket", ticket, "line", lineNo+2)
			counters.Errors++
			continue
		}

		closedAt, err := parseTimestamp(row["closed_at"])
		if err != nil {
			i.logger.Warn("Incident row has invalid closed_at", "ticket", ticket, "line", lineNo+2)
			counters.Errors++
			continue
		}

		if _, err := store.GetIncidentByTicket(ctx, ticket); err == nil {
			counters.Skipped++
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return counters, fmt.Errorf("looking up ticket %s: %w", ticket, err)
		}

		linked := &models.LinkedIncident{
			Status: models.LinkStatusUnknown,
			Incident: models.Incident{
				TicketNumber:      ticket,
				ShortDescription:  strings.TrimSpace(row["short_description"]),
				ConfigurationItem: strings.TrimSpace(row["configuration_item"]),
				CloseCode:         strings.TrimSpace(row["close_code"]),
				AssignmentGroup:   strings.TrimSpace(row["assignment_group"]),
				OpenedAt:          openedAt,
			},
		}
		if !closedAt.IsZero() {
			linked.Incident.ClosedAt = &closedAt
		}

		if _, err := store.CreateIncident(ctx, linked); err != nil {
			return counters, fmt.Errorf("inserting ticket %s: %w", ticket, err)
		}
		counters.New++
	}

	return counters, nil
}

// ImportRoleAssignments ingests a role assignment CSV export. Expected
// header: application,role_type,assignee. The application must already be
// registered; duplicate (application, role, assignee) rows are skipped.
func (i *Importer) ImportRoleAssignments(ctx context.Context, store SourceStore, content []byte, importedBy string, now time.Time) (*models.ImportRecord, error) {
	jobID, fingerprint, err := i.Begin(ctx, SourceRoles, content)
	if err != nil {
		return nil, err
	}

	counters, err := i.importRoleRows(ctx, store, content)
	if err != nil {
		if failErr := i.Fail(ctx, jobID, SourceRoles, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	return i.Complete(ctx, jobID, SourceRoles, fingerprint, importedBy, *counters, now)
}

func (i *Importer) importRoleRows(ctx context.Context, store SourceStore, content []byte) (*models.ImportCounters, error) {
	rows, err := readCSV(content, []string{"application", "role_type", "assignee"})
	if err != nil {
		return nil, err
	}

	existing, err := store.ListRoleAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading role assignments: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, ra := range existing {
		seen[models.AlertKey(ra.AssigneeValue, ra.ApplicationID, ra.RoleType)] = true
	}

	counters := &models.ImportCounters{}
	for lineNo, row := range rows {
		appName := strings.TrimSpace(row["application"])
		roleType := strings.TrimSpace(row["role_type"])
		assignee := strings.TrimSpace(row["assignee"])
		if appName == "" || roleType == "" || assignee == "" {
			i.logger.Warn("Role row incomplete", "line", lineNo+2)
			counters.Errors++
			continue
		}

		app, err := store.GetApplicationByName(ctx, appName)
		if errors.Is(err, database.ErrNotFound) {
			i.logger.Warn("Role row references unknown application", "application", appName, "line", lineNo+2)
			counters.Errors++
			continue
		}
		if err != nil {
			return counters, fmt.Errorf("looking up application %q: %w", appName, err)
		}

		key := models.AlertKey(assignee, app.ID, roleType)
		if seen[key] {
			counters.Skipped++
			continue
		}

		if _, err := store.CreateRoleAssignment(ctx, &models.RoleAssignment{
			ApplicationID: app.ID,
			RoleType:      roleType,
			AssigneeValue: assignee,
		}); err != nil {
			return counters, fmt.Errorf("inserting role assignment: %w", err)
		}
		seen[key] = true
		counters.New++
	}

	return counters, nil
}

// ImportDirectory ingests a directory snapshot CSV. Expected header:
// login,display_name,aliases (aliases semicolon-separated). The snapshot
// replaces the previous directory wholesale.
func (i *Importer) ImportDirectory(ctx context.Context, store SourceStore, content []byte, importedBy string, now time.Time) (*models.ImportRecord, error) {
	jobID, fingerprint, err := i.Begin(ctx, SourceDirectory, content)
	if err != nil {
		return nil, err
	}

	counters, err := i.importDirectoryRows(ctx, store, content, now)
	if err != nil {
		if failErr := i.Fail(ctx, jobID, SourceDirectory, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	return i.Complete(ctx, jobID, SourceDirectory, fingerprint, importedBy, *counters, now)
}

func (i *Importer) importDirectoryRows(ctx context.Context, store SourceStore, content []byte, now time.Time) (*models.ImportCounters, error) {
	rows, err := readCSV(content, []string{"login", "display_name", "aliases"})
	if err != nil {
		return nil, err
	}

	counters := &models.ImportCounters{}
	var users []models.DirectoryUser
	logins := make(map[string]bool, len(rows))
	for lineNo, row := range rows {
		login := strings.TrimSpace(row["login"])
		if login == "" {
			i.logger.Warn("Directory row missing login", "line", lineNo+2)
			counters.Errors++
			continue
		}
		if logins[login] {
			counters.Skipped++
			continue
		}
		logins[login] = true

		user := models.DirectoryUser{
			Login:       login,
			DisplayName: strings.TrimSpace(row["display_name"]),
			SyncedAt:    now,
		}
		for _, alias := range strings.Split(row["aliases"], ";") {
			if alias = strings.TrimSpace(alias); alias != "" {
				user.Aliases = append(user.Aliases, alias)
			}
		}
		users = append(users, user)
		counters.New++
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("directory snapshot contains no usable rows")
	}

	if err := store.ReplaceDirectory(ctx, users); err != nil {
		return counters, fmt.Errorf("replacing directory: %w", err)
	}

	return counters, nil
}

// readCSV parses content and returns one map per data row keyed by the
// required header columns. Extra columns are ignored.
func readCSV(content []byte, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for pos, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = pos
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		row := make(map[string]string, len(required))
		for _, name := range required {
			if pos := index[name]; pos < len(record) {
				row[name] = record[pos]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
