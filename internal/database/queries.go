package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateApplication inserts a new application record.
func (db *DB) CreateApplication(ctx context.Context, app *models.Application) (int64, error) {
	stackJSON, err := json.Marshal(app.TechnologyStack)
	if err != nil {
		return 0, fmt.Errorf("marshaling technology stack: %w", err)
	}

	query := `
		INSERT INTO applications (name, description, repository_url, last_repository_activity,
			usage_level, technology_stack, documentation_percent, data_conflict_count,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		app.Name,
		app.Description,
		app.RepositoryURL,
		nullTime(app.LastRepositoryActivity),
		app.UsageLevel,
		string(stackJSON),
		app.DocumentationPercent,
		app.DataConflictCount,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// GetApplication retrieves an application by id.
func (db *DB) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	query := applicationSelect + ` WHERE id = ?`
	return db.scanApplication(db.QueryRowContext(ctx, query, id))
}

// GetApplicationByName retrieves an application by exact name.
func (db *DB) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	query := applicationSelect + ` WHERE name = ?`
	return db.scanApplication(db.QueryRowContext(ctx, query, name))
}

// ListApplications returns all applications ordered by name.
func (db *DB) ListApplications(ctx context.Context) ([]models.Application, error) {
	query := applicationSelect + ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []models.Application
	for rows.Next() {
		app, err := db.scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}

	return apps, rows.Err()
}

const applicationSelect = `
	SELECT id, name, description, repository_url, last_repository_activity,
	       usage_level, technology_stack, documentation_percent, data_conflict_count,
	       created_at, updated_at
	FROM applications`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanApplication(row rowScanner) (*models.Application, error) {
	app := &models.Application{}
	var lastActivity sql.NullTime
	var stackJSON string

	err := row.Scan(
		&app.ID,
		&app.Name,
		&app.Description,
		&app.RepositoryURL,
		&lastActivity,
		&app.UsageLevel,
		&stackJSON,
		&app.DocumentationPercent,
		&app.DataConflictCount,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning application: %w", err)
	}

	if lastActivity.Valid {
		app.LastRepositoryActivity = lastActivity.Time
	}

	if err := json.Unmarshal([]byte(stackJSON), &app.TechnologyStack); err != nil {
		return nil, fmt.Errorf("unmarshaling technology stack for application %d: %w", app.ID, err)
	}

	if app.UsageLevel != "" {
		if _, err := models.ParseUsageLevel(app.UsageLevel); err != nil {
			return nil, fmt.Errorf("application %d: %w", app.ID, err)
		}
	}

	return app, nil
}

// CreateRoleAssignment records a role assignment for an application.
func (db *DB) CreateRoleAssignment(ctx context.Context, ra *models.RoleAssignment) (int64, error) {
	query := `
		INSERT INTO role_assignments (application_id, role_type, assignee_value, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query, ra.ApplicationID, ra.RoleType, ra.AssigneeValue, time.Now())
	if err != nil {
		return 0, fmt.Errorf("inserting role assignment: %w", err)
	}

	return result.LastInsertId()
}

// ListRoleAssignments returns all role assignments, ordered for stable output.
func (db *DB) ListRoleAssignments(ctx context.Context) ([]models.RoleAssignment, error) {
	query := `
		SELECT id, application_id, role_type, assignee_value, created_at
		FROM role_assignments
		ORDER BY application_id, role_type, id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing role assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []models.RoleAssignment
	for rows.Next() {
		var ra models.RoleAssignment
		if err := rows.Scan(&ra.ID, &ra.ApplicationID, &ra.RoleType, &ra.AssigneeValue, &ra.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning role assignment: %w", err)
		}
		assignments = append(assignments, ra)
	}

	return assignments, rows.Err()
}

// CreateTask records a task against an application.
func (db *DB) CreateTask(ctx context.Context, task *models.Task) (int64, error) {
	query := `
		INSERT INTO tasks (application_id, title, due_at, completed_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query, task.ApplicationID, task.Title, nullTime(task.DueAt), task.CompletedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting task: %w", err)
	}

	return result.LastInsertId()
}

// ListTasksByApplication returns all tasks for an application.
func (db *DB) ListTasksByApplication(ctx context.Context, applicationID int64) ([]models.Task, error) {
	query := `
		SELECT id, application_id, title, due_at, completed_at
		FROM tasks
		WHERE application_id = ?
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		var dueAt, completedAt sql.NullTime
		if err := rows.Scan(&task.ID, &task.ApplicationID, &task.Title, &dueAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		if dueAt.Valid {
			task.DueAt = dueAt.Time
		}
		if completedAt.Valid {
			task.CompletedAt = &completedAt.Time
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// BatchInsertFindings inserts security findings efficiently.
func (db *DB) BatchInsertFindings(ctx context.Context, findings []models.SecurityFinding) error {
	if len(findings) == 0 {
		return nil
	}

	// Process in chunks to avoid SQL query size limits
	const chunkSize = 500

	for i := 0; i < len(findings); i += chunkSize {
		end := i + chunkSize
		if end > len(findings) {
			end = len(findings)
		}

		chunk := findings[i:end]
		if err := db.insertFindingChunk(ctx, chunk); err != nil {
			return fmt.Errorf("inserting chunk %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func (db *DB) insertFindingChunk(ctx context.Context, findings []models.SecurityFinding) error {
	return db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO security_findings (application_id, severity, title, description, resource, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()

		for _, finding := range findings {
			if _, err := models.ParseSeverity(finding.Severity); err != nil {
				return fmt.Errorf("finding %q: %w", finding.Title, err)
			}

			_, err := stmt.ExecContext(ctx,
				finding.ApplicationID,
				finding.Severity,
				finding.Title,
				finding.Description,
				finding.Resource,
				finding.DiscoveredAt,
			)
			if err != nil {
				return fmt.Errorf("inserting finding: %w", err)
			}
		}

		return nil
	})
}

// ListFindingsByApplication returns all findings for an application.
func (db *DB) ListFindingsByApplication(ctx context.Context, applicationID int64) ([]models.SecurityFinding, error) {
	query := `
		SELECT id, application_id, severity, title, description, resource, discovered_at
		FROM security_findings
		WHERE application_id = ?
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var findings []models.SecurityFinding
	for rows.Next() {
		var f models.SecurityFinding
		if err := rows.Scan(&f.ID, &f.ApplicationID, &f.Severity, &f.Title, &f.Description, &f.Resource, &f.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		if _, err := models.ParseSeverity(f.Severity); err != nil {
			return nil, fmt.Errorf("finding %d: %w", f.ID, err)
		}
		findings = append(findings, f)
	}

	return findings, rows.Err()
}

// nullTime converts a zero time to NULL for storage.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
