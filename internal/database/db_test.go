package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewMemoryDB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("Failed to close database: %v", closeErr)
		}
	})

	return db
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Migrate runs on open; running it again must be a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	version, err := db.getCurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version < 1 {
		t.Errorf("getCurrentVersion() = %d, want >= 1", version)
	}

	// Core tables exist.
	tables := []string{
		"applications", "incidents", "security_findings", "role_assignments",
		"tasks", "directory_users", "directory_aliases", "recommendations",
		"departed_user_alerts", "import_records", "import_jobs", "health_snapshots",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestCreateApplication(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		app     *models.Application
		name    string
		wantErr bool
	}{
		{
			name: "basic application",
			app: &models.Application{
				Name:            "PayrollSvc",
				Description:     "Payroll processing",
				UsageLevel:      models.UsageHigh,
				TechnologyStack: []string{"go", "postgres"},
			},
		},
		{
			name: "minimal application",
			app:  &models.Application{Name: "LegacyApp"},
		},
		{
			name:    "duplicate name",
			app:     &models.Application{Name: "PayrollSvc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := db.CreateApplication(ctx, tt.app)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateApplication() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && id <= 0 {
				t.Errorf("CreateApplication() returned invalid ID: %d", id)
			}
		})
	}
}

func TestGetApplicationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lastActivity := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	id, err := db.CreateApplication(ctx, &models.Application{
		Name:                   "Inventory",
		RepositoryURL:          "https://git.example.com/inventory",
		LastRepositoryActivity: lastActivity,
		UsageLevel:             models.UsageModerate,
		TechnologyStack:        []string{"dotnet"},
		DocumentationPercent:   75,
		DataConflictCount:      2,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetApplication(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	if got.Name != "Inventory" {
		t.Errorf("Name = %q, want Inventory", got.Name)
	}
	if !got.LastRepositoryActivity.Equal(lastActivity) {
		t.Errorf("LastRepositoryActivity = %v, want %v", got.LastRepositoryActivity, lastActivity)
	}
	if got.UsageLevel != models.UsageModerate {
		t.Errorf("UsageLevel = %q, want %q", got.UsageLevel, models.UsageModerate)
	}
	if len(got.TechnologyStack) != 1 || got.TechnologyStack[0] != "dotnet" {
		t.Errorf("TechnologyStack = %v, want [dotnet]", got.TechnologyStack)
	}
	if got.DocumentationPercent != 75 || got.DataConflictCount != 2 {
		t.Errorf("counters = %d/%d, want 75/2", got.DocumentationPercent, got.DataConflictCount)
	}

	if _, err := db.GetApplication(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetApplication(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCorruptUsageLevelFailsLoudly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateApplication(ctx, &models.Application{Name: "Corrupt"})
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a corrupt row written by an older build.
	if _, err := db.ExecContext(ctx, `UPDATE applications SET usage_level = 'banana' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetApplication(ctx, id); err == nil {
		t.Error("GetApplication() with corrupt usage level should fail")
	}
}

func TestBatchInsertFindings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "FindingsApp"})
	if err != nil {
		t.Fatal(err)
	}

	findings := []models.SecurityFinding{
		{ApplicationID: appID, Severity: models.SeverityCritical, Title: "RCE in login", DiscoveredAt: time.Now()},
		{ApplicationID: appID, Severity: models.SeverityLow, Title: "Verbose banner", DiscoveredAt: time.Now()},
	}

	if err := db.BatchInsertFindings(ctx, findings); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListFindingsByApplication(ctx, appID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ListFindingsByApplication() returned %d findings, want 2", len(got))
	}

	// Invalid severity rejected before insert.
	bad := []models.SecurityFinding{
		{ApplicationID: appID, Severity: "catastrophic", Title: "bad", DiscoveredAt: time.Now()},
	}
	if err := db.BatchInsertFindings(ctx, bad); err == nil {
		t.Error("BatchInsertFindings() with invalid severity should fail")
	}
}
