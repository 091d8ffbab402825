package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

func TestImportRecordUniqueness(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := &models.ImportRecord{
		DataSource:  "incidents-csv",
		Fingerprint: "abc123",
		Counters:    models.ImportCounters{New: 10, Skipped: 2},
		ImportedBy:  "ops@example.com",
	}

	if _, err := db.CreateImportRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// Same fingerprint for the same source is rejected by the schema.
	if _, err := db.CreateImportRecord(ctx, rec); err == nil {
		t.Error("CreateImportRecord() duplicate should fail")
	}

	// Same fingerprint for a different source is fine.
	other := &models.ImportRecord{DataSource: "roles-csv", Fingerprint: "abc123"}
	if _, err := db.CreateImportRecord(ctx, other); err != nil {
		t.Errorf("CreateImportRecord() different source error = %v", err)
	}

	got, err := db.GetImportRecord(ctx, "incidents-csv", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Counters.New != 10 || got.Counters.Skipped != 2 {
		t.Errorf("Counters = %+v, want New=10 Skipped=2", got.Counters)
	}

	if _, err := db.GetImportRecord(ctx, "incidents-csv", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetImportRecord(missing) error = %v, want ErrNotFound", err)
	}
}

func TestImportJobGate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	jobID, err := db.CreateImportJob(ctx, "incidents-csv")
	if err != nil {
		t.Fatal(err)
	}

	// A second running job for the same source violates the partial index.
	if _, err := db.CreateImportJob(ctx, "incidents-csv"); err == nil {
		t.Error("CreateImportJob() second running job should fail")
	}

	// A different source is independent.
	if _, err := db.CreateImportJob(ctx, "roles-csv"); err != nil {
		t.Errorf("CreateImportJob() other source error = %v", err)
	}

	running, err := db.GetRunningImportJob(ctx, "incidents-csv")
	if err != nil {
		t.Fatal(err)
	}
	if running.ID != jobID || running.Status != models.ImportJobRunning {
		t.Errorf("GetRunningImportJob() = %+v", running)
	}

	if err := db.FinishImportJob(ctx, jobID, models.ImportJobCompleted, ""); err != nil {
		t.Fatal(err)
	}

	// Once finished, a new job can start.
	if _, err := db.CreateImportJob(ctx, "incidents-csv"); err != nil {
		t.Errorf("CreateImportJob() after finish error = %v", err)
	}

	// Finishing twice fails: the row is no longer running.
	if err := db.FinishImportJob(ctx, jobID, models.ImportJobFailed, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishImportJob() second finish error = %v, want ErrNotFound", err)
	}

	// Non-terminal target status is rejected.
	if err := db.FinishImportJob(ctx, jobID, models.ImportJobRunning, ""); err == nil {
		t.Error("FinishImportJob(running) should fail")
	}
}

func TestIncidentRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "PayrollSvc"})
	if err != nil {
		t.Fatal(err)
	}

	closedAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	linked := &models.LinkedIncident{
		Incident: models.Incident{
			TicketNumber:      "INC0001",
			ConfigurationItem: "Payroll App",
			CloseCode:         "USER_ERROR",
			OpenedAt:          closedAt.Add(-48 * time.Hour),
			ClosedAt:          &closedAt,
		},
		Status:        models.LinkStatusLinked,
		ApplicationID: &appID,
		LinkedAt:      closedAt,
	}

	id, err := db.CreateIncident(ctx, linked)
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Fatalf("CreateIncident() returned invalid id %d", id)
	}

	got, err := db.GetIncidentByTicket(ctx, "INC0001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.LinkStatusLinked {
		t.Errorf("Status = %s, want linked", got.Status)
	}
	if got.ApplicationID == nil || *got.ApplicationID != appID {
		t.Errorf("ApplicationID = %v, want %d", got.ApplicationID, appID)
	}
	if got.Incident.ClosedAt == nil || !got.Incident.ClosedAt.Equal(closedAt) {
		t.Errorf("ClosedAt = %v, want %v", got.Incident.ClosedAt, closedAt)
	}

	byApp, err := db.ListIncidentsByApplication(ctx, appID)
	if err != nil {
		t.Fatal(err)
	}
	if len(byApp) != 1 {
		t.Errorf("ListIncidentsByApplication() returned %d incidents, want 1", len(byApp))
	}

	// Corrupt link status fails loudly on read.
	if _, err := db.ExecContext(ctx, `UPDATE incidents SET link_status = 'LINKED' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetIncidentByTicket(ctx, "INC0001"); err == nil {
		t.Error("GetIncidentByTicket() with corrupt status should fail")
	}
}

func TestUpdateIncidentLink(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	linked := &models.LinkedIncident{
		Incident: models.Incident{
			TicketNumber:      "INC0002",
			ConfigurationItem: "Mystery System",
			OpenedAt:          time.Now(),
		},
		Status:      models.LinkStatusNoMatch,
		StatusNotes: "unmatched configuration item: Mystery System",
	}

	id, err := db.CreateIncident(ctx, linked)
	if err != nil {
		t.Fatal(err)
	}

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "MysterySvc"})
	if err != nil {
		t.Fatal(err)
	}

	linked.Status = models.LinkStatusManuallyLinked
	linked.ApplicationID = &appID
	linked.StatusNotes = "linked by operator"
	linked.LinkedAt = time.Now()

	if err := db.UpdateIncidentLink(ctx, id, linked); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetIncidentByTicket(ctx, "INC0002")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.LinkStatusManuallyLinked {
		t.Errorf("Status = %s, want manually-linked", got.Status)
	}

	if err := db.UpdateIncidentLink(ctx, 9999, linked); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateIncidentLink(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAlertRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "AlertApp"})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	alert := &models.DepartedUserAlert{
		ID:             "alert-1",
		UnmatchedValue: "jsmith",
		ApplicationID:  appID,
		RoleType:       models.RoleOwner,
		Status:         models.AlertOpen,
		DetectedAt:     now,
		UpdatedAt:      now,
	}

	if err := db.CreateAlert(ctx, alert); err != nil {
		t.Fatal(err)
	}

	// Second open alert for the same tuple violates the partial index.
	dup := *alert
	dup.ID = "alert-2"
	if err := db.CreateAlert(ctx, &dup); err == nil {
		t.Error("CreateAlert() duplicate open tuple should fail")
	}

	open, err := db.ListOpenAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("ListOpenAlerts() returned %d alerts, want 1", len(open))
	}

	if err := alert.Resolve("ops@example.com", "jdoe", "reassigned", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateAlert(ctx, alert); err != nil {
		t.Fatal(err)
	}

	// Resolving frees the tuple for a new open alert.
	if err := db.CreateAlert(ctx, &dup); err != nil {
		t.Errorf("CreateAlert() after resolve error = %v", err)
	}

	got, err := db.GetAlert(ctx, "alert-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.AlertResolved || got.ResolvedBy != "ops@example.com" {
		t.Errorf("alert = %+v, want resolved by ops@example.com", got)
	}
	if got.ResolvedAt == nil {
		t.Error("ResolvedAt not persisted")
	}
}

func TestRecommendationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "RecApp"})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := &models.IncidentRecommendation{
		ID:             "rec-1",
		ApplicationID:  &appID,
		Type:           models.RecommendationRepeatPattern,
		Status:         models.RecommendationActive,
		Priority:       models.PriorityHigh,
		Confidence:     70,
		Title:          "Recurring USER_ERROR closures",
		RootSignal:     "USER_ERROR",
		RelatedCodes:   []string{"USER_ERROR"},
		RelatedTickets: []string{"INC0001", "INC0002", "INC0003"},
		IncidentCount:  3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.CreateRecommendation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRecommendation(ctx, "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != models.RecommendationRepeatPattern || got.RootSignal != "USER_ERROR" {
		t.Errorf("recommendation = %+v", got)
	}
	if len(got.RelatedTickets) != 3 {
		t.Errorf("RelatedTickets = %v, want 3 entries", got.RelatedTickets)
	}

	rec.Confidence = 85
	rec.IncidentCount = 4
	rec.UpdatedAt = now.Add(time.Hour)
	if err := db.UpdateRecommendation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	open, err := db.ListOpenRecommendations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Confidence != 85 {
		t.Errorf("ListOpenRecommendations() = %+v", open)
	}

	// Corrupt type fails loudly.
	if _, err := db.ExecContext(ctx, `UPDATE recommendations SET type = 'Repeat' WHERE id = 'rec-1'`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetRecommendation(ctx, "rec-1"); err == nil {
		t.Error("GetRecommendation() with corrupt type should fail")
	}
}

func TestDirectoryReplaceAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := []models.DirectoryUser{
		{Login: "peggy.olson@example.com", DisplayName: "Peggy Olson", Aliases: []string{"Margaret Olson"}},
		{Login: "don.draper@example.com", DisplayName: "Don Draper"},
	}
	if err := db.ReplaceDirectory(ctx, first); err != nil {
		t.Fatal(err)
	}

	users, err := db.ListDirectoryUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("ListDirectoryUsers() returned %d users, want 2", len(users))
	}
	if users[1].Login != "peggy.olson@example.com" || len(users[1].Aliases) != 1 {
		t.Errorf("user = %+v, want peggy with one alias", users[1])
	}

	// Replacing discards the previous snapshot entirely.
	second := []models.DirectoryUser{{Login: "joan.holloway@example.com", DisplayName: "Joan Holloway"}}
	if err := db.ReplaceDirectory(ctx, second); err != nil {
		t.Fatal(err)
	}

	users, err = db.ListDirectoryUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Login != "joan.holloway@example.com" {
		t.Errorf("ListDirectoryUsers() after replace = %+v", users)
	}
}

func TestHealthSnapshotHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "SnapApp"})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []int{70, 65, 62} {
		breakdown := &models.HealthScoreBreakdown{
			ApplicationID: appID,
			BaseScore:     100,
			FinalScore:    score,
			Category:      models.CategoryForScore(score),
			ComputedAt:    base.Add(time.Duration(i) * 24 * time.Hour),
		}
		if _, err := db.InsertHealthSnapshot(ctx, breakdown); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := db.LatestHealthSnapshot(ctx, appID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.FinalScore != 62 {
		t.Errorf("LatestHealthSnapshot() score = %d, want 62", latest.FinalScore)
	}
	if latest.Category != models.HealthNeedsAttention {
		t.Errorf("LatestHealthSnapshot() category = %s, want needs-attention", latest.Category)
	}

	history, err := db.ListHealthSnapshots(ctx, appID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 || history[0].FinalScore != 62 || history[2].FinalScore != 70 {
		t.Errorf("ListHealthSnapshots() = %+v", history)
	}

	if _, err := db.LatestHealthSnapshot(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestHealthSnapshot(missing) error = %v, want ErrNotFound", err)
	}
}
