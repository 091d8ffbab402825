package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

var testOptions = Options{
	RepeatPatternThreshold: 3,
	RecentWindow:           90 * 24 * time.Hour,
	HighVolumeThreshold:    10,
}

func newTestStore(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func seedClosedIncident(t *testing.T, db *database.DB, appID int64, ticket, closeCode string, closedAt time.Time) {
	t.Helper()

	linked := &models.LinkedIncident{
		Status:        models.LinkStatusLinked,
		ApplicationID: &appID,
		LinkedAt:      closedAt,
		Incident: models.Incident{
			TicketNumber:      ticket,
			ConfigurationItem: "app",
			CloseCode:         closeCode,
			OpenedAt:          closedAt.Add(-48 * time.Hour),
			ClosedAt:          &closedAt,
		},
	}
	_, err := db.CreateIncident(context.Background(), linked)
	require.NoError(t, err)
}

func TestRunCreatesRepeatPatternRecommendation(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "PayrollSvc"})
	require.NoError(t, err)

	closed := asOf.Add(-10 * 24 * time.Hour)
	seedClosedIncident(t, db, appID, "INC0001", "USER_ERROR", closed)
	seedClosedIncident(t, db, appID, "INC0002", "USER_ERROR", closed.Add(24*time.Hour))
	seedClosedIncident(t, db, appID, "INC0003", "USER_ERROR", closed.Add(48*time.Hour))
	seedClosedIncident(t, db, appID, "INC0004", "HARDWARE", closed)

	analyzer := NewAnalyzer(db, testOptions, logger.NewMockLogger())
	result, err := analyzer.Run(ctx, asOf)
	require.NoError(t, err)

	// Three of one code and one of another yield exactly one pattern.
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Refreshed)
	assert.Equal(t, 0, result.Expired)

	details := result.Details[appID]
	assert.Equal(t, 4, details.TotalIncidents)
	assert.Equal(t, 4, details.RecentIncidents)
	assert.Equal(t, 1, details.RepeatPatterns)

	recs, err := db.ListRecommendationsByApplication(ctx, appID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.RecommendationRepeatPattern, recs[0].Type)
	assert.Equal(t, "USER_ERROR", recs[0].RootSignal)
	assert.Equal(t, models.RecommendationActive, recs[0].Status)
	assert.Equal(t, 3, recs[0].IncidentCount)
	assert.ElementsMatch(t, []string{"INC0001", "INC0002", "INC0003"}, recs[0].RelatedTickets)
}

func TestRunIsIdempotent(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "Inventory"})
	require.NoError(t, err)

	closed := asOf.Add(-5 * 24 * time.Hour)
	for i, ticket := range []string{"INC0010", "INC0011", "INC0012"} {
		seedClosedIncident(t, db, appID, ticket, "TIMEOUT", closed.Add(time.Duration(i)*time.Hour))
	}

	analyzer := NewAnalyzer(db, testOptions, logger.NewMockLogger())

	first, err := analyzer.Run(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := analyzer.Run(ctx, asOf.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Refreshed)

	recs, err := db.ListRecommendationsByApplication(ctx, appID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRunRefreshKeepsTriagedStatus(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "Billing"})
	require.NoError(t, err)

	closed := asOf.Add(-5 * 24 * time.Hour)
	for i, ticket := range []string{"INC0020", "INC0021", "INC0022"} {
		seedClosedIncident(t, db, appID, ticket, "CONFIG", closed.Add(time.Duration(i)*time.Hour))
	}

	analyzer := NewAnalyzer(db, testOptions, logger.NewMockLogger())
	_, err = analyzer.Run(ctx, asOf)
	require.NoError(t, err)

	recs, err := db.ListRecommendationsByApplication(ctx, appID)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	require.NoError(t, rec.Transition(models.RecommendationInProgress, asOf))
	require.NoError(t, db.UpdateRecommendation(ctx, &rec))

	// A new matching incident refreshes evidence without resetting status.
	seedClosedIncident(t, db, appID, "INC0023", "CONFIG", asOf.Add(-24*time.Hour))
	result, err := analyzer.Run(ctx, asOf.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Refreshed)

	got, err := db.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationInProgress, got.Status)
	assert.Equal(t, 4, got.IncidentCount)
}

func TestRunExpiresStaleRecommendations(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "LegacyApp"})
	require.NoError(t, err)

	closed := asOf.Add(-10 * 24 * time.Hour)
	for i, ticket := range []string{"INC0030", "INC0031", "INC0032"} {
		seedClosedIncident(t, db, appID, ticket, "DISK", closed.Add(time.Duration(i)*time.Hour))
	}

	analyzer := NewAnalyzer(db, testOptions, logger.NewMockLogger())
	_, err = analyzer.Run(ctx, asOf)
	require.NoError(t, err)

	// Six months later the supporting incidents are outside the window.
	later := asOf.Add(180 * 24 * time.Hour)
	result, err := analyzer.Run(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Expired)

	recs, err := db.ListRecommendationsByApplication(ctx, appID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.RecommendationExpired, recs[0].Status)
}

func TestRunHighVolume(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "Noisy"})
	require.NoError(t, err)

	closed := asOf.Add(-3 * 24 * time.Hour)
	for i, code := range []string{"A", "B", "C", "D"} {
		// Distinct close codes so no repeat pattern fires.
		seedClosedIncident(t, db, appID, fmt.Sprintf("INC004%d", i), code,
			closed.Add(time.Duration(i)*time.Hour))
	}

	opts := testOptions
	opts.HighVolumeThreshold = 4
	analyzer := NewAnalyzer(db, opts, logger.NewMockLogger())

	result, err := analyzer.Run(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	recs, err := db.ListRecommendationsByApplication(ctx, appID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.RecommendationHighVolume, recs[0].Type)
	assert.Equal(t, 4, recs[0].IncidentCount)
}

func TestSummarizeCountsOpenRecentIncidents(t *testing.T) {
	analyzer := NewAnalyzer(nil, testOptions, logger.NewMockLogger())
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	incidents := []models.LinkedIncident{
		{Incident: models.Incident{TicketNumber: "INC1", OpenedAt: asOf.Add(-24 * time.Hour)}},
		{Incident: models.Incident{TicketNumber: "INC2", OpenedAt: asOf.Add(-200 * 24 * time.Hour)}},
	}

	details := analyzer.Summarize(incidents, asOf)
	assert.Equal(t, 2, details.TotalIncidents)
	assert.Equal(t, 1, details.RecentIncidents)
	assert.Equal(t, 0, details.RepeatPatterns)
}
