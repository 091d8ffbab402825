package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

func newTestGenerator(t *testing.T) (*Generator, *database.DB) {
	t.Helper()

	db, err := database.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewGenerator(db, "acme", "production", logger.NewMockLogger()), db
}

func TestGenerate(t *testing.T) {
	gen, db := newTestGenerator(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	healthyID, err := db.CreateApplication(ctx, &models.Application{Name: "Healthy"})
	require.NoError(t, err)
	riskyID, err := db.CreateApplication(ctx, &models.Application{Name: "Risky"})
	require.NoError(t, err)

	_, err = db.InsertHealthSnapshot(ctx, &models.HealthScoreBreakdown{
		ApplicationID: healthyID, FinalScore: 95, Category: models.HealthHealthy, ComputedAt: now,
	})
	require.NoError(t, err)
	_, err = db.InsertHealthSnapshot(ctx, &models.HealthScoreBreakdown{
		ApplicationID: riskyID, FinalScore: 45, Category: models.HealthAtRisk,
		SecurityPenalty: 40, IncidentPenalty: 15, ComputedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, db.CreateRecommendation(ctx, &models.IncidentRecommendation{
		ID:            "rec-1",
		ApplicationID: &riskyID,
		Type:          models.RecommendationRepeatPattern,
		Status:        models.RecommendationActive,
		Priority:      models.PriorityHigh,
		Title:         "Recurring incidents closed as TIMEOUT",
		RootSignal:    "TIMEOUT",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	require.NoError(t, db.CreateAlert(ctx, &models.DepartedUserAlert{
		ID:             "alert-1",
		UnmatchedValue: "Carl Departed",
		ApplicationID:  riskyID,
		RoleType:       models.RoleOwner,
		Status:         models.AlertOpen,
		DetectedAt:     now,
		UpdatedAt:      now,
	}))

	report, err := gen.Generate(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, "acme", report.Client)
	assert.Equal(t, 2, report.Summary.Applications)
	assert.Equal(t, 1, report.Summary.OpenRecommendations)
	assert.Equal(t, 1, report.Summary.OpenAlerts)
	assert.Equal(t, 1, report.Summary.ByCategory[string(models.HealthHealthy)])
	assert.Equal(t, 1, report.Summary.ByCategory[string(models.HealthAtRisk)])

	// Worst score first.
	require.Len(t, report.Applications, 2)
	assert.Equal(t, "Risky", report.Applications[0].Name)
	assert.Equal(t, 45, report.Applications[0].Score)
	require.Len(t, report.Applications[0].Recommendations, 1)
	require.Len(t, report.Applications[0].Alerts, 1)
	assert.Equal(t, "Carl Departed", report.Applications[0].Alerts[0].UnmatchedValue)
}

func TestGenerateSkipsClosedItems(t *testing.T) {
	gen, db := newTestGenerator(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	appID, err := db.CreateApplication(ctx, &models.Application{Name: "Quiet"})
	require.NoError(t, err)

	require.NoError(t, db.CreateRecommendation(ctx, &models.IncidentRecommendation{
		ID:            "rec-closed",
		ApplicationID: &appID,
		Type:          models.RecommendationHighVolume,
		Status:        models.RecommendationResolved,
		Priority:      models.PriorityMedium,
		Title:         "was fixed",
		RootSignal:    "volume",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	report, err := gen.Generate(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.OpenRecommendations)
	assert.Empty(t, report.Applications[0].Recommendations)
}

func TestWriteYAML(t *testing.T) {
	gen, db := newTestGenerator(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.CreateApplication(ctx, &models.Application{Name: "OnlyApp"})
	require.NoError(t, err)

	report, err := gen.Generate(ctx, now)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, gen.WriteYAML(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded PortfolioReport
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "acme", decoded.Client)
	require.Len(t, decoded.Applications, 1)
	assert.Equal(t, "OnlyApp", decoded.Applications[0].Name)
}

func TestWriteYAMLRejectsTraversal(t *testing.T) {
	gen, _ := newTestGenerator(t)

	err := gen.WriteYAML(&PortfolioReport{}, "../../etc/portfolio.yaml")
	assert.Error(t, err)
}
