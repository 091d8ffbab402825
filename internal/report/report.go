// Package report renders portfolio evaluation results as a YAML document
// suitable for dashboards and review meetings.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/pathutil"
)

// PortfolioReport is the top-level export document.
type PortfolioReport struct {
	GeneratedAt  time.Time           `yaml:"generated_at"`
	Client       string              `yaml:"client"`
	Environment  string              `yaml:"environment,omitempty"`
	Summary      Summary             `yaml:"summary"`
	Applications []ApplicationReport `yaml:"applications"`
}

// Summary aggregates portfolio-wide counts.
type Summary struct {
	ByCategory          map[string]int `yaml:"by_category"`
	Applications        int            `yaml:"applications"`
	OpenRecommendations int            `yaml:"open_recommendations"`
	OpenAlerts          int            `yaml:"open_alerts"`
}

// ApplicationReport is one application's section of the export.
type ApplicationReport struct {
	Name            string                  `yaml:"name"`
	Score           int                     `yaml:"score"`
	Category        string                  `yaml:"category"`
	ScoredAt        time.Time               `yaml:"scored_at"`
	SecurityPenalty int                     `yaml:"security_penalty"`
	IncidentPenalty int                     `yaml:"incident_penalty"`
	Recommendations []RecommendationSummary `yaml:"recommendations,omitempty"`
	Alerts          []AlertSummary          `yaml:"alerts,omitempty"`
}

// RecommendationSummary is the reportable slice of a recommendation.
type RecommendationSummary struct {
	Title         string `yaml:"title"`
	Type          string `yaml:"type"`
	Status        string `yaml:"status"`
	Priority      int    `yaml:"priority"`
	Confidence    int    `yaml:"confidence"`
	IncidentCount int    `yaml:"incident_count"`
}

// AlertSummary is the reportable slice of a departed-user alert.
type AlertSummary struct {
	DetectedAt     time.Time `yaml:"detected_at"`
	UnmatchedValue string    `yaml:"unmatched_value"`
	Role           string    `yaml:"role"`
	Status         string    `yaml:"status"`
}

// Generator builds portfolio reports from stored evaluation results.
type Generator struct {
	db     *database.DB
	logger logger.Logger
	client string
	env    string
}

// NewGenerator creates a Generator for the named client portfolio.
func NewGenerator(db *database.DB, client, environment string, log logger.Logger) *Generator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Generator{db: db, client: client, env: environment, logger: log}
}

// Generate assembles the report from the latest snapshot of every
// application. Applications never scored are included with their open
// items but no score section so gaps stay visible.
func (g *Generator) Generate(ctx context.Context, now time.Time) (*PortfolioReport, error) {
	apps, err := g.db.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading applications: %w", err)
	}

	report := &PortfolioReport{
		GeneratedAt: now,
		Client:      g.client,
		Environment: g.env,
		Summary: Summary{
			ByCategory:   make(map[string]int),
			Applications: len(apps),
		},
	}

	for i := range apps {
		section, err := g.applicationSection(ctx, &apps[i])
		if err != nil {
			return nil, err
		}

		report.Summary.ByCategory[section.Category]++
		report.Summary.OpenRecommendations += len(section.Recommendations)
		report.Summary.OpenAlerts += len(section.Alerts)
		report.Applications = append(report.Applications, *section)
	}

	// Worst scores first so the review starts with the problems.
	sort.SliceStable(report.Applications, func(i, j int) bool {
		return report.Applications[i].Score < report.Applications[j].Score
	})

	return report, nil
}

func (g *Generator) applicationSection(ctx context.Context, app *models.Application) (*ApplicationReport, error) {
	section := &ApplicationReport{Name: app.Name}

	snapshot, err := g.db.LatestHealthSnapshot(ctx, app.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		g.logger.Warn("Application has no health snapshot", "application", app.Name)
	case err != nil:
		return nil, fmt.Errorf("loading snapshot for %s: %w", app.Name, err)
	default:
		section.Score = snapshot.FinalScore
		section.Category = string(snapshot.Category)
		section.ScoredAt = snapshot.ComputedAt
		section.SecurityPenalty = snapshot.SecurityPenalty
		section.IncidentPenalty = snapshot.IncidentPenalty
	}

	recs, err := g.db.ListRecommendationsByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading recommendations for %s: %w", app.Name, err)
	}
	for i := range recs {
		if !recs[i].Status.Open() {
			continue
		}
		section.Recommendations = append(section.Recommendations, RecommendationSummary{
			Title:         recs[i].Title,
			Type:          string(recs[i].Type),
			Status:        string(recs[i].Status),
			Priority:      recs[i].Priority,
			Confidence:    recs[i].Confidence,
			IncidentCount: recs[i].IncidentCount,
		})
	}

	alerts, err := g.db.ListAlertsByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading alerts for %s: %w", app.Name, err)
	}
	for i := range alerts {
		if alerts[i].Status != models.AlertOpen && alerts[i].Status != models.AlertAcknowledged {
			continue
		}
		section.Alerts = append(section.Alerts, AlertSummary{
			DetectedAt:     alerts[i].DetectedAt,
			UnmatchedValue: alerts[i].UnmatchedValue,
			Role:           alerts[i].RoleType,
			Status:         string(alerts[i].Status),
		})
	}

	return section, nil
}

// WriteYAML renders the report to a YAML file after validating the
// output path.
func (g *Generator) WriteYAML(report *PortfolioReport, path string) error {
	validPath, err := pathutil.ValidateOutputPath(path)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := os.WriteFile(validPath, data, 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	g.logger.Info("Report written", "path", validPath, "applications", len(report.Applications))
	return nil
}
