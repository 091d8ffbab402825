// Package engine orchestrates full portfolio evaluation runs: incident
// linking, pattern analysis, departed-user detection, and health scoring.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/analysis"
	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/detector"
	"github.com/henboffman/lifecycle-tool-sub002/internal/directory"
	"github.com/henboffman/lifecycle-tool-sub002/internal/health"
	"github.com/henboffman/lifecycle-tool-sub002/internal/linking"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

// Engine wires the evaluation stages together over a shared database.
type Engine struct {
	db         *database.DB
	config     *config.Config
	logger     logger.Logger
	maxWorkers int
}

// NewEngine creates an Engine from loaded configuration.
func NewEngine(db *database.DB, cfg *config.Config, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		db:         db,
		config:     cfg,
		logger:     log,
		maxWorkers: cfg.Analysis.MaxWorkers,
	}
}

// RunSummary aggregates the outcome of a full evaluation run.
type RunSummary struct {
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Linking   *linking.Summary  `json:"linking,omitempty"`
	Analysis  *analysis.Result  `json:"analysis,omitempty"`
	Detection *detector.Summary `json:"detection,omitempty"`
	Scoring   *ScoreSummary     `json:"scoring,omitempty"`
}

// ScoreSummary reports a scoring pass over the portfolio.
type ScoreSummary struct {
	ByCategory map[models.HealthCategory]int `json:"by_category"`
	Failures   map[string]string             `json:"failures,omitempty"`
	Scored     int                           `json:"scored"`
}

// Run executes the full pipeline as of the given time. Stages run in
// dependency order; a stage failure aborts the run but keeps the work
// already committed by earlier stages.
func (e *Engine) Run(ctx context.Context, asOf time.Time) (*RunSummary, error) {
	summary := &RunSummary{StartTime: time.Now()}

	linker := linking.NewLinker(e.db, e.config.Aliases.Applications, e.logger)
	linkSummary, err := linker.LinkAll(ctx, asOf)
	summary.Linking = linkSummary
	if err != nil {
		return summary, fmt.Errorf("linking stage: %w", err)
	}

	analyzer := analysis.NewAnalyzer(e.db, analysis.OptionsFromConfig(e.config.Analysis), e.logger)
	analysisResult, err := analyzer.Run(ctx, asOf)
	summary.Analysis = analysisResult
	if err != nil {
		return summary, fmt.Errorf("analysis stage: %w", err)
	}

	users, err := e.db.ListDirectoryUsers(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading directory: %w", err)
	}
	matcher := directory.NewMatcher(users, e.config.Aliases.Identities, directory.WithLogger(e.logger))

	det := detector.NewDetector(e.db, matcher, e.logger)
	detection, err := det.Detect(ctx, asOf)
	summary.Detection = detection
	if err != nil {
		return summary, fmt.Errorf("detection stage: %w", err)
	}

	scoring, err := e.ScoreAll(ctx, asOf)
	summary.Scoring = scoring
	if err != nil {
		return summary, fmt.Errorf("scoring stage: %w", err)
	}

	summary.EndTime = time.Now()
	return summary, nil
}

// ScoreAll scores every application using a worker pool and persists one
// snapshot per application. Individual failures are recorded in the
// summary without aborting the rest of the portfolio.
func (e *Engine) ScoreAll(ctx context.Context, asOf time.Time) (*ScoreSummary, error) {
	apps, err := e.db.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading applications: %w", err)
	}

	summary := &ScoreSummary{
		ByCategory: make(map[models.HealthCategory]int),
		Failures:   make(map[string]string),
	}

	type scoreResult struct {
		breakdown *models.HealthScoreBreakdown
		appName   string
		err       error
	}

	jobs := make(chan models.Application, len(apps))
	results := make(chan scoreResult, len(apps))

	var wg sync.WaitGroup
	for i := 0; i < e.maxWorkers && i < len(apps); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for app := range jobs {
				breakdown, err := e.ScoreApplication(ctx, &app, asOf)
				select {
				case results <- scoreResult{breakdown: breakdown, appName: app.Name, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		for _, app := range apps {
			select {
			case jobs <- app:
			case <-ctx.Done():
				close(jobs)
				return
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		if result.err != nil {
			e.logger.Error("Scoring failed", "application", result.appName, "error", result.err)
			summary.Failures[result.appName] = result.err.Error()
			continue
		}
		summary.Scored++
		summary.ByCategory[result.breakdown.Category]++
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	e.logger.Info("Scoring pass complete",
		"scored", summary.Scored,
		"failed", len(summary.Failures),
	)

	return summary, nil
}

// ScoreApplication assembles scoring inputs for one application, computes
// the breakdown, and persists it as a snapshot.
func (e *Engine) ScoreApplication(ctx context.Context, app *models.Application, asOf time.Time) (*models.HealthScoreBreakdown, error) {
	findings, err := e.db.ListFindingsByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}

	incidents, err := e.db.ListIncidentsByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading incidents: %w", err)
	}

	tasks, err := e.db.ListTasksByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	analyzer := analysis.NewAnalyzer(nil, analysis.OptionsFromConfig(e.config.Analysis), e.logger)

	inputs := health.ScoreInputs{
		ApplicationID:          app.ID,
		AsOf:                   asOf,
		SecurityCounts:         models.CountBySeverity(findings),
		Incidents:              analyzer.Summarize(incidents, asOf),
		UsageLevel:             app.UsageLevel,
		LastRepositoryActivity: app.LastRepositoryActivity,
		OverdueTasks:           models.CountOverdue(tasks, asOf),
		DataConflicts:          app.DataConflictCount,
	}
	// Zero percent is indistinguishable from untracked in the inventory;
	// treat it as untracked rather than penalizing missing data.
	if app.DocumentationPercent > 0 {
		docs := app.DocumentationPercent
		inputs.DocumentationPercent = &docs
	}

	breakdown := health.Score(inputs)

	if _, err := e.db.InsertHealthSnapshot(ctx, breakdown); err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}

	return breakdown, nil
}
