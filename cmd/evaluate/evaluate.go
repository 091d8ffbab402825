// Package evaluate implements the evaluate command: the full portfolio
// pipeline of incident linking, pattern analysis, departed-user detection,
// and health scoring.
package evaluate

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/engine"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/pathutil"
)

var (
	configFile string
	dbPath     string
	scoreOnly  bool
)

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the portfolio evaluation pipeline",
		Long: `Run the portfolio evaluation pipeline.

Stages run in order: link imported incidents to applications, mine
incident history for recurring patterns, detect role assignments held by
departed users, then score every application's health and persist a
snapshot per application.`,
		Example: `  # Full pipeline with the default config
  lifecycle evaluate

  # Health scoring only, skipping linking, analysis, and detection
  lifecycle evaluate --score-only`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to database (overrides config)")
	cmd.Flags().BoolVar(&scoreOnly, "score-only", false, "Run only the scoring stage")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, db, err := open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	eng := engine.NewEngine(db, cfg, logger.GetGlobalLogger())
	ctx := cmd.Context()
	asOf := time.Now()

	if scoreOnly {
		scoring, err := eng.ScoreAll(ctx, asOf)
		if err != nil {
			return err
		}
		printScoring(cmd, scoring)
		return nil
	}

	summary, err := eng.Run(ctx, asOf)
	if err != nil {
		return err
	}

	cmd.Printf("Linking: %d linked, %d no match, %d missing reference, %d manual kept\n",
		summary.Linking.Linked, summary.Linking.NoMatch,
		summary.Linking.MissingReference, summary.Linking.Skipped)
	cmd.Printf("Analysis: %d recommendations created, %d refreshed, %d expired\n",
		summary.Analysis.Created, summary.Analysis.Refreshed, summary.Analysis.Expired)
	cmd.Printf("Detection: %d alerts raised, %d already open\n",
		summary.Detection.Created, summary.Detection.AlreadyOpen)
	printScoring(cmd, summary.Scoring)

	return nil
}

func printScoring(cmd *cobra.Command, scoring *engine.ScoreSummary) {
	cmd.Printf("Scoring: %d applications scored\n", scoring.Scored)

	categories := make([]string, 0, len(scoring.ByCategory))
	for category := range scoring.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		cmd.Printf("  %s: %d\n", category, scoring.ByCategory[models.HealthCategory(category)])
	}

	for app, failure := range scoring.Failures {
		cmd.Printf("  FAILED %s: %s\n", app, failure)
	}
}

func open() (*config.Config, *database.DB, error) {
	cfg := config.Default()
	if configFile != "" {
		path, err := pathutil.ValidateConfigPath(configFile)
		if err != nil {
			return nil, nil, err
		}
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, nil, err
		}
	}

	path := dbPath
	if path == "" {
		path = cfg.Database.Path
	}

	db, err := database.New(path)
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}
