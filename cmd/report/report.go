// Package report implements the report command: YAML export of the latest
// portfolio evaluation results.
package report

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/report"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/pathutil"
)

var (
	configFile string
	dbPath     string
	output     string
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the latest portfolio evaluation as YAML",
		Example: `  # Write the portfolio report
  lifecycle report --output portfolio.yaml`,
		RunE: runReport,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to database (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", "portfolio.yaml", "Output file path")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configFile != "" {
		path, err := pathutil.ValidateConfigPath(configFile)
		if err != nil {
			return err
		}
		if cfg, err = config.LoadConfig(path); err != nil {
			return err
		}
	}

	path := dbPath
	if path == "" {
		path = cfg.Database.Path
	}

	db, err := database.New(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	gen := report.NewGenerator(db, cfg.Client.Name, cfg.Client.Environment, logger.GetGlobalLogger())

	doc, err := gen.Generate(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	if err := gen.WriteYAML(doc, output); err != nil {
		return err
	}

	cmd.Printf("Wrote %s: %d applications, %d open recommendations, %d open alerts\n",
		output, doc.Summary.Applications, doc.Summary.OpenRecommendations, doc.Summary.OpenAlerts)
	return nil
}
