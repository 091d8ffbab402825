// Package main is the entry point for the lifecycle CLI. The tool tracks
// an application portfolio: it ingests incident, role, and directory
// exports, links incidents to applications, mines recurring problem
// patterns, flags departed users, and scores each application's health.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henboffman/lifecycle-tool-sub002/cmd/alerts"
	"github.com/henboffman/lifecycle-tool-sub002/cmd/evaluate"
	"github.com/henboffman/lifecycle-tool-sub002/cmd/imports"
	"github.com/henboffman/lifecycle-tool-sub002/cmd/incidents"
	"github.com/henboffman/lifecycle-tool-sub002/cmd/recommend"
	"github.com/henboffman/lifecycle-tool-sub002/cmd/report"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		debug     bool
		logFormat string
	)

	root := &cobra.Command{
		Use:     "lifecycle",
		Short:   "Portfolio health and anomaly detection engine",
		Version: fmt.Sprintf("%s (built %s)", version, buildTime),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.SetupLogger(debug, logFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	root.AddCommand(
		imports.NewImportCommand(),
		evaluate.NewEvaluateCommand(),
		incidents.NewIncidentsCommand(),
		report.NewReportCommand(),
		alerts.NewAlertsCommand(),
		recommend.NewRecommendCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
