// Package recommend implements the recommendations command group: listing
// generated recommendations and moving them through their lifecycle.
package recommend

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/pathutil"
)

var (
	configFile string
	dbPath     string
)

// NewRecommendCommand creates the recommendations command group.
func NewRecommendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recommendations",
		Aliases: []string{"recs"},
		Short:   "List and work improvement recommendations",
		Example: `  # List open recommendations by priority
  lifecycle recommendations list

  # Start working one, then resolve it
  lifecycle recommendations start 7b2e...
  lifecycle recommendations resolve 7b2e...

  # Dismiss one that does not apply
  lifecycle recommendations dismiss 7b2e...`,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database (overrides config)")

	cmd.AddCommand(
		newListCommand(),
		newTransitionCommand("start", "Mark a recommendation as in progress", models.RecommendationInProgress),
		newTransitionCommand("resolve", "Mark a recommendation as resolved", models.RecommendationResolved),
		newTransitionCommand("dismiss", "Dismiss a recommendation", models.RecommendationDismissed),
	)

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open recommendations, highest priority first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			recs, err := db.ListOpenRecommendations(cmd.Context())
			if err != nil {
				return err
			}

			if len(recs) == 0 {
				cmd.Println("No open recommendations")
				return nil
			}

			for _, rec := range recs {
				cmd.Printf("%s  P%d [%s] %s  (%s, %d incidents, confidence %d%%)\n",
					rec.ID, rec.Priority, rec.Status, rec.Title,
					rec.Type, rec.IncidentCount, rec.Confidence)
			}
			return nil
		},
	}
}

func newTransitionCommand(use, short string, target models.RecommendationStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <recommendation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()
			rec, err := db.GetRecommendation(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading recommendation %s: %w", args[0], err)
			}

			if err := rec.Transition(target, time.Now()); err != nil {
				return err
			}

			if err := db.UpdateRecommendation(ctx, rec); err != nil {
				return err
			}

			cmd.Printf("Recommendation %s is now %s\n", rec.ID, rec.Status)
			return nil
		},
	}
}

func openDatabase() (*database.DB, error) {
	cfg := config.Default()
	if configFile != "" {
		path, err := pathutil.ValidateConfigPath(configFile)
		if err != nil {
			return nil, err
		}
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	path := dbPath
	if path == "" {
		path = cfg.Database.Path
	}

	return database.New(path)
}
