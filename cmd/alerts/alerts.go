// Package alerts implements the alerts command group: listing and working
// the departed-user alert lifecycle.
package alerts

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
	configFile  string
	dbPath      string
	resolvedBy  string
	replacement string
	notes       string
)

// NewAlertsCommand creates the alerts command group.
func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and work departed-user alerts",
		Example: `  # List alerts requiring action
  lifecycle alerts list

  # Acknowledge, then later resolve with a replacement owner
  lifecycle alerts ack 4f7c...
  lifecycle alerts resolve 4f7c... --by ops.admin --replacement jsmith

  # Close an alert that was a false alarm
  lifecycle alerts false-positive 4f7c... --by ops.admin --notes "service account"`,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database (overrides config)")

	cmd.AddCommand(newListCommand(), newAckCommand(), newResolveCommand(), newFalsePositiveCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open and acknowledged alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			alerts, err := db.ListOpenAlerts(cmd.Context())
			if err != nil {
				return err
			}

			if len(alerts) == 0 {
				cmd.Println("No alerts requiring action")
				return nil
			}

			for _, alert := range alerts {
				cmd.Printf("%s  [%s]  %q as %s on application %d  (detected %s)\n",
					alert.ID, alert.Status, alert.UnmatchedValue, alert.RoleType,
					alert.ApplicationID, alert.DetectedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newAckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <alert-id>",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd, args[0], func(alert *models.DepartedUserAlert, now time.Time) error {
				return alert.Acknowledge(now)
			})
		},
	}
}

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd, args[0], func(alert *models.DepartedUserAlert, now time.Time) error {
				return alert.Resolve(resolvedBy, replacement, notes, now)
			})
		},
	}

	cmd.Flags().StringVar(&resolvedBy, "by", "", "Identity resolving the alert (required)")
	cmd.Flags().StringVar(&replacement, "replacement", "", "Replacement identity, if any")
	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func newFalsePositiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "false-positive <alert-id>",
		Short: "Close an alert as a false positive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd, args[0], func(alert *models.DepartedUserAlert, now time.Time) error {
				return alert.MarkFalsePositive(resolvedBy, notes, now)
			})
		},
	}

	cmd.Flags().StringVar(&resolvedBy, "by", "", "Identity closing the alert (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "Closure notes")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func transition(cmd *cobra.Command, alertID string, apply func(*models.DepartedUserAlert, time.Time) error) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	alert, err := db.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("loading alert %s: %w", alertID, err)
	}

	if err := apply(alert, time.Now()); err != nil {
		return err
	}

	if err := db.UpdateAlert(ctx, alert); err != nil {
		return err
	}

	cmd.Printf("Alert %s is now %s\n", alert.ID, alert.Status)
	return nil
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
