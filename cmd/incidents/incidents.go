// Package incidents implements the incidents command group: reviewing
// link outcomes and pinning manual links.
package incidents

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/henboffman/lifecycle-tool-sub002/internal/config"
	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/linking"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/pathutil"
)

var (
	configFile string
	dbPath     string
)

// NewIncidentsCommand creates the incidents command group.
func NewIncidentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Review incident link outcomes and pin manual links",
		Example: `  # Show tickets that could not be linked automatically
  lifecycle incidents unmatched

  # Pin a ticket to application 12; survives future automated passes
  lifecycle incidents link INC0042 12

  # Release a manual link so automation can reclassify the ticket
  lifecycle incidents unlink INC0042`,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database (overrides config)")

	cmd.AddCommand(newUnmatchedCommand(), newLinkCommand(), newUnlinkCommand())
	return cmd
}

func newUnmatchedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched",
		Short: "List tickets with no application match",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()
			for _, status := range []models.LinkStatus{models.LinkStatusNoMatch, models.LinkStatusMissingReference} {
				incidents, err := db.ListIncidentsByLinkStatus(ctx, status)
				if err != nil {
					return err
				}
				for _, linked := range incidents {
					cmd.Printf("%s  [%s]  ci=%q  %s\n",
						linked.Incident.TicketNumber, linked.Status,
						linked.Incident.ConfigurationItem, linked.StatusNotes)
				}
			}
			return nil
		},
	}
}

func newLinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link <ticket> <application-id>",
		Short: "Manually link a ticket to an application",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid application id %q", args[1])
			}

			cfg, db, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()
			linked, err := db.GetIncidentByTicket(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading ticket %s: %w", args[0], err)
			}

			linker := linking.NewLinker(db, cfg.Aliases.Applications, logger.GetGlobalLogger())
			if err := linker.ManualLink(ctx, linked, appID, time.Now()); err != nil {
				return err
			}

			cmd.Printf("Linked %s to %s\n", args[0], linked.ApplicationName)
			return nil
		},
	}
}

func newUnlinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <ticket>",
		Short: "Release a manual link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()
			linked, err := db.GetIncidentByTicket(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading ticket %s: %w", args[0], err)
			}

			linker := linking.NewLinker(db, cfg.Aliases.Applications, logger.GetGlobalLogger())
			if err := linker.ClearManualLink(ctx, linked, time.Now()); err != nil {
				return err
			}

			cmd.Printf("Ticket %s is now %s\n", args[0], linked.Status)
			return nil
		},
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
