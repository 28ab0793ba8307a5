package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/folio/backend/internal/app"
	"github.com/folio/backend/internal/classifier"
	"github.com/folio/backend/internal/config"
	"github.com/folio/backend/internal/logging"
	"github.com/folio/backend/internal/service"
)

// env is the state shared by every subcommand once the root pre-run has
// opened the store.
type env struct {
	cfg      config.Config
	store    *app.Store
	contacts service.ContactService
	started  time.Time
	runID    uuid.UUID
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "contactctl",
		Short: "Operate the contact form backend",
		Long: `contactctl runs maintenance against the contact store configured
through the same environment variables as the API server.

Examples:
  contactctl stats
  contactctl purge --retention 8760h
  contactctl reclassify --rules rules.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logging.Setup(cfg.LogLevel, "contactctl")

			rulesPath, _ := cmd.Flags().GetString("rules")
			if rulesPath != "" {
				cfg.ClassifierRulesPath = rulesPath
			}
			cls, err := classifier.Load(cfg.ClassifierRulesPath)
			if err != nil {
				return err
			}

			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			e.cfg = cfg
			e.store = store
			e.contacts = service.NewContactService(store.Contacts, cls, nil, service.ContactServiceConfig{
				StoreTimeout: cfg.StoreTimeout,
			})
			e.started = time.Now()
			e.runID = uuid.New()
			slog.Info("command start", "command", cmd.CommandPath(), "run_id", e.runID.String())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.store == nil {
				return
			}
			e.store.Close()
			slog.Info("command end",
				"command", cmd.CommandPath(),
				"run_id", e.runID.String(),
				"duration_ms", time.Since(e.started).Milliseconds(),
			)
		},
	}
	root.SetContext(context.Background())

	root.AddCommand(newStatsCmd(e), newPurgeCmd(e), newReclassifyCmd(e))
	return root
}
