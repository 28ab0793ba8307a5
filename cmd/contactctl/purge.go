package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio/backend/internal/maintenance"
)

func newPurgeCmd(e *env) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete archived contacts older than the retention period",
		Long: `Deletes archived contacts created more than --retention ago.
Takes the same Redis lock as the server's purge loop, so it is a no-op
while a replica is purging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("retention") {
				retention = e.cfg.PurgeRetention
			}
			if retention <= 0 {
				return fmt.Errorf("retention must be positive")
			}

			p := maintenance.NewPurger(e.contacts, e.store.PurgeLock(), retention, 0)
			n, ran, err := p.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if !ran {
				fmt.Fprintln(cmd.OutOrStdout(), "purge skipped: another instance holds the lock")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d archived contacts older than %s\n", n, retention)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "minimum age of archived contacts to delete (default PURGE_RETENTION)")
	return cmd
}
