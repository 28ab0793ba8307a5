package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReclassifyCmd(e *env) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Recompute tags and priority for contacts classified by older rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch < 1 {
				return fmt.Errorf("batch must be at least 1")
			}
			n, err := e.contacts.Reclassify(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclassified %d contacts\n", n)
			return nil
		},
	}
	cmd.Flags().String("rules", "", "YAML rules file (default CLASSIFIER_RULES_PATH)")
	cmd.Flags().IntVar(&batch, "batch", 100, "contacts fetched per store round trip")
	return cmd
}
