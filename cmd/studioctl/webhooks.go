package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/billing"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/database"
)

func newWebhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Work with stored billing webhook events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "replay <event-id>",
		Short: "Reprocess a stored, signature-verified webhook event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			tables, err := connect()
			if err != nil {
				return err
			}

			svc := billing.NewServiceFromDB(database.GetDB(), tables)
			res, err := svc.ReplayWebhookEvent(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "event %d: %s", id, res.Outcome)
			if res.Reason != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), " (%s)", res.Reason)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	})
	return cmd
}
