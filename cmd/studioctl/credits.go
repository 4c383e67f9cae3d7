package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/database"
)

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}

func parseAmount(raw string) (int, error) {
	amount, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("amount must be a whole number, got %q", raw)
	}
	return amount, nil
}

func newLedger() (*credits.Ledger, error) {
	tables, err := connect()
	if err != nil {
		return nil, err
	}
	return credits.NewLedgerFromDB(database.GetDB(), tables), nil
}

func newCreditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and adjust credit balances",
	}
	cmd.AddCommand(newCreditsShowCmd(), newCreditsAwardCmd(), newCreditsResetCmd())
	return cmd
}

func newCreditsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print the balance and tier of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			ledger, err := newLedger()
			if err != nil {
				return err
			}

			info, err := ledger.Balance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			max := "unlimited"
			if info.MaxCredits != nil {
				max = strconv.Itoa(*info.MaxCredits)
			}
			reset := "never"
			if info.ResetDate != nil {
				reset = info.ResetDate.UTC().Format("2006-01-02 15:04")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user\t%d\ntier\t%s\ncredits\t%d / %s\nreset\t%s\n", userID, info.Tier, info.Credits, max, reset)
			return nil
		},
	}
}

func newCreditsAwardCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "award <user-id> <amount>",
		Short: "Add a signed amount to a balance",
		Long:  "award adds amount to the balance of a user. Negative amounts are allowed and the balance may go below zero.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			ledger, err := newLedger()
			if err != nil {
				return err
			}

			adj, err := ledger.AdminAdjust(cmd.Context(), userID, amount, reason, 0)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %d: %d -> %d (%+d)\n", userID, adj.PreviousBalance, adj.NewBalance, adj.Amount)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "studioctl", "reason stored with the audit entry")
	return cmd
}

func newCreditsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Reset a balance to the allowance of the user's tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			ledger, err := newLedger()
			if err != nil {
				return err
			}

			info, err := ledger.Balance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			balance, err := ledger.ResetForRenewal(cmd.Context(), userID, info.Tier)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %d: reset to %d (%s)\n", userID, balance, info.Tier)
			return nil
		},
	}
}
