package main

import (
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/database"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const defaultPricingConfig = "config/pricing.yml"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Operator tooling for Creator Studio",
		Long:          "studioctl runs database migrations, inspects and adjusts credit balances and replays stored billing webhooks.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			env.SetupEnvFile()
		},
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newCreditsCmd(),
		newWebhooksCmd(),
	)

	return rootCmd
}

// connect opens the database and loads the pricing tables.
func connect() (*entitlements.Tables, error) {
	database.SetupDatabase()
	return entitlements.LoadTables(env.GetEnv("PRICING_CONFIG", defaultPricingConfig))
}
