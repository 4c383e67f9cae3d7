package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

func migrationURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "creatorstudio"),
		env.GetEnv("DB_PASSWORD", "creatorstudio"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "creatorstudio_db"),
	)
}

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, error) {
	source, _ := cmd.Flags().GetString("path")
	cmd.Printf("Connecting to %s@%s:%s/%s\n",
		env.GetEnv("DB_USER", "creatorstudio"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "creatorstudio_db"),
	)
	m, err := migrate.New("file://"+source, migrationURL())
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func closeMigrate(cmd *cobra.Command, m *migrate.Migrate) {
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		cmd.PrintErrf("Failed to close migration resources: %v, %v\n", sourceErr, dbErr)
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect SQL migrations",
	}
	cmd.PersistentFlags().String("path", "migrations", "directory holding the migration files")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrate(cmd)
				if err != nil {
					return err
				}
				defer closeMigrate(cmd, m)

				if err := m.Up(); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						cmd.Println("No changes: database is up to date")
						return nil
					}
					return fmt.Errorf("apply migrations: %w", err)
				}
				cmd.Println("Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrate(cmd)
				if err != nil {
					return err
				}
				defer closeMigrate(cmd, m)

				if err := m.Steps(-1); err != nil {
					return fmt.Errorf("roll back last migration: %w", err)
				}
				cmd.Println("Rolled back the last migration")
				return nil
			},
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				m, err := newMigrate(cmd)
				if err != nil {
					return err
				}
				defer closeMigrate(cmd, m)

				if err := m.Migrate(uint(version)); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						cmd.Printf("No changes: database is already at version %d\n", version)
						return nil
					}
					return fmt.Errorf("migrate to version %d: %w", version, err)
				}
				cmd.Printf("Migrated to version %d\n", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrate(cmd)
				if err != nil {
					return err
				}
				defer closeMigrate(cmd, m)

				version, dirty, err := m.Version()
				if err != nil {
					if errors.Is(err, migrate.ErrNilVersion) {
						cmd.Println("No migrations applied yet")
						return nil
					}
					return fmt.Errorf("read migration version: %w", err)
				}
				suffix := ""
				if dirty {
					suffix = " (dirty)"
				}
				cmd.Printf("Current migration version: %d%s\n", version, suffix)
				return nil
			},
		},
	)

	return cmd
}
