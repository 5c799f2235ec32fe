package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the asset schema of the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := serverConfig.Migrate(cmd.Context()); err != nil {
			return err
		}
		slog.Info("schema is up to date", "database", serverConfig.DatabaseURL)
		return nil
	},
}
