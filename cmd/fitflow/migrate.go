package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/fitflow/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/fitflow/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		db, err := sqliteadapter.NewDB(cmd.Context(), cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		version, err := sqliteadapter.RunMigrations(db.Writer)
		if err != nil {
			return err
		}
		cmd.Printf("database %s at schema version %d\n", cfg.DBPath, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
