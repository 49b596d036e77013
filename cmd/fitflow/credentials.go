package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/fitflow/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/fitflow/internal/config"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored provider connections",
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connection ids with stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredentialRepo(cmd, func(repo *sqliteadapter.CredentialRepo) error {
			ids, err := repo.ListConnections(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				cmd.Println(id)
			}
			return nil
		})
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete [connection-id]",
	Short: "Delete everything stored for a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentialRepo(cmd, func(repo *sqliteadapter.CredentialRepo) error {
			if err := repo.DeleteConnection(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted credentials for %s\n", args[0])
			return nil
		})
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// withCredentialRepo opens the configured database, migrates it and runs fn
// against the credential repository.
func withCredentialRepo(cmd *cobra.Command, fn func(repo *sqliteadapter.CredentialRepo) error) error {
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

	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	return fn(sqliteadapter.NewCredentialRepo(db, cfg.SecretKey))
}
