package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d3i-infra/port-google-home/internal/infrastructure/repository/postgres"
)

func newDonationsCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "donations <session-id>",
		Short: "List every persisted donation of one session, data donations included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--dsn or POSTGRES_DSN is required")
			}
			db, err := postgres.OpenDB(dsn)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()

			donations, err := postgres.NewDonationRepository(db, nil).ListBySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, donations)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres connection string")
	return cmd
}
