package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Apply the PostgreSQL schema. The schema is idempotent and also applied by serve.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := connectPostgres(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			slog.Info("schema applied")
			return nil
		},
	}
}
