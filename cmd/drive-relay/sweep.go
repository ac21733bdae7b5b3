package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drive-relay/internal/core/services"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove abandoned pending authorizations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.Database.URL == "" || cfg.Security.EncryptionKey == "" {
				return errors.New("DATABASE_URL and ENCRYPTION_KEY are required")
			}

			in, err := openInfra(ctx)
			if err != nil {
				return err
			}
			defer in.Close()

			janitor := services.NewJanitor(services.JanitorConfig{
				Store:  in.pending,
				Lock:   in.lock,
				Logger: slog.Default(),
				TTL:    cfg.PendingTTL(),
			})
			removed, err := janitor.Sweep(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("removed %d abandoned pending authorizations\n", removed)
			return nil
		},
	}
}
