package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drive-relay/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded by the root PersistentPreRunE.
var cfg *config.Config

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "drive-relay",
		Short:         "Relay Telegram files to Google Drive",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			slog.SetDefault(cfg.NewLogger(os.Stderr))
			return nil
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("drive-relay " + version)
		},
	}
}
