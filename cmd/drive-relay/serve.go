package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/drive-relay/internal/adapters/driven/google"
	redisadapter "github.com/custodia-labs/drive-relay/internal/adapters/driven/redis"
	tgclient "github.com/custodia-labs/drive-relay/internal/adapters/driven/telegram"
	"github.com/custodia-labs/drive-relay/internal/adapters/driving/http"
	"github.com/custodia-labs/drive-relay/internal/adapters/driving/telegram"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
	"github.com/custodia-labs/drive-relay/internal/core/services"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the OAuth callback server and the janitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	logger := slog.Default()
	logger.Info("drive-relay starting", "version", version)

	in, err := openInfra(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	// ===== Driven adapters =====
	identity := google.NewOAuthProvider(google.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURI:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
	})
	drive := google.NewDriveClient(google.DriveConfig{})
	bot, err := tgclient.NewClient(tgclient.ClientConfig{
		Token:       cfg.Telegram.BotToken,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: cfg.PollTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// ===== Services =====
	var refreshLock, folderLock driven.DistributedLock
	if cfg.Concurrency.RefreshLock {
		refreshLock = in.lock
	}
	if cfg.Concurrency.FolderLock {
		folderLock = in.lock
	}

	freshness := services.NewFreshness(services.FreshnessConfig{
		Store:        in.credentials,
		Provider:     identity,
		Logger:       logger,
		SingleFlight: cfg.Concurrency.RefreshSingleFlight,
		Lock:         refreshLock,
	})
	authService := services.NewAuthorizationService(services.AuthorizationServiceConfig{
		PendingStore:    in.pending,
		CredentialStore: in.credentials,
		Provider:        identity,
		Logger:          logger,
	})
	uploadService := services.NewUploadService(services.UploadServiceConfig{
		CredentialStore: in.credentials,
		Freshness:       freshness,
		Source:          bot,
		Storage:         drive,
		Logger:          logger,
	})
	folderService := services.NewFolderService(services.FolderServiceConfig{
		CredentialStore: in.credentials,
		Freshness:       freshness,
		Storage:         drive,
		Logger:          logger,
		Lock:            folderLock,
	})
	janitor := services.NewJanitor(services.JanitorConfig{
		Store:    in.pending,
		Lock:     in.lock,
		Logger:   logger,
		Interval: cfg.SweepInterval(),
		TTL:      cfg.PendingTTL(),
	})

	logger.Info("concurrency options",
		"refresh_single_flight", cfg.Concurrency.RefreshSingleFlight,
		"refresh_lock", cfg.Concurrency.RefreshLock,
		"folder_lock", cfg.Concurrency.FolderLock,
	)

	// ===== Driving adapters =====
	var redisPinger http.Pinger
	if in.redisClient != nil {
		redisPinger = redisadapter.NewLock(in.redisClient)
	}
	server := http.NewServer(http.Config{
		Host:    cfg.HTTP.Host,
		Port:    cfg.HTTP.Port,
		Version: version,
		Logger:  logger,
	}, authService, in.db, redisPinger)

	relay := telegram.NewBot(telegram.BotConfig{
		Messenger:     bot,
		Authorization: authService,
		Upload:        uploadService,
		Folder:        folderService,
		Logger:        logger,
		Concurrency:   cfg.Telegram.WorkerConcurrency,
	})

	janitor.Start(ctx)
	defer janitor.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("drive-relay stopped")
	return nil
}
