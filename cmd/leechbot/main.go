package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/italolelis/leechbot/internal/bot"
	"github.com/italolelis/leechbot/internal/cleanup"
	"github.com/italolelis/leechbot/internal/config"
	"github.com/italolelis/leechbot/internal/downloader"
	"github.com/italolelis/leechbot/internal/http/rest"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/notifier"
	"github.com/italolelis/leechbot/internal/policy"
	"github.com/italolelis/leechbot/internal/relay"
	"github.com/italolelis/leechbot/internal/telegram/botapi"
	"github.com/italolelis/leechbot/internal/telegram/userbot"
	"github.com/italolelis/leechbot/internal/telemetry"
	"github.com/italolelis/leechbot/internal/upload"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const userbotWarmupTimeout = time.Minute

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := logctx.NewJSONLogger(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("leechbot starting...", "version", version, "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		logger.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Prepare Download Directory
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	removed, err := cleanup.SweepWorkspaces(ctx, cfg.DownloadDir, relay.WorkspacePrefix, cfg.SweepStaleAfter)
	if err != nil {
		logger.Warn("failed to sweep orphaned workspaces", "err", err)
	} else if removed > 0 {
		logger.Info("swept orphaned workspaces", "count", removed)
	}

	// =========================================================================
	// Start Bot API Client
	botClient, err := botapi.New(
		cfg.BotToken,
		cfg.BotAPIEndpoint,
		&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("authorized on bot account", "username", botClient.Username())

	g, gctx := errgroup.WithContext(ctx)

	// =========================================================================
	// Start Elevated Uploader
	var elevated upload.Uploader

	if cfg.ElevatedConfigured() {
		ub, err := startUserbot(gctx, g, cfg)
		if err != nil {
			return err
		}

		elevated = upload.NewInstrumentedUploader(ub, tel, upload.Elevated)
	}

	router, err := upload.NewRouter(upload.NewInstrumentedUploader(botClient, tel, upload.Primary), elevated)
	if err != nil {
		return err
	}

	identity, _ := router.Select()

	// =========================================================================
	// Start Relay Handler
	handler, err := relay.NewHandler(
		relay.Settings{
			DownloadDir:      cfg.DownloadDir,
			Ceiling:          cfg.MaxBytes(),
			AllowList:        policy.NewAllowList(cfg.AllowedChats),
			ProgressInterval: cfg.ProgressInterval,
		},
		botClient,
		downloader.NewFetcher(cfg.ConnectTimeout, cfg.ReadTimeout),
		router,
		buildRelayOptions(cfg, tel)...,
	)
	if err != nil {
		return fmt.Errorf("failed to build relay handler: %w", err)
	}

	dispatcher := bot.NewDispatcher(handler, botClient.Username(), tel)

	// =========================================================================
	// Start Ops API
	server := setupServer(ctx, cfg, rest.NewOpsHandler(botClient.Username(), identity, tel))

	g.Go(func() error {
		logger.Info("Initializing ops API", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("start shutdown")
		botClient.Stop()

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	// =========================================================================
	// Start Main Loop
	g.Go(func() error {
		logger.Info("waiting for commands...",
			"download_dir", cfg.DownloadDir,
			"max_size_mb", cfg.MaxSizeMB,
			"upload_identity", identity.String(),
			"allowed_chats", len(cfg.AllowedChats),
		)

		return dispatcher.Run(gctx, botClient.Updates())
	})

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
	defer cancel()

	if derr := dispatcher.Wait(drainCtx); derr != nil {
		logger.Warn("in-flight jobs did not finish before shutdown", "err", derr)
	}

	return err
}

func startUserbot(ctx context.Context, g *errgroup.Group, cfg *config.Config) (*userbot.Client, error) {
	logger := logctx.LoggerFromContext(ctx)

	ub, err := userbot.New(userbot.Config{
		AppID:         cfg.APIID,
		AppHash:       cfg.APIHash,
		SessionString: cfg.SessionString,
		UploadThreads: cfg.UploadThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build userbot: %w", err)
	}

	g.Go(func() error {
		return ub.Run(ctx)
	})

	warmupCtx, cancel := context.WithTimeout(ctx, userbotWarmupTimeout)
	defer cancel()

	if err := ub.WaitReady(warmupCtx); err != nil {
		return nil, fmt.Errorf("userbot warmup failed: %w", err)
	}

	logger.Info("userbot connected; large uploads go through the user session")

	return ub, nil
}

func buildRelayOptions(cfg *config.Config, tel *telemetry.Telemetry) []relay.Option {
	opts := []relay.Option{relay.WithTelemetry(tel)}

	if cfg.DiscordWebhookURL != "" {
		opts = append(opts, relay.WithNotifier(notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)))
	}

	return opts
}

// setupServer prepares the ops http server.
func setupServer(ctx context.Context, cfg *config.Config, ops *rest.OpsHandler) *http.Server {
	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      ops.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
