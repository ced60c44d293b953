package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/codex-contact-directory/internal/app"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/config"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/logging"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no .env file loaded")
		} else {
			slog.Warn("failed to load .env", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded",
		"listen_addr", cfg.Server.ListenAddr,
		"grpc_health_addr", cfg.Server.GRPCHealthAddr,
		"storage_driver", cfg.Storage.Driver,
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"inbox_enabled", cfg.Inbox.Enabled(),
	)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	watcher, err := application.Inbox()
	if err != nil {
		logger.Error("failed to initialize inbox", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, application.Handler(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
