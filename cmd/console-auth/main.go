package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/console-auth/config"
	"github.com/target/console-auth/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := bootstrap.InitLogger()
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.SlogLevel())

	logStartupInfo(ctx, logger, &cfg)

	infra, err := bootstrap.ConnectInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	return bootstrap.Run(ctx, bootstrap.RunConfig{
		Config: &cfg,
		Infra:  infra,
		Logger: logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting console-auth",
		"auth_mode", cfg.Auth.Mode,
		"addr", cfg.HTTP.Addr,
		"profile_api", cfg.Profile.Enabled(),
		"postgres", cfg.Postgres.Enabled,
		"redis", cfg.Redis.Enabled,
		"metrics", cfg.Observability.Metrics.IsEnabled(),
		"session_idle_ttl", cfg.Auth.SessionIdleTTL)
}
