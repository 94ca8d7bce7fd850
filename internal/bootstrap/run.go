package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/console-auth/config"
	httpx "github.com/target/console-auth/internal/http"
	"github.com/target/console-auth/internal/observability/statsd"
	"github.com/target/console-auth/internal/service"
)

// sweepInterval controls how often idle sessions are evicted in the background.
const sweepInterval = time.Minute

// Infrastructure holds the optional backing services.
type Infrastructure struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Metrics     *statsd.Client
}

// ConnectInfrastructure connects whatever the config enables. The caller closes it.
func ConnectInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}

	db, err := OpenAuditDB(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	infra.DB = db

	redisClient, err := OpenProfileCacheRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis: %w", err), infra.Close())
	}
	infra.RedisClient = redisClient

	m := cfg.Observability.Metrics
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    m.IsEnabled(),
		Address:    m.StatsdAddress,
		Prefix:     m.Prefix,
		GlobalTags: m.Tags,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect statsd: %w", err), infra.Close())
	}
	infra.Metrics = client

	return infra, nil
}

// ReadyChecks returns a check per connected dependency.
func (i *Infrastructure) ReadyChecks() []httpx.ReadyCheck {
	var checks []httpx.ReadyCheck
	if i.DB != nil {
		checks = append(checks, httpx.ReadyCheck{Name: "postgres", Check: i.DB.PingContext})
	}
	if i.RedisClient != nil {
		checks = append(checks, httpx.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return i.RedisClient.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close releases every connection that was opened.
func (i *Infrastructure) Close() error {
	var errs []error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if i.RedisClient != nil {
		if err := i.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.Metrics != nil {
		if err := i.Metrics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd: %w", err))
		}
	}
	return errors.Join(errs...)
}

// metricsSink returns nil when metrics are off so no typed-nil reaches the observer chain.
func (i *Infrastructure) metricsSink() statsd.Sink {
	if i.Metrics == nil || !i.Metrics.Enabled() {
		return nil
	}
	return i.Metrics
}

// RunConfig contains everything Run needs.
type RunConfig struct {
	Config *config.AppConfig
	Infra  *Infrastructure
	Logger *slog.Logger
}

// Run serves HTTP and sweeps idle sessions until ctx is canceled or a component fails.
func Run(ctx context.Context, cfg RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	infra := cfg.Infra
	if infra == nil {
		infra = &Infrastructure{}
	}

	authSvc, err := BuildAuthService(ctx, AuthConfig{
		Config:      cfg.Config,
		DB:          infra.DB,
		RedisClient: infra.RedisClient,
		Metrics:     infra.metricsSink(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}

	server := NewHTTPServer(&HTTPServerConfig{
		Config:      cfg.Config,
		Auth:        authSvc,
		ReadyChecks: infra.ReadyChecks(),
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, server, cfg.Config.HTTP.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		sweepSessions(gctx, authSvc, logger)
		return nil
	})
	err = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if cerr := authSvc.Close(flushCtx); cerr != nil {
		logger.Warn("auth service close", "error", cerr)
	}
	return err
}

func sweepSessions(ctx context.Context, svc *service.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.SweepIdle(); n > 0 {
				logger.DebugContext(ctx, "evicted idle sessions", "count", n)
			}
		}
	}
}
