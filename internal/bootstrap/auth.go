package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/target/console-auth/config"
	"github.com/target/console-auth/internal/adapters/authroles"
	"github.com/target/console-auth/internal/adapters/cognito"
	"github.com/target/console-auth/internal/adapters/devauth"
	"github.com/target/console-auth/internal/adapters/profileapi"
	redisadapter "github.com/target/console-auth/internal/adapters/redis"
	"github.com/target/console-auth/internal/data"
	"github.com/target/console-auth/internal/observability/metrics"
	"github.com/target/console-auth/internal/observability/statsd"
	"github.com/target/console-auth/internal/ports"
	"github.com/target/console-auth/internal/service"
)

// AuthConfig contains the dependencies for the auth service.
type AuthConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB               // optional; enables the audit trail
	RedisClient redis.UniversalClient // optional; enables the shared profile cache
	Metrics     statsd.Sink           // optional
	Logger      *slog.Logger
}

// BuildAuthService creates the auth service for the configured identity provider.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authCfg := cfg.Config.Auth

	provider, err := buildIdentityProvider(ctx, authCfg, logger)
	if err != nil {
		return nil, err
	}

	var verifier ports.TokenVerifier
	if authCfg.VerifyTokens() {
		v, verr := cognito.NewVerifier(ctx, cognito.VerifierConfig{
			Region:     authCfg.Cognito.Region,
			UserPoolID: authCfg.Cognito.UserPoolID,
			ClientID:   authCfg.Cognito.ClientID,
			IssuerURL:  authCfg.Cognito.IssuerURL,
		})
		if verr != nil {
			return nil, fmt.Errorf("build token verifier: %w", verr)
		}
		verifier = v
	}

	profiles, err := buildProfileLoader(cfg, logger)
	if err != nil {
		return nil, err
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:   provider,
		Verifier:   verifier,
		Profiles:   profiles,
		Roles:      authroles.TierMapper{},
		Observer:   buildObserver(cfg, logger),
		IdleTTL:    authCfg.SessionIdleTTL,
		TotpIssuer: authCfg.TotpIssuer,
		Logger:     logger,
	}), nil
}

//nolint:ireturn // the provider is picked by AUTH_MODE at runtime.
func buildIdentityProvider(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (ports.IdentityProvider, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		users, err := cfg.DevAuth.ParseUsers()
		if err != nil {
			return nil, err
		}
		devUsers := make([]devauth.User, 0, len(users))
		for _, u := range users {
			devUsers = append(devUsers, devauth.User{
				Username:           u.Username,
				Password:           u.Password,
				Email:              u.Email,
				MustChangePassword: u.MustChangePassword,
				SmsCode:            u.SmsCode,
				TotpSecret:         u.TotpSecret,
			})
		}
		logger.Warn("using in-memory dev identity provider", "users", len(devUsers))
		return devauth.NewProvider(devauth.Config{Users: devUsers})

	case config.AuthModeCognito:
		return cognito.NewClient(ctx, cognito.ClientOptions{
			Config: cognito.Config{
				Region:         cfg.Cognito.Region,
				Endpoint:       cfg.Cognito.Endpoint,
				ClientID:       cfg.Cognito.ClientID,
				ClientSecret:   cfg.Cognito.ClientSecret,
				TotpDeviceName: cfg.Cognito.TotpDeviceName,
			},
			Logger: logger,
		})

	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func buildProfileLoader(cfg AuthConfig, logger *slog.Logger) (*service.ProfileLoader, error) {
	pc := cfg.Config.Profile
	if !pc.Enabled() {
		logger.Info("profile loading disabled", "reason", "PROFILE_API_URL not set")
		return nil, nil
	}

	source, err := profileapi.New(profileapi.Options{
		BaseURL:    pc.BaseURL,
		RolesExpr:  pc.RolesExpr,
		RecentExpr: pc.RecentExpr,
		HTTPClient: &http.Client{Timeout: pc.Timeout},
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build profile client: %w", err)
	}

	opts := service.ProfileLoaderOptions{
		Source:   source,
		CacheTTL: pc.CacheTTL,
		Logger:   logger,
	}
	if cfg.RedisClient != nil {
		opts.Cache = redisadapter.NewProfileCacheWithPrefix(cfg.RedisClient, cfg.Config.Redis.KeyPrefix)
	}
	return service.NewProfileLoader(opts), nil
}

//nolint:ireturn // observers fan out behind the port interface.
func buildObserver(cfg AuthConfig, logger *slog.Logger) ports.AuthObserver {
	observers := []ports.AuthObserver{service.LogObserver{Logger: logger}}
	if cfg.DB != nil {
		observers = append(observers, service.NewAuditObserver(service.AuditObserverOptions{
			Sink:   data.NewAuditRepo(cfg.DB),
			Logger: logger,
		}))
	}
	if cfg.Metrics != nil {
		observers = append(observers, metrics.AuthMetrics{Sink: cfg.Metrics})
	}
	return service.MultiObserver(observers...)
}
