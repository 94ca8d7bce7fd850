package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/target/console-auth/config"
	"github.com/target/console-auth/internal/migrate"
)

const (
	connectTimeout = 5 * time.Second

	// Audit inserts are single small rows; the pool stays small.
	auditMaxOpenConns = 4
	auditMaxIdleConns = 2
	auditConnLifetime = 30 * time.Minute

	redisClientName = "console-auth"
)

// OpenAuditDB returns the audit trail database, or nil when DB_ENABLED is off.
// Migrations are applied here when DB_RUN_MIGRATIONS_ON_START is set.
func OpenAuditDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	if !cfg.Enabled {
		logger.InfoContext(ctx, "audit trail disabled", "reason", "DB_ENABLED is false")
		return nil, nil
	}
	db, err := ConnectDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return db, nil
	}
	if err := RunMigrations(ctx, db, logger); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return db, nil
}

// ConnectDB opens and pings the Postgres pool the audit repository writes through.
func ConnectDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresURL(cfg).String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(auditMaxOpenConns)
	db.SetMaxIdleConns(auditMaxIdleConns)
	db.SetConnMaxLifetime(auditConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", errors.Join(err, db.Close()))
	}

	logger.InfoContext(ctx, "database connected",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
	)
	return db, nil
}

// postgresURL builds the DSN with url.URL so credentials are escaped.
func postgresURL(cfg config.DBConfig) *url.URL {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u
}

// RunMigrations applies the embedded audit schema.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.InfoContext(ctx, "database migrations completed")
	return nil
}

// OpenProfileCacheRedis returns the shared profile cache client, or nil when
// REDIS_ENABLED is off.
//
//nolint:ireturn // single, sentinel and cluster clients share redis.UniversalClient.
func OpenProfileCacheRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		logger.InfoContext(ctx, "shared profile cache disabled", "reason", "REDIS_ENABLED is false")
		return nil, nil
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		return nil, errors.New("REDIS_KEY_PREFIX must not be empty")
	}
	return ConnectRedis(ctx, cfg, logger)
}

type redisMode string

const (
	redisSingle   redisMode = "single"
	redisSentinel redisMode = "sentinel"
	redisCluster  redisMode = "cluster"
)

// ConnectRedis dials Redis in the deployment shape the config selects and pings it.
//
//nolint:ireturn // single, sentinel and cluster clients share redis.UniversalClient.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	opts, mode, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch mode {
	case redisCluster:
		client = redis.NewClusterClient(opts.Cluster())
	case redisSentinel:
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis (%s): %w", mode, errors.Join(err, client.Close()))
	}

	// Addrs never carry credentials; URL userinfo is split out by applyRedisURI.
	logger.InfoContext(ctx, "redis connected", "mode", mode, "addrs", opts.Addrs, "key_prefix", cfg.KeyPrefix)
	return client, nil
}

// redisOptions folds the three deployment shapes into one UniversalOptions.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, redisMode, error) {
	opts := &redis.UniversalOptions{
		ClientName: redisClientName,
		Password:   cfg.Password,
	}

	switch {
	case cfg.UseSentinel:
		opts.Addrs = nonEmpty(cfg.SentinelNodes)
		opts.MasterName = strings.TrimSpace(cfg.SentinelMasterName)
		opts.SentinelPassword = cfg.SentinelPassword
		if len(opts.Addrs) == 0 || opts.MasterName == "" {
			return nil, "", errors.New("redis sentinel mode requires sentinel nodes and a master name")
		}
		return opts, redisSentinel, nil

	case cfg.UseCluster:
		opts.Addrs = nonEmpty(cfg.ClusterNodes)
		if len(opts.Addrs) == 0 {
			// A single seed node may be given as the URI instead.
			if err := applyRedisURI(opts, cfg.URI); err != nil {
				return nil, "", err
			}
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis cluster mode requires at least one node")
		}
		return opts, redisCluster, nil

	default:
		if err := applyRedisURI(opts, cfg.URI); err != nil {
			return nil, "", err
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis URI is required")
		}
		return opts, redisSingle, nil
	}
}

// applyRedisURI accepts host:port or a redis:// / rediss:// URL.
func applyRedisURI(opts *redis.UniversalOptions, uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return nil
}

func nonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
