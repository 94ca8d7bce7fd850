package config

import "strings"

// DBConfig contains PostgreSQL configuration for the auth audit trail.
type DBConfig struct {
	// Enabled turns the audit trail on. Without it events are only logged.
	Enabled  bool   `env:"ENABLED"                 envDefault:"false"`
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"console_auth"`
	Password string `env:"PASSWORD"                envDefault:"console_auth"`
	Name     string `env:"NAME"                    envDefault:"console_auth"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

func (c *DBConfig) Sanitize() {
	c.Host = strings.TrimSpace(c.Host)
	if c.SSLMode = strings.TrimSpace(c.SSLMode); c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// RedisConfig contains Redis configuration for the profile cache.
type RedisConfig struct {
	// Enabled turns the shared profile cache on.
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"console-auth:profile:"`
}

func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	if c.UseCluster && c.UseSentinel {
		c.UseSentinel = false
	}
}
