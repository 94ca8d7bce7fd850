package config

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// ProfileConfig points at the backend that serves /api/v1/me.
type ProfileConfig struct {
	// BaseURL disables profile loading when empty.
	BaseURL    string        `env:"API_URL"`
	RolesExpr  string        `env:"ROLES_EXPR"`
	RecentExpr string        `env:"RECENT_EXPR"`
	CacheTTL   time.Duration `env:"CACHE_TTL"   envDefault:"5m"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"10s"`
}

// Enabled reports whether a profile source is configured.
func (c *ProfileConfig) Enabled() bool {
	return c.BaseURL != ""
}

func (c *ProfileConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.RolesExpr = strings.TrimSpace(c.RolesExpr)
	c.RecentExpr = strings.TrimSpace(c.RecentExpr)
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *ProfileConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("PROFILE_API_URL must be an absolute http(s) url")
	}
	return nil
}
