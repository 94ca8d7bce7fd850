package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CSRFEnabled turns on double-submit cookie checks for state-changing requests.
	CSRFEnabled bool `env:"HTTP_CSRF_ENABLED" envDefault:"true"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"15s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
}

// Validate rejects cookie domains that browsers would treat as a public suffix.
func (h *HTTPConfig) Validate() error {
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(h.CookieDomain); err != nil {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is not a registrable domain: %w", h.CookieDomain, err)
	}
	return nil
}
