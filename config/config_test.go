package config

import (
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "Cognito")
	t.Setenv("COGNITO_REGION", "us-east-1")
	t.Setenv("COGNITO_ENDPOINT", "http://localhost:9229/")
	t.Setenv("COGNITO_CLIENT_ID", "app-client")
	t.Setenv("COGNITO_CLIENT_SECRET", "super-secret")
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_abc")
	t.Setenv("SESSION_IDLE_TTL", "45m")
	t.Setenv("DEV_AUTH_USERS", "alice:pw1;bob:pw2:rotate")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		Mode: AuthModeCognito,
		Cognito: CognitoConfig{
			Region:         "us-east-1",
			Endpoint:       "http://localhost:9229",
			ClientID:       "app-client",
			ClientSecret:   "super-secret",
			UserPoolID:     "us-east-1_abc",
			TotpDeviceName: "console",
		},
		DevAuth:        DevAuthConfig{Users: []string{"alice:pw1", "bob:pw2:rotate"}},
		SessionIdleTTL: 45 * time.Minute,
		TotpIssuer:     "Console",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if !cfg.Auth.VerifyTokens() {
		t.Fatal("expected token verification with a user pool id")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeCognito {
		t.Fatalf("expected cognito mode by default, got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Cognito.Region != "ap-northeast-2" {
		t.Fatalf("expected default region ap-northeast-2, got %q", cfg.Auth.Cognito.Region)
	}
	if cfg.Auth.SessionIdleTTL != 30*time.Minute {
		t.Fatalf("expected 30m idle ttl, got %v", cfg.Auth.SessionIdleTTL)
	}
	if cfg.Profile.Enabled() || cfg.Postgres.Enabled || cfg.Redis.Enabled {
		t.Fatal("expected optional backends to be off by default")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "COGNITO_CLIENT_ID") {
		t.Fatalf("expected missing client id error, got %v", err)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte(" MOCK ")); err != nil || m != AuthModeMock {
		t.Fatalf("expected mock, got %q (%v)", m, err)
	}
	if err := m.UnmarshalText([]byte("oauth")); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestDevAuthConfig_ParseUsers(t *testing.T) {
	cfg := DevAuthConfig{Users: []string{
		"alice:pw1",
		" bob:pw2:rotate:email=bob@example.com ",
		"carol:pw3:sms=123456:totp=JBSWY3DPEHPK3PXP",
		"",
	}}

	users, err := cfg.ParseUsers()
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}
	expected := []DevUser{
		{Username: "alice", Password: "pw1"},
		{Username: "bob", Password: "pw2", MustChangePassword: true, Email: "bob@example.com"},
		{Username: "carol", Password: "pw3", SmsCode: "123456", TotpSecret: "JBSWY3DPEHPK3PXP"},
	}
	if !reflect.DeepEqual(users, expected) {
		t.Fatalf("unexpected users:\nexpected: %#v\ngot:      %#v", expected, users)
	}

	for _, bad := range []string{"nopassword", ":pw", "dave:pw:bogus"} {
		if _, err := (DevAuthConfig{Users: []string{bad}}).ParseUsers(); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAuthConfig_ValidateMock(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeMock, DevAuth: DevAuthConfig{Users: []string{"dev:pw"}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid mock config, got %v", err)
	}
	if cfg.VerifyTokens() {
		t.Fatal("mock mode never verifies signatures")
	}

	cfg.DevAuth.Users = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without dev users")
	}
}

func TestAuthConfig_SanitizeClampsIdleTTL(t *testing.T) {
	cfg := AuthConfig{SessionIdleTTL: time.Second, TotpIssuer: "  "}
	cfg.Sanitize()
	if cfg.SessionIdleTTL != time.Minute {
		t.Fatalf("expected idle ttl clamped to 1m, got %v", cfg.SessionIdleTTL)
	}
	if cfg.TotpIssuer != "Console" {
		t.Fatalf("expected default issuer, got %q", cfg.TotpIssuer)
	}
}

func TestProfileConfig_Validate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"", false},
		{"https://api.example.com/", false},
		{"http://localhost:3000", false},
		{"api.example.com", true},
		{"ftp://api.example.com", true},
	}
	for _, tt := range tests {
		cfg := ProfileConfig{BaseURL: tt.url}
		cfg.Sanitize()
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("url %q: expected error=%v, got %v", tt.url, tt.wantErr, err)
		}
	}
}

func TestHTTPConfig_CookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"localhost", "localhost", false},
		{".Example.com", "example.com", false},
		{"console.example.co.uk", "console.example.co.uk", false},
		{"com", "com", true},
		{"co.uk", "co.uk", true},
	}
	for _, tt := range tests {
		cfg := HTTPConfig{CookieDomain: tt.domain}
		cfg.Sanitize()
		if cfg.CookieDomain != tt.want {
			t.Fatalf("domain %q: expected %q after sanitize, got %q", tt.domain, tt.want, cfg.CookieDomain)
		}
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("domain %q: expected error=%v, got %v", tt.domain, tt.wantErr, err)
		}
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "console_auth" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
}

func TestObservabilityMetricsConfig_ParseTags(t *testing.T) {
	t.Setenv("OBSERVABILITY_METRICS_TAGS", "env:prod,region:kr")

	var cfg ObservabilityConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	expected := map[string]string{"env": "prod", "region": "kr"}
	if !reflect.DeepEqual(cfg.Metrics.Tags, expected) {
		t.Fatalf("unexpected tags: %#v", cfg.Metrics.Tags)
	}
}
