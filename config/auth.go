package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider the application talks to.
type AuthMode string

const (
	// AuthModeCognito uses an AWS Cognito user pool.
	AuthModeCognito AuthMode = "cognito"
	// AuthModeMock uses the in-memory dev provider (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "cognito", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: cognito, mock)", v)
	}
}

// CognitoConfig contains user pool app client configuration.
type CognitoConfig struct {
	Region       string `env:"REGION"        envDefault:"ap-northeast-2"`
	Endpoint     string `env:"ENDPOINT"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// UserPoolID enables ID token signature verification when set.
	UserPoolID string `env:"USER_POOL_ID"`
	// IssuerURL overrides the issuer derived from region and pool (emulators).
	IssuerURL      string `env:"ISSUER_URL"`
	TotpDeviceName string `env:"TOTP_DEVICE_NAME" envDefault:"console"`
}

// DevAuthConfig scripts the accounts of the mock provider.
// Users are separated by ';' and written as name:password[:option...] where
// options are rotate, email=..., sms=CODE and totp=BASE32SECRET.
type DevAuthConfig struct {
	Users []string `env:"USERS" envDefault:"dev:devpassword" envSeparator:";"`
}

// DevUser is one parsed DEV_AUTH_USERS entry.
type DevUser struct {
	Username           string
	Password           string
	Email              string
	MustChangePassword bool
	SmsCode            string
	TotpSecret         string
}

// ParseUsers parses Users into DevUser values.
func (c DevAuthConfig) ParseUsers() ([]DevUser, error) {
	out := make([]DevUser, 0, len(c.Users))
	for _, raw := range c.Users {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := parseDevUser(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func parseDevUser(raw string) (DevUser, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return DevUser{}, fmt.Errorf("dev auth user %q: want name:password[:option...]", parts[0])
	}
	u := DevUser{Username: parts[0], Password: parts[1]}
	for _, opt := range parts[2:] {
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "rotate":
			u.MustChangePassword = true
		case "email":
			u.Email = val
		case "sms":
			u.SmsCode = val
		case "totp":
			u.TotpSecret = val
		default:
			return DevUser{}, fmt.Errorf("dev auth user %q: unknown option %q", u.Username, key)
		}
	}
	return u, nil
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"cognito"`

	Cognito CognitoConfig `envPrefix:"COGNITO_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// SessionIdleTTL evicts sessions nobody has touched for this long.
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// TotpIssuer labels provisioning URIs in authenticator apps.
	TotpIssuer string `env:"TOTP_ISSUER" envDefault:"Console"`
}

// Sanitize trims values and clamps the idle TTL.
func (c *AuthConfig) Sanitize() {
	c.Cognito.Region = strings.TrimSpace(c.Cognito.Region)
	c.Cognito.Endpoint = strings.TrimRight(strings.TrimSpace(c.Cognito.Endpoint), "/")
	c.Cognito.ClientID = strings.TrimSpace(c.Cognito.ClientID)
	c.Cognito.UserPoolID = strings.TrimSpace(c.Cognito.UserPoolID)
	if c.SessionIdleTTL < time.Minute {
		c.SessionIdleTTL = time.Minute
	}
	if c.TotpIssuer = strings.TrimSpace(c.TotpIssuer); c.TotpIssuer == "" {
		c.TotpIssuer = "Console"
	}
}

// VerifyTokens reports whether ID token signatures should be checked.
func (c *AuthConfig) VerifyTokens() bool {
	return c.Mode == AuthModeCognito && (c.Cognito.UserPoolID != "" || c.Cognito.IssuerURL != "")
}

// Validate checks the settings the selected mode needs.
func (c *AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeCognito:
		if c.Cognito.ClientID == "" {
			return errors.New("COGNITO_CLIENT_ID is required when AUTH_MODE=cognito")
		}
		if c.Cognito.Region == "" {
			return errors.New("COGNITO_REGION is required when AUTH_MODE=cognito")
		}
	case AuthModeMock:
		users, err := c.DevAuth.ParseUsers()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return errors.New("DEV_AUTH_USERS needs at least one user when AUTH_MODE=mock")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Mode)
	}
	return nil
}
