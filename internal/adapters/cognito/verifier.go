package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

// VerifierConfig configures ID token signature verification.
type VerifierConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	// IssuerURL overrides the issuer derived from region and pool (used with emulators).
	IssuerURL string
	// KeySet overrides the remote JWKS. Tests pass a gooidc.StaticKeySet.
	KeySet gooidc.KeySet
}

// Issuer returns the user pool issuer URL.
func (c VerifierConfig) Issuer() string {
	if c.IssuerURL != "" {
		return strings.TrimSuffix(c.IssuerURL, "/")
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// Verifier checks ID token signatures against the user pool JWKS.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

var _ ports.TokenVerifier = (*Verifier)(nil)

// NewVerifier builds a verifier without contacting the issuer; keys are fetched lazily
// on first verification and cached by go-oidc.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.IssuerURL == "" && (cfg.Region == "" || cfg.UserPoolID == "") {
		return nil, apperrors.Configuration("user pool id and region are required for token verification")
	}
	if cfg.ClientID == "" {
		return nil, apperrors.Configuration("cognito client id is required for token verification")
	}
	issuer := cfg.Issuer()
	keys := cfg.KeySet
	if keys == nil {
		keys = gooidc.NewRemoteKeySet(ctx, issuer+"/.well-known/jwks.json")
	}
	return &Verifier{
		verifier: gooidc.NewVerifier(issuer, keys, &gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// VerifyIDToken checks signature, issuer, audience, and expiry.
func (v *Verifier) VerifyIDToken(ctx context.Context, rawIDToken string) error {
	if rawIDToken == "" {
		return apperrors.TokenDecode("id token is empty", nil)
	}
	if _, err := v.verifier.Verify(ctx, rawIDToken); err != nil {
		var expired *gooidc.TokenExpiredError
		if errors.As(err, &expired) {
			return apperrors.AuthFailed(apperrors.ReasonCredentials, err)
		}
		return apperrors.TokenDecode("id token failed verification", err)
	}
	return nil
}
