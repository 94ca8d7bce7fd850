// Package tokenclaims decodes identity claims from provider-issued JWTs without
// verifying signatures. Signature checks, when enabled, happen in the provider adapter.
package tokenclaims

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
)

const (
	claimProviderUsername = "cognito:username"
	claimUsername         = "username"
	claimSubject          = "sub"
	claimEmail            = "email"
)

// Decode returns the payload claims of a three-segment token. Only the middle
// segment is read; the header and signature are ignored.
// Any structural problem yields a token_decode AppError.
func Decode(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, apperrors.TokenDecode("token must have three segments", nil)
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, apperrors.TokenDecode("payload is not base64url", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, apperrors.TokenDecode("payload is not a JSON object", err)
	}
	return claims, nil
}

// DecodeIdentity resolves the identity from a token bundle. The ID token is required;
// the access token is consulted only when present.
func DecodeIdentity(t domainauth.Tokens) (domainauth.Identity, error) {
	idClaims, err := Decode(t.IDToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("id token: %w", err)
	}

	var accessClaims jwt.MapClaims
	if t.AccessToken != "" {
		accessClaims, err = Decode(t.AccessToken)
		if err != nil {
			return domainauth.Identity{}, fmt.Errorf("access token: %w", err)
		}
	}

	id := domainauth.Identity{
		Username:  firstNonEmpty(str(idClaims, claimProviderUsername), str(idClaims, claimUsername)),
		SubjectID: firstNonEmpty(str(accessClaims, claimSubject), str(idClaims, claimSubject)),
		Email:     str(idClaims, claimEmail),
	}
	if id.Username == "" {
		// Access tokens carry a plain username claim.
		id.Username = str(accessClaims, claimUsername)
	}
	return id, nil
}

// ExpiresAt returns the exp claim. ok is false when the claim is absent.
func ExpiresAt(token string) (exp time.Time, ok bool, err error) {
	claims, err := Decode(token)
	if err != nil {
		return time.Time{}, false, err
	}
	nd, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, apperrors.TokenDecode("invalid exp claim", err)
	}
	if nd == nil {
		return time.Time{}, false, nil
	}
	return nd.Time, true, nil
}

func str(c jwt.MapClaims, key string) string {
	if c == nil {
		return ""
	}
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
