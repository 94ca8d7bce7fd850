package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/target/console-auth/internal/domain/auth"
)

var tokenKey = []byte("testutil-signing-key-0123456789ab")

// Token signs claims with a throwaway HS256 key. Claims are only ever decoded,
// never verified, by the code under test.
func Token(t testing.TB, claims map[string]any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims)).SignedString(tokenKey)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return s
}

// TokensFor builds an ID/access token pair for username with the given expiry.
func TokensFor(t testing.TB, username, subject string, exp time.Time) domainauth.Tokens {
	t.Helper()
	return domainauth.Tokens{
		IDToken: Token(t, map[string]any{
			"cognito:username": username,
			"sub":              subject,
			"email":            username + "@example.com",
			"exp":              exp.Unix(),
		}),
		AccessToken: Token(t, map[string]any{
			"username": username,
			"sub":      subject,
			"exp":      exp.Unix(),
		}),
		RefreshToken: "refresh-" + username,
	}
}
