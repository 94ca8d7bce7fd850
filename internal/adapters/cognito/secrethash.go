package cognito

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	apperrors "github.com/target/console-auth/internal/errors"
)

// SecretHash computes the SECRET_HASH the user pool requires from confidential app
// clients: base64(HMAC-SHA256(key=clientSecret, msg=username+clientID)).
// The result is a credential and must never be logged.
func SecretHash(username, clientID, clientSecret string) (string, error) {
	if clientSecret == "" {
		return "", apperrors.Configuration("cognito client secret is not configured")
	}
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
