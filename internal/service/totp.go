package service

import (
	"encoding/base32"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	apperrors "github.com/target/console-auth/internal/errors"
)

// ProvisioningURI builds the otpauth:// URI an authenticator app scans for secret.
// secret is the base32 value returned when TOTP enrollment starts.
func ProvisioningURI(issuer, account, secret string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).
		DecodeString(strings.TrimRight(strings.ToUpper(strings.TrimSpace(secret)), "="))
	if err != nil || len(raw) == 0 {
		return "", apperrors.ValidationField("secret", "totp secret is not valid base32")
	}
	if account == "" {
		return "", apperrors.ValidationField("account", "account name is required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Secret:      raw,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "build totp provisioning uri")
	}
	return key.URL(), nil
}
