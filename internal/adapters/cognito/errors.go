package cognito

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	apperrors "github.com/target/console-auth/internal/errors"
)

// reasonsByCode maps user pool exception names to auth failure reasons.
var reasonsByCode = map[string]apperrors.AuthReason{
	"NotAuthorizedException":          apperrors.ReasonCredentials,
	"UserNotFoundException":           apperrors.ReasonCredentials,
	"TooManyRequestsException":        apperrors.ReasonThrottled,
	"LimitExceededException":          apperrors.ReasonThrottled,
	"TooManyFailedAttemptsException":  apperrors.ReasonThrottled,
	"CodeMismatchException":           apperrors.ReasonCodeMismatch,
	"ExpiredCodeException":            apperrors.ReasonCodeExpired,
	"InvalidPasswordException":        apperrors.ReasonPasswordPolicy,
	"PasswordResetRequiredException":  apperrors.ReasonPasswordResetRequired,
	"UserNotConfirmedException":       apperrors.ReasonUserNotConfirmed,
	"EnableSoftwareTokenMFAException": apperrors.ReasonVerificationFailed,
}

// classify converts an SDK error into an auth_failed AppError. Context errors pass
// through unchanged so callers can tell cancellation from rejection.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if reason, ok := reasonsByCode[apiErr.ErrorCode()]; ok {
			return apperrors.AuthFailed(reason, err)
		}
	}
	return apperrors.AuthFailed(apperrors.ReasonProviderUnavailable, err)
}

// errorCode returns the provider exception name for logging, or "" if unknown.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
