package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates missing or invalid operator configuration (e.g. no client secret).
	ErrCodeConfiguration ErrorCode = "configuration"
	// ErrCodeAuthFailed indicates the identity provider rejected the request.
	ErrCodeAuthFailed ErrorCode = "auth_failed"
	// ErrCodeChallengeMismatch indicates the wrong completion method for the pending challenge.
	ErrCodeChallengeMismatch ErrorCode = "challenge_mismatch"
	// ErrCodeInvalidState indicates an event arrived in a phase that forbids it.
	ErrCodeInvalidState ErrorCode = "invalid_state"
	// ErrCodeTokenDecode indicates a malformed token payload.
	ErrCodeTokenDecode ErrorCode = "token_decode"
	// ErrCodeSessionMissing indicates an operation that needs an access token ran without one.
	ErrCodeSessionMissing ErrorCode = "session_missing"
	// ErrCodePreferencePending indicates TOTP was verified but could not be made the preferred factor.
	ErrCodePreferencePending ErrorCode = "preference_pending"

	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AuthReason refines ErrCodeAuthFailed. It is for operators and metrics; end users
// only ever see a generic sign-in failure.
type AuthReason string

const (
	ReasonCredentials           AuthReason = "credentials"
	ReasonThrottled             AuthReason = "throttled"
	ReasonCodeMismatch          AuthReason = "code_mismatch"
	ReasonCodeExpired           AuthReason = "code_expired"
	ReasonPasswordPolicy        AuthReason = "password_policy"
	ReasonPasswordResetRequired AuthReason = "password_reset_required"
	ReasonUserNotConfirmed      AuthReason = "user_not_confirmed"
	ReasonUnsupportedChallenge  AuthReason = "unsupported_challenge"
	ReasonVerificationFailed    AuthReason = "verification_failed"
	ReasonProviderUnavailable   AuthReason = "provider_unavailable"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Reason refines auth_failed errors (optional)
	Reason AuthReason
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Configuration creates a new Configuration error.
func Configuration(message string) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message}
}

// AuthFailed wraps a provider rejection with its reason.
func AuthFailed(reason AuthReason, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeAuthFailed,
		Message: "sign-in failed",
		Reason:  reason,
		Cause:   cause,
	}
}

// ChallengeMismatchf creates a new ChallengeMismatch error with formatted message.
func ChallengeMismatchf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeChallengeMismatch,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidStatef creates a new InvalidState error with formatted message.
func InvalidStatef(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf(format, args...),
	}
}

// TokenDecode wraps a claim decoding failure.
func TokenDecode(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeTokenDecode, Message: message, Cause: cause}
}

// SessionMissing creates a new SessionMissing error.
func SessionMissing(message string) *AppError {
	return &AppError{Code: ErrCodeSessionMissing, Message: message}
}

// PreferencePending reports that TOTP verification succeeded but the preference step failed.
func PreferencePending(cause error) *AppError {
	return &AppError{
		Code:    ErrCodePreferencePending,
		Message: "totp verified; preferred factor not yet set",
		Cause:   cause,
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsConfiguration(err error) bool     { return isCode(err, ErrCodeConfiguration) }
func IsAuthFailed(err error) bool        { return isCode(err, ErrCodeAuthFailed) }
func IsChallengeMismatch(err error) bool { return isCode(err, ErrCodeChallengeMismatch) }
func IsInvalidState(err error) bool      { return isCode(err, ErrCodeInvalidState) }
func IsTokenDecode(err error) bool       { return isCode(err, ErrCodeTokenDecode) }
func IsSessionMissing(err error) bool    { return isCode(err, ErrCodeSessionMissing) }
func IsPreferencePending(err error) bool { return isCode(err, ErrCodePreferencePending) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetReason returns the AuthReason carried by the outermost AppError, if any.
func GetReason(err error) AuthReason {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
