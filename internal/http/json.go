package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/target/console-auth/internal/errors"
)

// maxBodyBytes bounds JSON request bodies; credentials and codes are tiny.
const maxBodyBytes = 64 << 10

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: p.Err.Error()})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Auth failure reasons that are safe to show the user. Everything else collapses to
// the generic "sign-in failed" so responses never reveal which factor was wrong.
var publicReasons = map[apperrors.AuthReason]bool{
	apperrors.ReasonPasswordPolicy:       true,
	apperrors.ReasonCodeMismatch:         true,
	apperrors.ReasonCodeExpired:          true,
	apperrors.ReasonThrottled:            true,
	apperrors.ReasonVerificationFailed:   true,
	apperrors.ReasonUnsupportedChallenge: true,
	apperrors.ReasonProviderUnavailable:  true,
}

// WriteAppError maps err onto an HTTP status and a JSON error body.
func WriteAppError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	WriteJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"}
	}

	body := errorBody{Error: string(appErr.Code), Message: appErr.Message, Field: appErr.Field}
	switch appErr.Code {
	case apperrors.ErrCodeAuthFailed:
		body.Message = "sign-in failed"
		if publicReasons[appErr.Reason] {
			body.Reason = string(appErr.Reason)
		}
		switch appErr.Reason {
		case apperrors.ReasonThrottled:
			return http.StatusTooManyRequests, body
		case apperrors.ReasonProviderUnavailable:
			return http.StatusServiceUnavailable, body
		}
		return http.StatusUnauthorized, body
	case apperrors.ErrCodePreferencePending:
		return http.StatusAccepted, body
	case apperrors.ErrCodeChallengeMismatch, apperrors.ErrCodeValidation:
		return http.StatusBadRequest, body
	case apperrors.ErrCodeInvalidState, apperrors.ErrCodeConflict:
		return http.StatusConflict, body
	case apperrors.ErrCodeTokenDecode, apperrors.ErrCodeSessionMissing:
		return http.StatusUnauthorized, body
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, body
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, body
	case apperrors.ErrCodeCanceled:
		return http.StatusRequestTimeout, body
	default:
		// Configuration and internal errors are operator-facing.
		return http.StatusInternalServerError, errorBody{Error: string(appErr.Code), Message: "internal error"}
	}
}
