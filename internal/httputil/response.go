package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/automsp/portal-server-go/internal/errors"
)

const genericErrorMessage = "Internal server error"

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an error as an HTTP response with the status for its code.
// Internal and database failures are logged and replaced by a generic message.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		log.Error().Err(err).Msg("unhandled error")
		appErr = apperrors.Internal(genericErrorMessage)
	}

	status := StatusFromCode(appErr.Code)
	WriteJSON(w, status, publicResponse(appErr))
}

// WriteErrorWithStatus writes an error with a specific HTTP status code
func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	WriteJSON(w, status, publicResponse(err))
}

func publicResponse(appErr *apperrors.AppError) ErrorResponse {
	switch appErr.Code {
	case apperrors.ErrCodeTokenExpired:
		// expired and unknown tokens look the same to callers
		invalid := apperrors.InvalidToken()
		return ErrorResponse{Error: invalid.Message, Code: invalid.Code}
	case apperrors.ErrCodeInternal, apperrors.ErrCodeDatabase:
		if appErr.Unwrap() != nil {
			log.Error().Err(appErr.Unwrap()).Str("code", string(appErr.Code)).Msg("request failed")
		}
		return ErrorResponse{Error: genericErrorMessage, Code: apperrors.ErrCodeInternal}
	}

	return ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeMalformedToken:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized,
		apperrors.ErrCodeInvalidToken,
		apperrors.ErrCodeTokenExpired:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 405 Method Not Allowed
	case apperrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed

	// 409 Conflict
	case apperrors.ErrCodeConflict:
		return http.StatusConflict

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
