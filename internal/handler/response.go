package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// decodeJSON reads a JSON body into dst. Oversize bodies are reported with 413,
// anything else unreadable as "Invalid JSON body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
			apperrors.ValidationError("Request body too large"))
		return false
	}

	httputil.WriteError(w, apperrors.ValidationError("Invalid JSON body"))
	return false
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, apperrors.New(apperrors.ErrCodeNotFound, "Not found"))
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, apperrors.MethodNotAllowed())
}
