package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/automsp/portal-server-go/internal/audit"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/service"
)

type contextKey string

const StaffContextKey contextKey = "staff"

func GetStaff(ctx context.Context) *service.StaffIdentity {
	if staff, ok := ctx.Value(StaffContextKey).(*service.StaffIdentity); ok {
		return staff
	}
	return nil
}

// WithStaff returns a copy of ctx carrying staff.
func WithStaff(ctx context.Context, staff *service.StaffIdentity) context.Context {
	return context.WithValue(ctx, StaffContextKey, staff)
}

// StaffVerifier verifies a staff session token.
type StaffVerifier interface {
	Authenticate(token string) (*service.StaffIdentity, error)
}

// StaffAuthMiddleware requires a valid staff bearer token.
type StaffAuthMiddleware struct {
	verifier StaffVerifier
}

func NewStaffAuthMiddleware(verifier StaffVerifier) *StaffAuthMiddleware {
	return &StaffAuthMiddleware{verifier: verifier}
}

func (m *StaffAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"reason": "missing_token"},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		staff, err := m.verifier.Authenticate(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"reason": "invalid_token"},
			})
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), staff)))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
