package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/automsp/portal-server-go/internal/audit"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/middleware"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/service"
)

// PortalTokenHandler serves the staff endpoints that issue and manage portal tokens.
type PortalTokenHandler struct {
	tokens  *service.PortalTokenService
	origins *httputil.OriginPolicy
}

func NewPortalTokenHandler(tokens *service.PortalTokenService, origins *httputil.OriginPolicy) *PortalTokenHandler {
	return &PortalTokenHandler{tokens: tokens, origins: origins}
}

// RegisterRoutes adds the staff routes to r, which is usually a group
// guarded by StaffAuthMiddleware.
func (h *PortalTokenHandler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-portal-token", h.Generate)
	r.Get("/clients/{clientID}/portal-tokens", h.List)
	r.Post("/portal-tokens/{tokenID}/revoke", h.Revoke)
}

type generateTokenResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	PortalURL string    `json:"portal_url"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"token_id"`
}

// POST /generate-portal-token
func (h *PortalTokenHandler) Generate(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())
	if staff == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	var params service.IssueTokenParams
	if !decodeJSON(w, r, &params) {
		return
	}

	// portal links point at the caller's origin only when it is allow-listed
	if origin := r.Header.Get("Origin"); h.origins.IsAllowed(origin) {
		params.BaseURL = origin
	}

	issued, err := h.tokens.Issue(r.Context(), staff, params)
	if err != nil {
		h.fail(w, r, staff, params.ClientID, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventTokenIssue,
		UserID:   staff.UserID,
		ClientID: issued.Record.ClientID,
		TokenID:  issued.Record.ID,
		Details: map[string]any{
			"replaced":   issued.Replaced,
			"expires_at": issued.ExpiresAt,
		},
	})

	writeJSON(w, http.StatusOK, generateTokenResponse{
		Success:   true,
		Token:     issued.Token,
		PortalURL: issued.PortalURL,
		ExpiresAt: issued.ExpiresAt,
		TokenID:   issued.Record.ID,
	})
}

// GET /clients/{clientID}/portal-tokens
func (h *PortalTokenHandler) List(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())
	if staff == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	clientID := chi.URLParam(r, "clientID")
	page := ParsePagination(r)

	tokens, err := h.tokens.ListForClient(r.Context(), staff, clientID, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, staff, clientID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": tokens,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// POST /portal-tokens/{tokenID}/revoke
func (h *PortalTokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())
	if staff == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	tokenID := chi.URLParam(r, "tokenID")
	token, err := h.tokens.Revoke(r.Context(), staff, tokenID)
	if err != nil {
		h.fail(w, r, staff, "", err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventTokenRevoke,
		UserID:   staff.UserID,
		ClientID: token.ClientID,
		TokenID:  token.ID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   revokedToken(token),
	})
}

func revokedToken(t *model.PortalToken) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"client_id": t.ClientID,
		"email":     t.HolderEmail,
		"is_active": t.IsActive,
	}
}

func (h *PortalTokenHandler) fail(w http.ResponseWriter, r *http.Request, staff *service.StaffIdentity, clientID string, err error) {
	if apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
		audit.LogFromRequest(r, audit.Event{
			Type:     audit.EventAuthzFailure,
			UserID:   staff.UserID,
			ClientID: clientID,
			Details:  map[string]any{"path": r.URL.Path},
		})
	}
	httputil.WriteError(w, err)
}
