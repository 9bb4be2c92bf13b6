package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/automsp/portal-server-go/internal/audit"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/service"
)

// PortalAccessHandler serves the unauthenticated customer portal endpoints.
// Every request carries the bearer secret in its JSON body.
type PortalAccessHandler struct {
	access *service.PortalAccessService
}

func NewPortalAccessHandler(access *service.PortalAccessService) *PortalAccessHandler {
	return &PortalAccessHandler{access: access}
}

func (h *PortalAccessHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/validate", h.Validate)
	r.Post("/tickets", h.ListTickets)
	r.Post("/submit-ticket", h.SubmitTicket)

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}

type portalTokenRequest struct {
	Token string `json:"token"`
}

// Client, organization and contact come from the token. Body fields with
// those names are ignored.
type submitTicketRequest struct {
	Token       string `json:"token"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type validateResponse struct {
	Valid  bool                 `json:"valid"`
	Client model.ClientIdentity `json:"client"`
	Email  string               `json:"email"`
	Name   *string              `json:"name"`
}

type submittedTicket struct {
	ID        string             `json:"id"`
	Subject   string             `json:"subject"`
	Status    model.TicketStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// POST /customer-portal/validate
func (h *PortalAccessHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req portalTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	scope, err := h.access.Validate(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  true,
		Client: scope.Client,
		Email:  scope.Email,
		Name:   scope.Name,
	})
}

// POST /customer-portal/tickets
func (h *PortalAccessHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	var req portalTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tickets, err := h.access.ListTickets(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

// POST /customer-portal/submit-ticket
func (h *PortalAccessHandler) SubmitTicket(w http.ResponseWriter, r *http.Request) {
	var req submitTicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.access.SubmitTicket(r.Context(), req.Token, service.SubmitTicketParams{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventTicketSubmit,
		ClientID: ticket.ClientID,
		Details:  map[string]any{"ticket_id": ticket.ID},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ticket": submittedTicket{
			ID:        ticket.ID,
			Subject:   ticket.Subject,
			Status:    ticket.Status,
			CreatedAt: ticket.CreatedAt,
		},
	})
}

func (h *PortalAccessHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var eventType audit.EventType
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidToken:
		eventType = audit.EventTokenInvalid
	case apperrors.ErrCodeTokenExpired:
		eventType = audit.EventTokenExpired
	case apperrors.ErrCodeRateLimitExceeded:
		eventType = audit.EventRateLimitExceed
	}
	if eventType != "" {
		audit.LogFromRequest(r, audit.Event{
			Type:    eventType,
			Details: map[string]any{"path": r.URL.Path},
		})
	}

	httputil.WriteError(w, err)
}
