package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/automsp/portal-server-go/internal/model"
)

type TicketRepository interface {
	// ListForPortal returns the newest tickets of one client in the portal projection.
	ListForPortal(ctx context.Context, clientID string, limit int) ([]model.PortalTicket, error)
	Create(ctx context.Context, params model.CreateTicketParams) (*model.Ticket, error)
}

type ticketRepo struct {
	db *sqlx.DB
}

func NewTicketRepository(db *sqlx.DB) TicketRepository {
	return &ticketRepo{db: db}
}

func (r *ticketRepo) ListForPortal(ctx context.Context, clientID string, limit int) ([]model.PortalTicket, error) {
	tickets := []model.PortalTicket{}
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT id, subject, description, status, priority,
		       created_at, updated_at, sla_due_date, resolved_at
		FROM tickets
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepo) Create(ctx context.Context, params model.CreateTicketParams) (*model.Ticket, error) {
	var ticket model.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		INSERT INTO tickets
			(client_id, organization_id, subject, description, priority,
			 status, customer_submitted, customer_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, client_id, organization_id, subject, description, status, priority,
		          customer_submitted, customer_email, sla_due_date, resolved_at,
		          created_at, updated_at
	`, params.ClientID, params.OrganizationID, params.Subject, params.Description,
		params.Priority, params.Status, params.CustomerSubmitted, params.CustomerEmail)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}
