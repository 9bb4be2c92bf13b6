package model

import (
	"time"
)

type Ticket struct {
	ID                string          `db:"id" json:"id"`
	ClientID          string          `db:"client_id" json:"client_id"`
	OrganizationID    string          `db:"organization_id" json:"organization_id"`
	Subject           string          `db:"subject" json:"subject"`
	Description       *string         `db:"description" json:"description"`
	Status            TicketStatus    `db:"status" json:"status"`
	Priority          *TicketPriority `db:"priority" json:"priority"`
	CustomerSubmitted bool            `db:"customer_submitted" json:"customer_submitted"`
	CustomerEmail     *string         `db:"customer_email" json:"customer_email"`
	SLADueDate        *time.Time      `db:"sla_due_date" json:"sla_due_date"`
	ResolvedAt        *time.Time      `db:"resolved_at" json:"resolved_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// PortalTicket is the subset of ticket fields a portal holder may read.
type PortalTicket struct {
	ID          string          `db:"id" json:"id"`
	Subject     string          `db:"subject" json:"subject"`
	Description *string         `db:"description" json:"description"`
	Status      TicketStatus    `db:"status" json:"status"`
	Priority    *TicketPriority `db:"priority" json:"priority"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	SLADueDate  *time.Time      `db:"sla_due_date" json:"sla_due_date"`
	ResolvedAt  *time.Time      `db:"resolved_at" json:"resolved_at"`
}

type CreateTicketParams struct {
	ClientID          string
	OrganizationID    string
	Subject           string
	Description       *string
	Priority          TicketPriority
	Status            TicketStatus
	CustomerSubmitted bool
	CustomerEmail     string
}
