package model

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleAccountManager Role = "account_manager"
	RoleViewer         Role = "viewer"
)

// CanManagePortalTokens reports whether the role may issue or revoke portal tokens.
func (r Role) CanManagePortalTokens() bool {
	return r == RoleAdmin || r == RoleAccountManager
}

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

var ticketPriorities = []TicketPriority{
	TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical,
}

// ParseTicketPriority returns the matching priority, falling back to medium
// for anything outside the known set.
func ParseTicketPriority(s string) TicketPriority {
	for _, p := range ticketPriorities {
		if string(p) == s {
			return p
		}
	}
	return TicketPriorityMedium
}
