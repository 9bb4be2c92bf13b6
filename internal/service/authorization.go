package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/repository"
)

const (
	msgClientAccessDenied      = "Client not found or access denied"
	msgInsufficientPermissions = "Insufficient permissions"
)

// Authorizer decides whether a staff member may manage portal tokens of a client.
// A client in an organization the caller does not belong to is reported exactly
// like a client that does not exist.
type Authorizer struct {
	clients     repository.ClientRepository
	memberships repository.MembershipRepository
}

func NewAuthorizer(clients repository.ClientRepository, memberships repository.MembershipRepository) *Authorizer {
	return &Authorizer{clients: clients, memberships: memberships}
}

// AuthorizeClient resolves clientID and checks the caller's role in its organization.
func (a *Authorizer) AuthorizeClient(ctx context.Context, staff *StaffIdentity, clientID string) (*model.Client, error) {
	client, err := a.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		log.Info().Str("userId", staff.UserID).Str("clientId", clientID).Msg("client not found for staff member")
		return nil, apperrors.Forbidden(msgClientAccessDenied)
	}

	if err := a.AuthorizeOrganization(ctx, staff, client.OrganizationID); err != nil {
		return nil, err
	}
	return client, nil
}

// AuthorizeOrganization requires the caller to hold a token-managing role in organizationID.
func (a *Authorizer) AuthorizeOrganization(ctx context.Context, staff *StaffIdentity, organizationID string) error {
	membership, err := a.memberships.Find(ctx, staff.UserID, organizationID)
	if err != nil {
		return apperrors.Database(err)
	}
	if membership == nil {
		log.Info().Str("userId", staff.UserID).Str("organizationId", organizationID).Msg("staff member is not in organization")
		return apperrors.Forbidden(msgClientAccessDenied)
	}
	if !membership.Role.CanManagePortalTokens() {
		log.Info().
			Str("userId", staff.UserID).
			Str("organizationId", organizationID).
			Str("role", string(membership.Role)).
			Msg("role cannot manage portal tokens")
		return apperrors.Forbidden(msgInsufficientPermissions)
	}
	return nil
}
