package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/automsp/portal-server-go/internal/model"
)

type MembershipRepository interface {
	Find(ctx context.Context, userID, organizationID string) (*model.OrganizationMembership, error)
}

type membershipRepo struct {
	db *sqlx.DB
}

func NewMembershipRepository(db *sqlx.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Find(ctx context.Context, userID, organizationID string) (*model.OrganizationMembership, error) {
	var m model.OrganizationMembership
	err := r.db.GetContext(ctx, &m, `
		SELECT user_id, organization_id, role
		FROM organization_memberships
		WHERE user_id = $1 AND organization_id = $2
	`, userID, organizationID)
	return HandleNotFound(&m, err)
}
