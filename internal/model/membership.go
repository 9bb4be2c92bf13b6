package model

type OrganizationMembership struct {
	UserID         string `db:"user_id"`
	OrganizationID string `db:"organization_id"`
	Role           Role   `db:"role"`
}
