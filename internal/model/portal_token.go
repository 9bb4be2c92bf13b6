package model

import (
	"time"
)

// PortalToken is a capability granting one holder access to one client's tickets.
// Only the digest of the bearer secret is stored.
type PortalToken struct {
	ID             string     `db:"id" json:"id"`
	ClientID       string     `db:"client_id" json:"client_id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	TokenDigest    string     `db:"token_digest" json:"-"`
	HolderEmail    string     `db:"holder_email" json:"email"`
	HolderName     *string    `db:"holder_name" json:"name"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at"`
	LastUsedAt     *time.Time `db:"last_used_at" json:"last_used_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type CreatePortalTokenParams struct {
	ClientID       string
	OrganizationID string
	TokenDigest    string
	HolderEmail    string
	HolderName     *string
	ExpiresAt      time.Time
}

// IsExpiredAt reports whether the token's validity window closed before now.
// A token without expiry never expires.
func (t *PortalToken) IsExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// PortalTokenWithClient is a token row joined with the name of its bound client.
type PortalTokenWithClient struct {
	PortalToken
	ClientName string `db:"client_name"`
}

// Client returns the public identity of the bound client.
func (t *PortalTokenWithClient) Client() ClientIdentity {
	return ClientIdentity{
		ID:             t.ClientID,
		Name:           t.ClientName,
		OrganizationID: t.OrganizationID,
	}
}
