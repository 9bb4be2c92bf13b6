package model

type Client struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	OrganizationID string `db:"organization_id"`
}

// ClientIdentity is what a portal holder learns about the client bound to their token.
type ClientIdentity struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
}
