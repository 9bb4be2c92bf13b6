package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/automsp/portal-server-go/internal/model"
)

type PortalTokenRepository interface {
	Create(ctx context.Context, params model.CreatePortalTokenParams) (*model.PortalToken, error)
	FindByID(ctx context.Context, id string) (*model.PortalToken, error)
	// FindActiveByDigest returns the active token for digest joined with its client.
	// Expiry is left to the caller so expired and unknown tokens can be told apart.
	FindActiveByDigest(ctx context.Context, digest string) (*model.PortalTokenWithClient, error)
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.PortalToken, error)
	DeactivateActiveForHolder(ctx context.Context, clientID, holderEmail string) (int64, error)
	Revoke(ctx context.Context, id string) (bool, error)
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	DeactivateExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PortalTokenRepository
}

// portalTokenDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type portalTokenDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type portalTokenRepo struct {
	db portalTokenDB
}

func NewPortalTokenRepository(db *sqlx.DB) PortalTokenRepository {
	return &portalTokenRepo{db: db}
}

func (r *portalTokenRepo) WithTx(tx *sqlx.Tx) PortalTokenRepository {
	return &portalTokenRepo{db: tx}
}

func (r *portalTokenRepo) Create(ctx context.Context, params model.CreatePortalTokenParams) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO customer_portal_tokens
			(client_id, organization_id, token_digest, holder_email, holder_name, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ClientID, params.OrganizationID, params.TokenDigest,
		params.HolderEmail, params.HolderName, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *portalTokenRepo) FindByID(ctx context.Context, id string) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `SELECT * FROM customer_portal_tokens WHERE id = $1`, id)
	return HandleNotFound(&token, err)
}

func (r *portalTokenRepo) FindActiveByDigest(ctx context.Context, digest string) (*model.PortalTokenWithClient, error) {
	var token model.PortalTokenWithClient
	err := r.db.GetContext(ctx, &token, `
		SELECT t.*, c.name AS client_name
		FROM customer_portal_tokens t
		JOIN clients c ON c.id = t.client_id
		WHERE t.token_digest = $1 AND t.is_active = TRUE
	`, digest)
	return HandleNotFound(&token, err)
}

func (r *portalTokenRepo) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.PortalToken, error) {
	tokens := []model.PortalToken{}
	err := r.db.SelectContext(ctx, &tokens, `
		SELECT * FROM customer_portal_tokens
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *portalTokenRepo) DeactivateActiveForHolder(ctx context.Context, clientID, holderEmail string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE customer_portal_tokens
		SET is_active = FALSE
		WHERE client_id = $1 AND holder_email = $2 AND is_active = TRUE
	`, clientID, holderEmail)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Revoke deactivates a token and reports whether it was active.
func (r *portalTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE customer_portal_tokens
		SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE
	`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *portalTokenRepo) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customer_portal_tokens SET last_used_at = $2 WHERE id = $1
	`, id, at)
	return err
}

// DeactivateExpired flips is_active on tokens past their expiry. Rows are kept.
func (r *portalTokenRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE customer_portal_tokens
		SET is_active = FALSE
		WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
