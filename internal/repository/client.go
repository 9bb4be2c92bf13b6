package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/automsp/portal-server-go/internal/model"
)

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
	// LockByID reads the client with a row lock. Only meaningful inside a transaction.
	LockByID(ctx context.Context, id string) (*model.Client, error)
	WithTx(tx *sqlx.Tx) ClientRepository
}

type clientDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type clientRepo struct {
	db clientDB
}

func NewClientRepository(db *sqlx.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) WithTx(tx *sqlx.Tx) ClientRepository {
	return &clientRepo{db: tx}
}

func (r *clientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, `
		SELECT id, name, organization_id FROM clients WHERE id = $1
	`, id)
	return HandleNotFound(&client, err)
}

func (r *clientRepo) LockByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, `
		SELECT id, name, organization_id FROM clients WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&client, err)
}
