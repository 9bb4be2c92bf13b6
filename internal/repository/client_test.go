package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automsp/portal-server-go/internal/model"
)

func TestClientRepository_FindByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewClientRepository(db)

	mock.ExpectQuery(`SELECT id, name, organization_id FROM clients WHERE id = \$1`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "organization_id"}).
			AddRow("client-1", "Acme", "org-1"))

	client, err := repo.FindByID(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, &model.Client{ID: "client-1", Name: "Acme", OrganizationID: "org-1"}, client)
}

func TestClientRepository_LockByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewClientRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM clients WHERE id = \$1 FOR UPDATE`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "organization_id"}))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	client, err := repo.WithTx(tx).LockByID(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Nil(t, client)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepository_Find(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(`FROM organization_memberships\s+WHERE user_id = \$1 AND organization_id = \$2`).
		WithArgs("user-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "organization_id", "role"}).
			AddRow("user-1", "org-1", "account_manager"))

	m, err := repo.Find(context.Background(), "user-1", "org-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleAccountManager, m.Role)
	assert.True(t, m.Role.CanManagePortalTokens())
}
