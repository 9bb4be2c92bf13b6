package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automsp/portal-server-go/internal/model"
)

var tokenColumns = []string{
	"id", "client_id", "organization_id", "token_digest", "holder_email", "holder_name",
	"is_active", "expires_at", "last_used_at", "created_at",
}

func TestPortalTokenRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)
	name := "Alice"

	mock.ExpectQuery(`INSERT INTO customer_portal_tokens`).
		WithArgs("client-1", "org-1", "digest", "a@b.com", &name, expires).
		WillReturnRows(sqlmock.NewRows(tokenColumns).
			AddRow("tok-1", "client-1", "org-1", "digest", "a@b.com", "Alice", true, expires, nil, now))

	token, err := repo.Create(context.Background(), model.CreatePortalTokenParams{
		ClientID:       "client-1",
		OrganizationID: "org-1",
		TokenDigest:    "digest",
		HolderEmail:    "a@b.com",
		HolderName:     &name,
		ExpiresAt:      expires,
	})

	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.ID)
	assert.Equal(t, "org-1", token.OrganizationID)
	assert.True(t, token.IsActive)
	require.NotNil(t, token.HolderName)
	assert.Equal(t, "Alice", *token.HolderName)
	assert.Nil(t, token.LastUsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortalTokenRepository_FindActiveByDigest(t *testing.T) {
	t.Run("returns token joined with client name", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPortalTokenRepository(db)

		now := time.Now()
		mock.ExpectQuery(`SELECT t\.\*, c\.name AS client_name\s+FROM customer_portal_tokens t\s+JOIN clients c`).
			WithArgs("digest").
			WillReturnRows(sqlmock.NewRows(append(tokenColumns, "client_name")).
				AddRow("tok-1", "client-1", "org-1", "digest", "a@b.com", nil, true, nil, nil, now, "Acme"))

		token, err := repo.FindActiveByDigest(context.Background(), "digest")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, model.ClientIdentity{ID: "client-1", Name: "Acme", OrganizationID: "org-1"}, token.Client())
		assert.Nil(t, token.HolderName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when no row matches", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPortalTokenRepository(db)

		mock.ExpectQuery(`FROM customer_portal_tokens t`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(append(tokenColumns, "client_name")))

		token, err := repo.FindActiveByDigest(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("propagates query errors", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPortalTokenRepository(db)

		mock.ExpectQuery(`FROM customer_portal_tokens t`).
			WithArgs("digest").
			WillReturnError(errors.New("connection reset"))

		token, err := repo.FindActiveByDigest(context.Background(), "digest")
		assert.Error(t, err)
		assert.Nil(t, token)
	})
}

func TestPortalTokenRepository_DeactivateActiveForHolder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	mock.ExpectExec(`UPDATE customer_portal_tokens\s+SET is_active = FALSE\s+WHERE client_id = \$1 AND holder_email = \$2`).
		WithArgs("client-1", "a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeactivateActiveForHolder(context.Background(), "client-1", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortalTokenRepository_WithTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE customer_portal_tokens`).
		WithArgs("client-1", "a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = repo.WithTx(tx).DeactivateActiveForHolder(context.Background(), "client-1", "a@b.com")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortalTokenRepository_Revoke(t *testing.T) {
	t.Run("reports revoked when a row changed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPortalTokenRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND is_active = TRUE`).
			WithArgs("tok-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		revoked, err := repo.Revoke(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("reports false for already inactive token", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPortalTokenRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND is_active = TRUE`).
			WithArgs("tok-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		revoked, err := repo.Revoke(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}

func TestPortalTokenRepository_UpdateLastUsed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	at := time.Now()
	mock.ExpectExec(`UPDATE customer_portal_tokens SET last_used_at = \$2 WHERE id = \$1`).
		WithArgs("tok-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastUsed(context.Background(), "tok-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortalTokenRepository_DeactivateExpired(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	mock.ExpectExec(`expires_at < NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeactivateExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortalTokenRepository_ListByClient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPortalTokenRepository(db)

	now := time.Now()
	mock.ExpectQuery(`ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("client-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(tokenColumns).
			AddRow("tok-2", "client-1", "org-1", "d2", "b@b.com", nil, true, now, nil, now).
			AddRow("tok-1", "client-1", "org-1", "d1", "a@b.com", nil, false, now, now, now))

	tokens, err := repo.ListByClient(context.Background(), "client-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "tok-2", tokens[0].ID)
	assert.False(t, tokens[1].IsActive)
}
