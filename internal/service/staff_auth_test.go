package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/automsp/portal-server-go/internal/errors"
)

const (
	testStaffSecret = "test-staff-secret-at-least-32-bytes!"
	testStaffUserID = "8b0b5a3e-4f4c-4f59-9a55-3d0b6f2a1c11"
)

func TestStaffAuthenticator(t *testing.T) {
	auth := NewStaffAuthenticator(testStaffSecret, "https://auth.example.com")

	t.Run("accepts signed token", func(t *testing.T) {
		token, err := auth.Sign(testStaffUserID, "staff@example.com", time.Hour)
		require.NoError(t, err)

		staff, err := auth.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, testStaffUserID, staff.UserID)
		assert.Equal(t, "staff@example.com", staff.Email)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token, err := auth.Sign(testStaffUserID, "staff@example.com", -time.Minute)
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		other := NewStaffAuthenticator("another-secret-that-is-long-enough!!", "https://auth.example.com")
		token, err := other.Sign(testStaffUserID, "", time.Hour)
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects wrong issuer", func(t *testing.T) {
		other := NewStaffAuthenticator(testStaffSecret, "https://evil.example.com")
		token, err := other.Sign(testStaffUserID, "", time.Hour)
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects non-uuid subject", func(t *testing.T) {
		token, err := auth.Sign("not-a-uuid", "", time.Hour)
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects token without expiry", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: testStaffUserID, Issuer: "https://auth.example.com"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testStaffSecret))
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   testStaffUserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := auth.Authenticate("not.a.jwt")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})
}
