package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/util"
)

// StaffIdentity is an authenticated staff member.
type StaffIdentity struct {
	UserID string
	Email  string
}

type staffClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// StaffAuthenticator verifies HS256 session tokens issued by the staff identity provider.
type StaffAuthenticator struct {
	secret []byte
	issuer string
}

func NewStaffAuthenticator(secret, issuer string) *StaffAuthenticator {
	return &StaffAuthenticator{secret: []byte(secret), issuer: issuer}
}

// Authenticate parses and verifies a bearer session token. The subject must be a user UUID.
func (a *StaffAuthenticator) Authenticate(tokenString string) (*StaffIdentity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims staffClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		log.Debug().Err(err).Msg("staff token rejected")
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	if !util.IsValidUUID(claims.Subject) {
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	return &StaffIdentity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Sign issues a session token for userID valid for ttl.
func (a *StaffAuthenticator) Sign(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := staffClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
