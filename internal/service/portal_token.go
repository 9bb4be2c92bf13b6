package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/automsp/portal-server-go/internal/config"
	"github.com/automsp/portal-server-go/internal/database"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/repository"
	"github.com/automsp/portal-server-go/internal/util"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// IssueTokenParams is the staff request to create a portal token.
type IssueTokenParams struct {
	ClientID    string `json:"client_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ExpiresDays *int   `json:"expires_days"`
	// BaseURL is the origin the portal URL is built on. Empty means the configured portal URL.
	BaseURL string `json:"-"`
}

func (p *IssueTokenParams) normalize() {
	p.ClientID = strings.TrimSpace(p.ClientID)
	p.Email = util.NormalizeEmail(p.Email)
	p.Name = util.TruncateRunes(strings.TrimSpace(p.Name), config.MaxHolderNameRunes)
}

// Validate checks the normalized request fields.
func (p *IssueTokenParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ClientID,
			validation.Required.Error("is required"),
			validation.By(func(any) error {
				if !util.IsValidUUID(p.ClientID) {
					return errors.New("must be a valid UUID")
				}
				return nil
			}),
		),
		validation.Field(&p.Email,
			validation.Required.Error("is required"),
			validation.RuneLength(0, util.MaxEmailLength),
			validation.By(func(any) error {
				if !util.IsValidEmail(p.Email) {
					return errors.New("must be a valid email address")
				}
				return nil
			}),
		),
		validation.Field(&p.ExpiresDays,
			validation.By(func(any) error {
				if p.ExpiresDays != nil && (*p.ExpiresDays < 1 || *p.ExpiresDays > config.MaxTokenExpiryDays) {
					return fmt.Errorf("must be between 1 and %d", config.MaxTokenExpiryDays)
				}
				return nil
			}),
		),
	)
}

// IssuedToken carries the only copy of the bearer secret that ever leaves the server.
type IssuedToken struct {
	Token     string
	PortalURL string
	ExpiresAt time.Time
	Record    *model.PortalToken
	Replaced  int64
}

type PortalTokenService struct {
	db      TxRunner
	tokens  repository.PortalTokenRepository
	clients repository.ClientRepository
	authz   *Authorizer
	metrics *metrics.Metrics

	portalBaseURL     string
	defaultExpiryDays int

	now            func() time.Time
	generateSecret func() (string, error)
}

func NewPortalTokenService(
	db TxRunner,
	tokens repository.PortalTokenRepository,
	clients repository.ClientRepository,
	authz *Authorizer,
	m *metrics.Metrics,
	portalBaseURL string,
	defaultExpiryDays int,
) *PortalTokenService {
	return &PortalTokenService{
		db:                db,
		tokens:            tokens,
		clients:           clients,
		authz:             authz,
		metrics:           m,
		portalBaseURL:     strings.TrimRight(portalBaseURL, "/"),
		defaultExpiryDays: defaultExpiryDays,
		now:               time.Now,
		generateSecret:    util.GenerateSecret,
	}
}

// Issue creates a token for (client, email), deactivating any active token for
// the same pair in the same transaction.
func (s *PortalTokenService) Issue(ctx context.Context, staff *StaffIdentity, params IssueTokenParams) (*IssuedToken, error) {
	params.normalize()
	if err := params.Validate(); err != nil {
		return nil, validationToAppError(err, "client_id", "email", "expires_days")
	}

	client, err := s.authz.AuthorizeClient(ctx, staff, params.ClientID)
	if err != nil {
		return nil, err
	}

	secret, err := s.generateSecret()
	if err != nil {
		return nil, apperrors.Internal("Failed to create token").WithCause(err)
	}
	digest := util.HashToken(secret)

	days := s.defaultExpiryDays
	if params.ExpiresDays != nil {
		days = *params.ExpiresDays
	}
	expiresAt := s.now().Add(time.Duration(days) * 24 * time.Hour).UTC()

	var holderName *string
	if params.Name != "" {
		holderName = &params.Name
	}

	var (
		record   *model.PortalToken
		replaced int64
	)
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// serializes concurrent issuance for the same client
		locked, err := s.clients.WithTx(tx).LockByID(ctx, client.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperrors.Forbidden(msgClientAccessDenied)
		}

		tokens := s.tokens.WithTx(tx)
		replaced, err = tokens.DeactivateActiveForHolder(ctx, locked.ID, params.Email)
		if err != nil {
			return err
		}

		record, err = tokens.Create(ctx, model.CreatePortalTokenParams{
			ClientID:       locked.ID,
			OrganizationID: locked.OrganizationID,
			TokenDigest:    digest,
			HolderEmail:    params.Email,
			HolderName:     holderName,
			ExpiresAt:      expiresAt,
		})
		return err
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	s.metrics.TokenIssued(replaced)

	log.Info().
		Str("tokenId", record.ID).
		Str("clientId", record.ClientID).
		Str("organizationId", record.OrganizationID).
		Str("issuedBy", staff.UserID).
		Str("digest", util.MaskDigest(digest)).
		Int64("replaced", replaced).
		Time("expiresAt", expiresAt).
		Msg("portal token issued")

	return &IssuedToken{
		Token:     secret,
		PortalURL: s.portalURL(params.BaseURL, secret),
		ExpiresAt: expiresAt,
		Record:    record,
		Replaced:  replaced,
	}, nil
}

func (s *PortalTokenService) portalURL(baseURL, secret string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = s.portalBaseURL
	}
	return base + config.PortalLoginPath + "?token=" + url.QueryEscape(secret)
}

// ListForClient returns the tokens of a client the caller may manage, newest first.
func (s *PortalTokenService) ListForClient(ctx context.Context, staff *StaffIdentity, clientID string, limit, offset int) ([]model.PortalToken, error) {
	if !util.IsValidUUID(clientID) {
		return nil, apperrors.InvalidInput("client_id", "must be a valid UUID")
	}

	if _, err := s.authz.AuthorizeClient(ctx, staff, clientID); err != nil {
		return nil, err
	}

	tokens, err := s.tokens.ListByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tokens, nil
}

// Revoke deactivates one token. Revoking an inactive token is not an error.
func (s *PortalTokenService) Revoke(ctx context.Context, staff *StaffIdentity, tokenID string) (*model.PortalToken, error) {
	if !util.IsValidUUID(tokenID) {
		return nil, apperrors.InvalidInput("token_id", "must be a valid UUID")
	}

	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token == nil {
		return nil, apperrors.NotFound("Token")
	}

	if err := s.authz.AuthorizeOrganization(ctx, staff, token.OrganizationID); err != nil {
		return nil, err
	}

	revoked, err := s.tokens.Revoke(ctx, tokenID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	token.IsActive = false

	if revoked {
		s.metrics.TokenRevoked()
		log.Info().
			Str("tokenId", tokenID).
			Str("clientId", token.ClientID).
			Str("revokedBy", staff.UserID).
			Msg("portal token revoked")
	}

	return token, nil
}

// validationToAppError reports the first failing field in the given order.
func validationToAppError(err error, order ...string) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return apperrors.ValidationError(err.Error())
	}
	for _, field := range order {
		if fieldErr, ok := errs[field]; ok && fieldErr != nil {
			return apperrors.InvalidInput(field, fieldErr.Error())
		}
	}
	for field, fieldErr := range errs {
		if fieldErr != nil {
			return apperrors.InvalidInput(field, fieldErr.Error())
		}
	}
	return apperrors.ValidationError(err.Error())
}
