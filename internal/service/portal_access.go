package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/automsp/portal-server-go/internal/config"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/repository"
	"github.com/automsp/portal-server-go/internal/util"
)

// Rate limiter operations. Read operations share the validate budget.
const (
	RateLimitOpValidate = "validate"
	RateLimitOpSubmit   = "submit"
)

// ValidatedToken is the scope bound to a bearer secret that passed validation.
type ValidatedToken struct {
	TokenID string
	Digest  string
	Client  model.ClientIdentity
	Email   string
	Name    *string
}

// SubmitTicketParams is a portal ticket submission. Client, organization and
// contact are taken from the validated token, never from the request.
type SubmitTicketParams struct {
	Subject     string
	Description string
	Priority    string
}

type PortalAccessLimits struct {
	Validate int
	Submit   int
	Window   time.Duration
}

// PortalAccessService validates bearer secrets and serves the ticket operations
// scoped to them. Every operation re-validates; no session is kept.
type PortalAccessService struct {
	tokens  repository.PortalTokenRepository
	tickets repository.TicketRepository
	limiter RateLimiter
	limits  PortalAccessLimits
	metrics *metrics.Metrics

	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
	background func(fn func())
}

func NewPortalAccessService(
	tokens repository.PortalTokenRepository,
	tickets repository.TicketRepository,
	limiter RateLimiter,
	limits PortalAccessLimits,
	m *metrics.Metrics,
) *PortalAccessService {
	return &PortalAccessService{
		tokens:     tokens,
		tickets:    tickets,
		limiter:    limiter,
		limits:     limits,
		metrics:    m,
		now:        time.Now,
		sleep:      sleepContext,
		background: func(fn func()) { go fn() },
	}
}

// Validate checks the shape of secret, applies the validate rate limit and
// resolves the active token bound to it.
func (s *PortalAccessService) Validate(ctx context.Context, secret string) (*ValidatedToken, error) {
	if !util.IsWellFormedSecret(secret) {
		s.metrics.ObserveValidation(metrics.ResultMalformed)
		return nil, apperrors.MalformedToken()
	}

	digest := util.HashToken(secret)
	if err := s.checkLimit(ctx, RateLimitOpValidate, digest, s.limits.Validate); err != nil {
		return nil, err
	}

	return s.resolve(ctx, digest)
}

// ListTickets returns the newest tickets of the client bound to secret.
func (s *PortalAccessService) ListTickets(ctx context.Context, secret string) ([]model.PortalTicket, error) {
	scope, err := s.Validate(ctx, secret)
	if err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListForPortal(ctx, scope.Client.ID, config.PortalTicketPageSize)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tickets, nil
}

// SubmitTicket opens a customer-submitted ticket for the client bound to secret.
func (s *PortalAccessService) SubmitTicket(ctx context.Context, secret string, params SubmitTicketParams) (*model.Ticket, error) {
	if !util.IsWellFormedSecret(secret) {
		s.metrics.ObserveValidation(metrics.ResultMalformed)
		return nil, apperrors.MalformedToken()
	}

	subject := strings.TrimSpace(params.Subject)
	switch n := util.RuneLen(subject); {
	case n < config.MinTicketSubjectRunes:
		return nil, apperrors.ValidationError("Subject must be at least 3 characters").
			WithDetails(map[string]string{"field": "subject"})
	case n > config.MaxTicketSubjectRunes:
		return nil, apperrors.ValidationError("Subject must be at most 200 characters").
			WithDetails(map[string]string{"field": "subject"})
	}

	var description *string
	if d := strings.TrimSpace(params.Description); d != "" {
		if util.RuneLen(d) > config.MaxTicketDescriptionRunes {
			return nil, apperrors.ValidationError("Description must be at most 5000 characters").
				WithDetails(map[string]string{"field": "description"})
		}
		description = &d
	}

	scope, err := s.Validate(ctx, secret)
	if err != nil {
		return nil, err
	}

	if err := s.checkLimit(ctx, RateLimitOpSubmit, scope.Digest, s.limits.Submit); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Create(ctx, model.CreateTicketParams{
		ClientID:          scope.Client.ID,
		OrganizationID:    scope.Client.OrganizationID,
		Subject:           subject,
		Description:       description,
		Priority:          model.ParseTicketPriority(params.Priority),
		Status:            model.TicketStatusOpen,
		CustomerSubmitted: true,
		CustomerEmail:     scope.Email,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	s.metrics.TicketSubmitted()

	log.Info().
		Str("ticketId", ticket.ID).
		Str("clientId", ticket.ClientID).
		Str("tokenId", scope.TokenID).
		Msg("portal ticket submitted")

	return ticket, nil
}

func (s *PortalAccessService) checkLimit(ctx context.Context, op, digest string, limit int) error {
	key := op + ":" + util.DigestPrefix(digest)
	allowed, resetAt := s.limiter.CheckLimit(ctx, key, limit, s.limits.Window)
	if allowed {
		return nil
	}

	s.metrics.ObserveRateLimited(op)
	if op == RateLimitOpValidate {
		s.metrics.ObserveValidation(metrics.ResultRateLimited)
	}
	log.Warn().
		Str("operation", op).
		Str("digest", util.MaskDigest(digest)).
		Time("resetAt", resetAt).
		Msg("portal rate limit exceeded")

	msg := ""
	if op == RateLimitOpSubmit {
		msg = "Too many ticket submissions. Please wait."
	}
	return apperrors.RateLimitExceeded(msg).WithDetails(map[string]any{"retry_at": resetAt.UTC()})
}

func (s *PortalAccessService) resolve(ctx context.Context, digest string) (*ValidatedToken, error) {
	token, err := s.tokens.FindActiveByDigest(ctx, digest)
	if err != nil {
		s.metrics.ObserveValidation(metrics.ResultError)
		return nil, apperrors.Database(err)
	}

	if token == nil || !token.IsActive || !util.ConstantTimeEqual(token.TokenDigest, digest) {
		s.failureDelay(ctx)
		s.metrics.ObserveValidation(metrics.ResultInvalid)
		log.Info().Str("digest", util.MaskDigest(digest)).Msg("portal token not found")
		return nil, apperrors.InvalidToken()
	}

	now := s.now()
	if token.IsExpiredAt(now) {
		s.failureDelay(ctx)
		s.metrics.ObserveValidation(metrics.ResultExpired)
		log.Info().Str("tokenId", token.ID).Time("expiresAt", *token.ExpiresAt).Msg("portal token expired")
		return nil, apperrors.TokenExpired()
	}

	s.touchLastUsed(token.ID, now)
	s.metrics.ObserveValidation(metrics.ResultValid)

	return &ValidatedToken{
		TokenID: token.ID,
		Digest:  digest,
		Client:  token.Client(),
		Email:   token.HolderEmail,
		Name:    token.HolderName,
	}, nil
}

// touchLastUsed records use without holding up the response.
func (s *PortalAccessService) touchLastUsed(tokenID string, at time.Time) {
	s.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.LastUsedUpdateTimeout)
		defer cancel()
		if err := s.tokens.UpdateLastUsed(ctx, tokenID, at); err != nil {
			log.Warn().Err(err).Str("tokenId", tokenID).Msg("failed to update token last_used_at")
		}
	})
}

// failureDelay blurs the latency difference between unknown and expired tokens.
func (s *PortalAccessService) failureDelay(ctx context.Context) {
	jitter := time.Duration(rand.Int64N(int64(config.InvalidTokenDelayJitter)))
	s.sleep(ctx, config.InvalidTokenDelayMin+jitter)
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
