package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/automsp/portal-server-go/internal/config"
	"github.com/automsp/portal-server-go/internal/database"
	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/redis"
	"github.com/automsp/portal-server-go/internal/repository"
	"github.com/automsp/portal-server-go/internal/service"
)

// app holds the wiring shared by the server and the operator commands.
type app struct {
	cfg     *config.Config
	db      *database.DB
	redis   *redis.Client
	metrics *metrics.Metrics

	tokenRepo repository.PortalTokenRepository
	staffAuth *service.StaffAuthenticator
	tokens    *service.PortalTokenService
	access    *service.PortalAccessService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connected")

	a := &app{cfg: cfg, db: db, metrics: metrics.New()}

	var limiter service.RateLimiter
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		a.redis, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Msg("redis connected")
		limiter = service.NewRedisRateLimiter(a.redis.Client)
	default:
		limiter = service.NewMemoryRateLimiter()
	}

	a.tokenRepo = repository.NewPortalTokenRepository(db.DB)
	clientRepo := repository.NewClientRepository(db.DB)
	membershipRepo := repository.NewMembershipRepository(db.DB)
	ticketRepo := repository.NewTicketRepository(db.DB)

	a.staffAuth = service.NewStaffAuthenticator(cfg.StaffJWTSecret, cfg.StaffJWTIssuer)
	authz := service.NewAuthorizer(clientRepo, membershipRepo)
	a.tokens = service.NewPortalTokenService(
		db, a.tokenRepo, clientRepo, authz, a.metrics,
		cfg.PortalBaseURL, cfg.DefaultTokenExpiryDays,
	)
	a.access = service.NewPortalAccessService(
		a.tokenRepo, ticketRepo, limiter,
		service.PortalAccessLimits{
			Validate: cfg.ValidateRateLimit,
			Submit:   cfg.SubmitRateLimit,
			Window:   cfg.RateLimitWindow(),
		},
		a.metrics,
	)

	log.Info().Str("backend", cfg.RateLimitBackend).Msg("portal rate limiter ready")

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
