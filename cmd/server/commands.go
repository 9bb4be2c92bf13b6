package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/automsp/portal-server-go/internal/config"
	"github.com/automsp/portal-server-go/internal/database"
	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/jobs"
	"github.com/automsp/portal-server-go/internal/middleware"
	"github.com/automsp/portal-server-go/internal/service"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	trustedProxies, err := cfg.TrustedProxies()
	if err != nil {
		return err
	}

	// Limiter cleanup goroutines end with this context.
	limitCtx, cancelLimits := context.WithCancel(context.Background())
	defer cancelLimits()

	router := newRouter(routerDeps{
		isProduction:   cfg.IsProduction(),
		trustedProxies: trustedProxies,
		metrics:        a.metrics,
		db:             a.db,
		access:         a.access,
		tokens:         a.tokens,
		staffAuth:      a.staffAuth,
		origins:        httputil.NewOriginPolicy(cfg.AllowedOrigins(), !cfg.IsProduction()),
		portalLimit:    middleware.NewIPRateLimitMiddleware(limitCtx, cfg.IPRateLimitRPS, cfg.IPRateLimitBurst, "portal"),
		staffLimit:     middleware.NewIPRateLimitMiddleware(limitCtx, cfg.IPRateLimitRPS, cfg.IPRateLimitBurst, "staff"),
	})

	sweeper := jobs.NewExpirySweeper(a.tokenRepo, a.metrics, config.ExpirySweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

func runMigrate(ctx context.Context, statusOnly bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if statusOnly {
		return database.MigrationStatus(ctx, db.DB.DB)
	}
	if err := database.Migrate(ctx, db.DB.DB); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

type issueTokenArgs struct {
	userID      string
	clientID    string
	email       string
	name        string
	expiresDays int
}

// runIssueToken goes through the same authorization and replacement path as
// the HTTP endpoint, with the staff user taken from the flag.
func runIssueToken(ctx context.Context, args issueTokenArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	params := service.IssueTokenParams{
		ClientID: args.clientID,
		Email:    args.email,
		Name:     args.name,
	}
	if args.expiresDays != 0 {
		days := args.expiresDays
		params.ExpiresDays = &days
	}

	issued, err := a.tokens.Issue(ctx, &service.StaffIdentity{UserID: args.userID}, params)
	if err != nil {
		return err
	}

	fmt.Printf("Token ID:   %s\n", issued.Record.ID)
	fmt.Printf("Token:      %s\n", issued.Token)
	fmt.Printf("Portal URL: %s\n", issued.PortalURL)
	fmt.Printf("Expires at: %s\n", issued.ExpiresAt.UTC().Format(time.RFC3339))
	if issued.Replaced > 0 {
		fmt.Printf("Replaced:   %d previous token(s)\n", issued.Replaced)
	}
	fmt.Println("\nThe token is shown only once. Deliver the portal URL to the holder.")
	return nil
}

func runRevokeToken(ctx context.Context, userID, tokenID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	revoked, err := a.tokens.Revoke(ctx, &service.StaffIdentity{UserID: userID}, tokenID)
	if err != nil {
		return err
	}

	fmt.Printf("Revoked token %s for %s\n", revoked.ID, revoked.HolderEmail)
	return nil
}

func runSweepExpired(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := jobs.NewExpirySweeper(a.tokenRepo, a.metrics, config.ExpirySweepInterval).RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Deactivated %d expired token(s)\n", count)
	return nil
}
