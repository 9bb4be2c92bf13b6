package main

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/automsp/portal-server-go/internal/config"
	"github.com/automsp/portal-server-go/internal/handler"
	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/middleware"
	"github.com/automsp/portal-server-go/internal/service"
)

type routerDeps struct {
	isProduction   bool
	trustedProxies []netip.Prefix
	metrics        *metrics.Metrics
	db             handler.Pinger
	access         *service.PortalAccessService
	tokens         *service.PortalTokenService
	staffAuth      middleware.StaffVerifier
	origins        *httputil.OriginPolicy
	portalLimit    *middleware.IPRateLimitMiddleware
	staffLimit     *middleware.IPRateLimitMiddleware
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewTrustedProxyMiddleware(d.trustedProxies).Handler)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.NewMetricsMiddleware(d.metrics).Handler)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.NewSecurityHeadersMiddleware(d.isProduction).Handler)
	r.Use(middleware.NewCORSMiddleware(d.origins).Handler)
	r.Use(middleware.NewBodyLimitMiddleware(0).Handler)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", handler.NewHealthHandler(d.db).ServeHTTP)
	if d.metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.metrics.Handler())
	}

	r.With(d.portalLimit.Handler).
		Mount("/customer-portal", handler.NewPortalAccessHandler(d.access).Routes())

	r.Group(func(r chi.Router) {
		r.Use(d.staffLimit.Handler)
		r.Use(middleware.NewStaffAuthMiddleware(d.staffAuth).Handler)
		handler.NewPortalTokenHandler(d.tokens, d.origins).RegisterRoutes(r)
	})

	return r
}
