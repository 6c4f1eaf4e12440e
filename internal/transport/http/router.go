// Package httptransport wires the public HTTP surface: middleware stack,
// route groups, and their per-class admission limits.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auctionHandler "sayarat/internal/auction/handler"
	authHandler "sayarat/internal/auth/handler"
	"sayarat/internal/platform/health"
	"sayarat/internal/platform/middleware"
	rlMiddleware "sayarat/internal/ratelimit/middleware"
	rlmodels "sayarat/internal/ratelimit/models"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

// Deps collects everything the router needs. Handlers stay thin; all domain
// logic lives behind them.
type Deps struct {
	Auth     *authHandler.Handler
	Auction  *auctionHandler.Handler
	Verifier middleware.TokenVerifier
	Rate     *rlMiddleware.Middleware
	Health   *health.Handler

	TrustedProxies []netip.Prefix
	Logger         *slog.Logger
}

// NewRouter wires all public endpoints with the middleware stack. Route
// classes: login covers credential issuance, read covers anonymous browsing,
// write covers admin mutations, bid covers bid placement.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS)
	r.Use(requesttime.Middleware)
	r.Use(middleware.NewMetadata(d.TrustedProxies).Handler)

	d.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	// Credential surface. Refresh shares the login class: both mint tokens.
	r.Group(func(r chi.Router) {
		r.Use(d.Rate.RateLimit(rlmodels.ClassLogin))
		r.Post("/auth/login", d.Auth.Login)
		r.Post("/auth/refresh", d.Auth.Refresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Verifier))
		r.Get("/auth/me", d.Auth.Me)
	})

	// Public auction reads.
	r.Group(func(r chi.Router) {
		r.Use(d.Rate.RateLimit(rlmodels.ClassRead))
		r.Get("/auctions/{id}", d.Auction.Get)
		r.Get("/auctions/{id}/bids", d.Auction.ListBids)
	})

	// Bid placement: authenticated, its own admission class.
	r.Group(func(r chi.Router) {
		r.Use(d.Rate.RateLimit(rlmodels.ClassBid))
		r.Use(middleware.RequireAuth(d.Verifier))
		r.Post("/auctions/{id}/bids", d.Auction.PlaceBid)
	})

	// Admin mutations.
	r.Group(func(r chi.Router) {
		r.Use(d.Rate.RateLimit(rlmodels.ClassWrite))
		r.Use(middleware.RequireAuth(d.Verifier))
		r.Post("/auctions", d.Auction.Create)
		r.Post("/auctions/{id}/close", d.Auction.Close)
		r.Post("/auctions/{id}/cancel", d.Auction.Cancel)
	})

	return r
}
