package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/addispay/wallet-server/internal/auth"
	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/gifts"
	"github.com/addispay/wallet-server/internal/idempotency"
	"github.com/addispay/wallet-server/internal/kyc"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/logger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/ratelimit"
	"github.com/addispay/wallet-server/internal/subscriptions"
	"github.com/addispay/wallet-server/internal/topup"
	"github.com/addispay/wallet-server/internal/webhook"
	"github.com/addispay/wallet-server/internal/withdrawals"
)

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg           *config.Config
	store         ledger.Store
	auth          auth.Store
	gifts         *gifts.Service
	topup         *topup.Service
	withdrawals   *withdrawals.Service
	kyc           *kyc.Service
	subscriptions *subscriptions.Service
	webhook       *webhook.Handler
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	devActivate   bool // exposes POST /api/subscriptions/activate (spec.md §4.7 dev path)
	catalog       *catalogCache
}

// Deps collects every dependency ConfigureRouter needs to build the route tree.
type Deps struct {
	Config        *config.Config
	Store         ledger.Store
	Auth          auth.Store
	Gifts         *gifts.Service
	Topup         *topup.Service
	Withdrawals   *withdrawals.Service
	KYC           *kyc.Service
	Subscriptions *subscriptions.Service
	Webhook       *webhook.Handler
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
	DevActivate   bool
}

// New builds the HTTP server with configured router.
func New(deps Deps) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:           deps.Config,
			store:         deps.Store,
			auth:          deps.Auth,
			gifts:         deps.Gifts,
			topup:         deps.Topup,
			withdrawals:   deps.Withdrawals,
			kyc:           deps.KYC,
			subscriptions: deps.Subscriptions,
			webhook:       deps.Webhook,
			metrics:       deps.Metrics,
			logger:        deps.Logger,
			devActivate:   deps.DevActivate,
			catalog:       newCatalogCache(),
		},
		httpServer: &http.Server{
			Addr:         deps.Config.Server.Address,
			ReadTimeout:  deps.Config.Server.ReadTimeout.Duration,
			WriteTimeout: deps.Config.Server.WriteTimeout.Duration,
			IdleTimeout:  deps.Config.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, deps)
	return s
}

// ConfigureRouter attaches the wallet API routes to an existing router.
func ConfigureRouter(router chi.Router, deps Deps) {
	if router == nil {
		return
	}

	h := handlers{
		cfg:           deps.Config,
		store:         deps.Store,
		auth:          deps.Auth,
		gifts:         deps.Gifts,
		topup:         deps.Topup,
		withdrawals:   deps.Withdrawals,
		kyc:           deps.KYC,
		subscriptions: deps.Subscriptions,
		webhook:       deps.Webhook,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		devActivate:   deps.DevActivate,
		catalog:       newCatalogCache(),
	}

	if len(deps.Config.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	rateLimitCfg := ratelimit.Config{
		GlobalEnabled: true,
		GlobalLimit:   deps.Config.RateLimit.GlobalLimit,
		GlobalWindow:  deps.Config.RateLimit.GlobalWindow.Duration,

		PerUserEnabled: true,
		PerUserLimit:   deps.Config.RateLimit.GiftSendLimit,
		PerUserWindow:  deps.Config.RateLimit.GiftSendWindow.Duration,
		PerUserScope:   "gifts_send",

		PerIPEnabled: true,
		PerIPLimit:   deps.Config.RateLimit.PerIPLimit,
		PerIPWindow:  deps.Config.RateLimit.PerIPWindow.Duration,

		Metrics: deps.Metrics,
	}
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	giftLimiter := ratelimit.UserLimiter(rateLimitCfg)

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMW := idempotency.Middleware(idempotencyStore, 24*time.Hour)

	requireUser := auth.RequireUser(deps.Auth, unauthorized)
	requireAdmin := auth.RequireAdmin(forbidden)

	// Lightweight read-only/catalog endpoints (spec.md §4.1/§4.7 listings).
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/healthz", h.health)
		r.Get("/api/gifts", h.listGifts)
		r.Get("/api/coins/packages", h.listPackages)
		r.Get("/api/subscription-plans", h.listSubscriptionPlans)
		r.With(adminMetricsAuth(deps.Config.Server.AdminMetricsAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	// Provider webhook — no auth middleware, verified by HMAC signature (C4).
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Handle("/webhooks/chapa", deps.Webhook)
	})

	// Authenticated money-moving endpoints (spec.md §4.3/§4.5/§4.6/§4.7/§4.8).
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(requireUser)

		r.With(idempotencyMW).Post("/api/coins/topup", h.createTopup)
		r.Get("/api/payments/{id}/receipt", h.getReceipt)

		r.With(giftLimiter, idempotencyMW).Post("/api/gifts/send", h.sendGift)

		r.Get("/api/wallet", h.getWallet)
		r.With(idempotencyMW).Post("/api/wallet/withdraw", h.createWithdrawal)

		r.Post("/api/kyc/submit", h.submitKYC)

		r.With(idempotencyMW).Post("/api/subscriptions/subscribe", h.subscribe)
		if deps.DevActivate {
			r.Post("/api/subscriptions/activate", h.devActivateSubscription)
		}
	})

	// Admin-only withdrawal review endpoints (spec.md §4.6 "approve/reject").
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(requireUser, requireAdmin)

		r.Get("/api/admin/withdrawals", h.listWithdrawals)
		r.Post("/api/admin/withdrawals/{id}/approve", h.approveWithdrawal)
		r.Post("/api/admin/withdrawals/{id}/reject", h.rejectWithdrawal)
		r.Post("/api/admin/kyc/{id}/review", h.reviewKYC)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
