// Package walletapp wires every domain service onto a single ledger.Store
// and HTTP server: config -> store -> services -> router -> lifecycle.
package walletapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/addispay/wallet-server/internal/auth"
	"github.com/addispay/wallet-server/internal/circuitbreaker"
	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/gifts"
	"github.com/addispay/wallet-server/internal/httpserver"
	"github.com/addispay/wallet-server/internal/kyc"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/lifecycle"
	"github.com/addispay/wallet-server/internal/logger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/provider"
	"github.com/addispay/wallet-server/internal/realtime"
	"github.com/addispay/wallet-server/internal/risk"
	"github.com/addispay/wallet-server/internal/scheduler"
	"github.com/addispay/wallet-server/internal/subscriptions"
	"github.com/addispay/wallet-server/internal/topup"
	"github.com/addispay/wallet-server/internal/webhook"
	"github.com/addispay/wallet-server/internal/withdrawals"
)

// App is the fully wired wallet backend: one store, one set of domain
// services, one HTTP server, and the background scheduler that sweeps perk
// expiry and risk re-evaluation.
type App struct {
	Config    *config.Config
	Store     ledger.Store
	Server    *httpserver.Server
	Scheduler *scheduler.Scheduler
	Risk      *risk.Service
	Lifecycle *lifecycle.Manager
	Logger    zerolog.Logger
}

// AuthStore lets callers supply a token->principal table; production
// deployments swap in a Store backed by their identity provider's session
// table (spec.md §9 Non-goals: issuance/rotation is out of scope here).
type AuthStore = auth.Store

// New builds an App from cfg. store may be nil, in which case New opens a
// Postgres store (or an in-memory one when cfg.Database.Backend is
// "memory") and registers it with the returned Lifecycle manager.
// authStore may be nil, in which case an empty auth.StaticStore is used
// (no bearer token will authenticate — callers should supply their own).
func New(cfg *config.Config, store ledger.Store, authStore AuthStore, registry prometheus.Registerer) (*App, error) {
	log := logger.New(cfg.Logging)
	lc := lifecycle.NewManager()

	if store == nil {
		built, err := openStore(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("walletapp: open store: %w", err)
		}
		store = built
		if closer, ok := built.(interface{ Close() error }); ok {
			lc.RegisterFunc("ledger_store", closer.Close)
		}
	}
	if authStore == nil {
		authStore = auth.StaticStore{}
	}

	m := metrics.New(registry)

	breaker := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)
	providerClient := provider.NewClient(cfg.Provider, breaker)
	payoutAdapter := provider.NewStubPayoutAdapter(breaker)
	notifier := realtime.NewInMemoryNotifier()

	kycSealer, err := buildKYCSealer(cfg.KYC)
	if err != nil {
		return nil, fmt.Errorf("walletapp: kyc sealer: %w", err)
	}

	riskSvc := &risk.Service{
		Store: store,
		Config: risk.Config{
			Window:                     cfg.Risk.Window.Duration,
			ExcessiveTopupsCount:       cfg.Risk.ExcessiveTopupsCount,
			LargeGiftsSumETB:           money.FromFloat(cfg.Risk.LargeGiftsSumETB),
			RepeatWithdrawDestinations: cfg.Risk.RepeatWithdrawDestinations,
		},
		Metrics: m,
	}

	topupSvc := &topup.Service{
		Store:       store,
		Provider:    providerClient,
		Metrics:     m,
		CallbackURL: cfg.Provider.CallbackURL,
	}
	giftsSvc := &gifts.Service{
		Store:          store,
		Notifier:       notifier,
		Metrics:        m,
		Risk:           riskSvc,
		CommissionRate: cfg.Money.PlatformCommissionRate,
		VATRate:        cfg.Money.VATRate,
	}
	withdrawalsSvc := &withdrawals.Service{
		Store:    store,
		Payout:   payoutAdapter,
		Notifier: notifier,
		Metrics:  m,
		Risk:     riskSvc,
		Config: withdrawals.Config{
			MinETB:        money.FromFloat(cfg.Withdrawal.MinETB),
			MaxDailyETB:   money.FromFloat(cfg.Withdrawal.MaxDailyETB),
			MaxMonthlyETB: money.FromFloat(cfg.Withdrawal.MaxMonthlyETB),
		},
	}
	kycSvc := &kyc.Service{Store: store, Sealer: kycSealer, Metrics: m}
	subsSvc := &subscriptions.Service{
		Store:       store,
		Provider:    providerClient,
		Notifier:    notifier,
		Metrics:     m,
		Plans:       planPricing(cfg.Subscriptions),
		CallbackURL: cfg.Provider.CallbackURL,
	}

	webhookHandler := &webhook.Handler{
		Store:     store,
		Verifier:  providerClient,
		Notifier:  notifier,
		Metrics:   m,
		Risk:      riskSvc,
		SignKey:   []byte(cfg.Provider.WebhookSecret),
		DevBypass: cfg.Provider.DevBypass,
	}

	server := httpserver.New(httpserver.Deps{
		Config:        cfg,
		Store:         store,
		Auth:          authStore,
		Gifts:         giftsSvc,
		Topup:         topupSvc,
		Withdrawals:   withdrawalsSvc,
		KYC:           kycSvc,
		Subscriptions: subsSvc,
		Webhook:       webhookHandler,
		Metrics:       m,
		Logger:        log,
		DevActivate:   cfg.Provider.DevBypass,
	})

	sched := &scheduler.Scheduler{
		Store:             store,
		Risk:              riskSvc,
		Metrics:           m,
		PerkSweepInterval:  cfg.Risk.SweepInterval.Duration,
		RiskSweepInterval:  cfg.Risk.SweepInterval.Duration,
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Server:    server,
		Scheduler: sched,
		Risk:      riskSvc,
		Lifecycle: lc,
		Logger:    log,
	}, nil
}

// Run starts the background scheduler and blocks serving HTTP until ctx is
// cancelled, then drains both in order.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	defer a.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.WriteTimeout.Duration)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("walletapp.shutdown_failed")
		}
		<-errCh
		return a.Lifecycle.Close()
	case err := <-errCh:
		closeErr := a.Lifecycle.Close()
		if err != nil {
			return err
		}
		return closeErr
	}
}

func openStore(cfg config.DatabaseConfig) (ledger.Store, error) {
	if cfg.Backend == "memory" {
		return ledger.NewMemoryStore(), nil
	}
	return ledger.NewPostgresStore(cfg.PostgresURL, cfg)
}

func buildKYCSealer(cfg config.KYCConfig) (*kyc.AESGCMSealer, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("kyc encryption_key is not valid base64: %w", err)
	}
	return kyc.NewAESGCMSealer(key)
}

func planPricing(cfg config.SubscriptionsConfig) []subscriptions.PlanPricing {
	out := make([]subscriptions.PlanPricing, 0, len(cfg.Plans))
	for _, p := range cfg.Plans {
		out = append(out, subscriptions.PlanPricing{
			Plan:         ledger.SubscriptionPlan(p.Plan),
			PriceETB:     money.FromFloat(p.PriceETB),
			DurationDays: p.DurationDays,
		})
	}
	return out
}
