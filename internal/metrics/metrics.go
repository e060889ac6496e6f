package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the wallet/payments core.
type Metrics struct {
	// Top-up metrics (C3/C4)
	TopupsInitiatedTotal *prometheus.CounterVec
	TopupsSuccessTotal   *prometheus.CounterVec
	TopupsFailedTotal    *prometheus.CounterVec
	TopupAmountETBTotal  *prometheus.CounterVec
	TopupDuration        *prometheus.HistogramVec
	WebhookDuration      *prometheus.HistogramVec
	WebhookReplaysTotal  *prometheus.CounterVec

	// Gift metrics (C5)
	GiftsSentTotal       *prometheus.CounterVec
	GiftsFailedTotal     *prometheus.CounterVec
	GiftValueETBTotal    prometheus.Counter
	CreatorPayoutETBTotal prometheus.Counter
	GiftSendDuration     prometheus.Histogram

	// Withdrawal metrics (C6)
	WithdrawalsCreatedTotal  *prometheus.CounterVec
	WithdrawalsApprovedTotal prometheus.Counter
	WithdrawalsRejectedTotal prometheus.Counter
	WithdrawalsPaidTotal     prometheus.Counter
	WithdrawalPayoutDuration prometheus.Histogram

	// Subscription metrics (C7)
	SubscriptionPurchasesTotal *prometheus.CounterVec
	PerkExpirySweepDuration    prometheus.Histogram
	PerksExpiredTotal          *prometheus.CounterVec

	// KYC metrics (C8)
	KYCSubmissionsTotal *prometheus.CounterVec
	KYCReviewsTotal     *prometheus.CounterVec

	// Risk metrics (C9)
	RiskFlaggedTotal   *prometheus.CounterVec
	RiskSweepDuration  prometheus.Histogram

	// Provider call metrics
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		TopupsInitiatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_topups_initiated_total",
				Help: "Total number of top-up payments initiated",
			},
			[]string{"provider"},
		),
		TopupsSuccessTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_topups_success_total",
				Help: "Total number of top-up payments settled successfully",
			},
			[]string{"provider"},
		),
		TopupsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_topups_failed_total",
				Help: "Total number of top-up payments that failed",
			},
			[]string{"provider", "reason"},
		),
		TopupAmountETBTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_topup_amount_etb_cents_total",
				Help: "Total settled top-up amount in ETB cents",
			},
			[]string{"provider"},
		),
		TopupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_topup_initiate_duration_seconds",
				Help:    "Time taken to initiate a top-up against the payment provider",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"provider"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_webhook_handle_duration_seconds",
				Help:    "Time taken to process a settlement webhook",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		WebhookReplaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_webhook_replays_total",
				Help: "Total number of webhook deliveries that matched an already-settled payment",
			},
			[]string{"kind"},
		),

		GiftsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_gifts_sent_total",
				Help: "Total number of successful gift sends",
			},
			[]string{"gift"},
		),
		GiftsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_gifts_failed_total",
				Help: "Total number of failed gift send attempts",
			},
			[]string{"reason"},
		),
		GiftValueETBTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_gift_value_etb_cents_total",
				Help: "Total reference value (ETB cents) of successfully sent gifts",
			},
		),
		CreatorPayoutETBTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_creator_payout_etb_cents_total",
				Help: "Total creator earnings credited (ETB cents) from gift sends",
			},
		),
		GiftSendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wallet_gift_send_duration_seconds",
				Help:    "Time taken to process a gift send transaction",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),

		WithdrawalsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_withdrawals_created_total",
				Help: "Total number of withdrawal requests created",
			},
			[]string{"method"},
		),
		WithdrawalsApprovedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_withdrawals_approved_total",
				Help: "Total number of withdrawal requests approved by an admin",
			},
		),
		WithdrawalsRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_withdrawals_rejected_total",
				Help: "Total number of withdrawal requests rejected by an admin",
			},
		),
		WithdrawalsPaidTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_withdrawals_paid_total",
				Help: "Total number of withdrawal requests paid out",
			},
		),
		WithdrawalPayoutDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wallet_withdrawal_payout_duration_seconds",
				Help:    "Time taken for the payout adapter to settle an approved withdrawal",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		SubscriptionPurchasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_subscription_purchases_total",
				Help: "Total number of subscription perk purchases",
			},
			[]string{"plan", "status"},
		),
		PerkExpirySweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wallet_perk_expiry_sweep_duration_seconds",
				Help:    "Time taken to run one perk-expiry sweep pass",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		PerksExpiredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_perks_expired_total",
				Help: "Total number of perk flags cleared by the expiry sweep",
			},
			[]string{"plan"},
		),

		KYCSubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_kyc_submissions_total",
				Help: "Total number of KYC submissions accepted",
			},
			[]string{"doc_type"},
		),
		KYCReviewsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_kyc_reviews_total",
				Help: "Total number of KYC submissions reviewed",
			},
			[]string{"decision"},
		),

		RiskFlaggedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_risk_flagged_total",
				Help: "Total number of risk evaluations that resulted in a flag change",
			},
			[]string{"outcome"},
		),
		RiskSweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wallet_risk_sweep_duration_seconds",
				Help:    "Time taken to run one all-users risk sweep pass",
				Buckets: []float64{0.1, 1, 5, 10, 30, 60, 180},
			},
		),

		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_calls_total",
				Help: "Total number of outbound calls to the payment provider or payout adapter",
			},
			[]string{"operation", "outcome"},
		),
		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_provider_call_duration_seconds",
				Help:    "Duration of outbound calls to the payment provider or payout adapter",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"operation"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_rate_limit_hits_total",
				Help: "Total number of requests rejected by a rate limiter",
			},
			[]string{"scope"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_db_query_duration_seconds",
				Help:    "Duration of ledger store operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObserveRateLimit records a rate-limit rejection for the named scope.
func (m *Metrics) ObserveRateLimit(scope, _ string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(scope).Inc()
}
