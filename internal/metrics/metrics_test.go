package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("metrics collector should not be nil")
	}
	if m.TopupsInitiatedTotal == nil {
		t.Error("TopupsInitiatedTotal should be initialized")
	}
	if m.GiftsSentTotal == nil {
		t.Error("GiftsSentTotal should be initialized")
	}
	if m.WithdrawalsCreatedTotal == nil {
		t.Error("WithdrawalsCreatedTotal should be initialized")
	}
	if m.KYCSubmissionsTotal == nil {
		t.Error("KYCSubmissionsTotal should be initialized")
	}
	if m.RiskFlaggedTotal == nil {
		t.Error("RiskFlaggedTotal should be initialized")
	}
}

func TestTopupCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.TopupsInitiatedTotal.WithLabelValues("ChAPA").Inc()
	m.TopupsSuccessTotal.WithLabelValues("ChAPA").Inc()
	m.TopupAmountETBTotal.WithLabelValues("ChAPA").Add(12062)

	if v := promtest.ToFloat64(m.TopupsInitiatedTotal.WithLabelValues("ChAPA")); v != 1 {
		t.Errorf("expected 1 initiated top-up, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.TopupsSuccessTotal.WithLabelValues("ChAPA")); v != 1 {
		t.Errorf("expected 1 successful top-up, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.TopupAmountETBTotal.WithLabelValues("ChAPA")); v != 12062 {
		t.Errorf("expected 12062 cents settled, got %.0f", v)
	}
}

func TestGiftCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.GiftsSentTotal.WithLabelValues("rose").Inc()
	m.GiftValueETBTotal.Add(10000)
	m.CreatorPayoutETBTotal.Add(7500)

	if v := promtest.ToFloat64(m.GiftsSentTotal.WithLabelValues("rose")); v != 1 {
		t.Errorf("expected 1 gift sent, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.GiftValueETBTotal); v != 10000 {
		t.Errorf("expected 10000 cents gift value, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.CreatorPayoutETBTotal); v != 7500 {
		t.Errorf("expected 7500 cents creator payout, got %.0f", v)
	}
}

func TestWithdrawalCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.WithdrawalsCreatedTotal.WithLabelValues("CH").Inc()
	m.WithdrawalsApprovedTotal.Inc()
	m.WithdrawalsPaidTotal.Inc()

	if v := promtest.ToFloat64(m.WithdrawalsCreatedTotal.WithLabelValues("CH")); v != 1 {
		t.Errorf("expected 1 withdrawal created, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.WithdrawalsApprovedTotal); v != 1 {
		t.Errorf("expected 1 withdrawal approved, got %.0f", v)
	}
	if v := promtest.ToFloat64(m.WithdrawalsPaidTotal); v != 1 {
		t.Errorf("expected 1 withdrawal paid, got %.0f", v)
	}
}

func TestObserveRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRateLimit("gifts_send", "user-1")

	hits := promtest.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("gifts_send"))
	if hits != 1 {
		t.Errorf("expected 1 rate limit hit, got %.0f", hits)
	}
}

func TestObserveDBQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveDBQuery("lock_wallet", 5*time.Millisecond)

	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration should be initialized")
	}
}

func TestObserveProviderCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveProviderCall("initiate", "success", 120*time.Millisecond)

	calls := promtest.ToFloat64(m.ProviderCallsTotal.WithLabelValues("initiate", "success"))
	if calls != 1 {
		t.Errorf("expected 1 provider call, got %.0f", calls)
	}
}
