package metrics

import "time"

// MeasureDBQuery wraps a ledger store operation with timing instrumentation.
// Usage:
//
//	defer metrics.MeasureDBQuery(m, "lock_wallet")()
func MeasureDBQuery(m *Metrics, operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ObserveDBQuery(operation, time.Since(start))
	}
}

// ObserveDBQuery records a ledger store operation duration.
func (m *Metrics) ObserveDBQuery(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveProviderCall records an outbound call to the payment provider or payout adapter.
func (m *Metrics) ObserveProviderCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
