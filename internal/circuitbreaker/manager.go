package circuitbreaker

import (
	"fmt"
	"time"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/sony/gobreaker"
)

// ServiceType identifies different external services for circuit breaker isolation.
type ServiceType string

const (
	// ServicePaymentProvider guards calls to the top-up initiate/verify provider (spec.md §6.2).
	ServicePaymentProvider ServiceType = "payment_provider"
	// ServicePayoutAdapter guards calls to the withdrawal payout adapter (spec.md §6.2).
	ServicePayoutAdapter ServiceType = "payout_adapter"
)

// Manager manages circuit breakers for different external services.
// Provides bulkhead isolation - each service has its own circuit breaker
// to prevent cascading failures across service boundaries.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	config   Config
}

// Config holds circuit breaker configuration for all services.
type Config struct {
	Enabled         bool
	PaymentProvider BreakerConfig
	PayoutAdapter   BreakerConfig
}

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the circuit breaker is half-open. Default: 3
	MaxRequests uint32

	// Interval is the cyclic period in closed state to clear the internal counts.
	// If 0, never clears. Default: 60s
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	// Default: 30s
	Timeout time.Duration

	// ReadyToTrip is called whenever a request fails in the closed state.
	// If it returns true, the circuit breaker trips to open state.
	// Default: 5 consecutive failures or 50% failure rate over 10 requests
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// NewManagerFromConfig creates a circuit breaker manager from application config.
func NewManagerFromConfig(cfg config.CircuitBreakerConfig) *Manager {
	return NewManager(Config{
		Enabled: cfg.Enabled,
		PaymentProvider: BreakerConfig{
			MaxRequests:         cfg.PaymentProvider.MaxRequests,
			Interval:            cfg.PaymentProvider.Interval.Duration,
			Timeout:             cfg.PaymentProvider.Timeout.Duration,
			ConsecutiveFailures: cfg.PaymentProvider.ConsecutiveFailures,
			FailureRatio:        cfg.PaymentProvider.FailureRatio,
			MinRequests:         cfg.PaymentProvider.MinRequests,
		},
		PayoutAdapter: BreakerConfig{
			MaxRequests:         cfg.PayoutAdapter.MaxRequests,
			Interval:            cfg.PayoutAdapter.Interval.Duration,
			Timeout:             cfg.PayoutAdapter.Timeout.Duration,
			ConsecutiveFailures: cfg.PayoutAdapter.ConsecutiveFailures,
			FailureRatio:        cfg.PayoutAdapter.FailureRatio,
			MinRequests:         cfg.PayoutAdapter.MinRequests,
		},
	})
}

// NewManager creates a circuit breaker manager with the given configuration.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		config:   cfg,
	}

	if !cfg.Enabled {
		// Return manager with no breakers (pass-through)
		return m
	}

	m.breakers[ServicePaymentProvider] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(ServicePaymentProvider), cfg.PaymentProvider))
	m.breakers[ServicePayoutAdapter] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(ServicePayoutAdapter), cfg.PayoutAdapter))

	return m
}

// Execute wraps a function call with circuit breaker protection.
// If circuit breaker is disabled or not configured for the service, executes directly.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	if !m.config.Enabled {
		return fn()
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return fn()
	}

	return breaker.Execute(fn)
}

// State returns the current state of a circuit breaker.
// Returns "disabled" if circuit breakers are not enabled or service not found.
func (m *Manager) State(service ServiceType) string {
	if !m.config.Enabled {
		return "disabled"
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}

	return breaker.State().String()
}

// Counts returns the current counts for a circuit breaker.
func (m *Manager) Counts(service ServiceType) Counts {
	if !m.config.Enabled {
		return Counts{}
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return Counts{}
	}

	c := breaker.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// toGobreakerSettings converts our config to gobreaker.Settings.
func toGobreakerSettings(name string, cfg BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
				if counts.Requests >= cfg.MinRequests {
					failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
					if failureRate >= cfg.FailureRatio {
						return true
					}
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			fmt.Printf("circuit breaker %s: %s -> %s\n", name, from.String(), to.String())
		},
	}
}

// DefaultConfig returns sensible defaults for circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		PaymentProvider: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
		PayoutAdapter: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
	}
}
