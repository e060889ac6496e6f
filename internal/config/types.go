package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config aggregates application configuration from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Database       DatabaseConfig       `yaml:"database"`
	Money          MoneyConfig          `yaml:"money"`
	Withdrawal     WithdrawalConfig     `yaml:"withdrawal"`
	Risk           RiskConfig           `yaml:"risk"`
	Provider       ProviderConfig       `yaml:"provider"`
	KYC            KYCConfig            `yaml:"kyc"`
	Subscriptions  SubscriptionsConfig  `yaml:"subscriptions"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Realtime       RealtimeConfig       `yaml:"realtime"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout         Duration `yaml:"read_timeout"`
	WriteTimeout        Duration `yaml:"write_timeout"`
	IdleTimeout         Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	AdminMetricsAPIKey  string   `yaml:"admin_metrics_api_key"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Service     string `yaml:"service"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig holds the ledger store's Postgres connection settings.
type DatabaseConfig struct {
	Backend         string   `yaml:"backend"` // "postgres" or "memory"
	PostgresURL     string   `yaml:"postgres_url"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// MoneyConfig holds the fixed-point pricing constants from spec.md §6.4.
type MoneyConfig struct {
	VATRate                float64 `yaml:"vat_rate"`
	PlatformCommissionRate float64 `yaml:"platform_commission_rate"`
	GatewayRate            float64 `yaml:"gateway_rate"`
	GatewayFixedETB        float64 `yaml:"gateway_fixed_etb"`
	CoinsPerETB            float64 `yaml:"coins_per_etb"`
}

// WithdrawalConfig holds withdrawal policy limits.
type WithdrawalConfig struct {
	MinETB        float64 `yaml:"min_etb"`
	MaxDailyETB   float64 `yaml:"max_daily_etb"`
	MaxMonthlyETB float64 `yaml:"max_monthly_etb"`
}

// RiskConfig holds risk-engine rule thresholds, all within a one-hour window by default.
type RiskConfig struct {
	Window                     Duration `yaml:"window"`
	ExcessiveTopupsCount       int      `yaml:"excessive_topups_count"`
	LargeGiftsSumETB           float64  `yaml:"large_gifts_sum_etb"`
	RepeatWithdrawDestinations int      `yaml:"repeat_withdraw_destinations"`
	SweepInterval              Duration `yaml:"sweep_interval"`
}

// ProviderConfig holds the external payment provider and payout adapter settings.
type ProviderConfig struct {
	BaseURL        string   `yaml:"base_url"`
	SecretKey      string   `yaml:"secret_key"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	CallbackURL    string   `yaml:"callback_url"`
	BackendURL     string   `yaml:"backend_url"`
	FrontendURL    string   `yaml:"frontend_url"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	DevBypass      bool     `yaml:"dev_bypass"`
}

// KYCConfig holds document-encryption settings. KYC document/selfie bytes
// are sealed with AES-256-GCM and stored as cipher fields directly on the
// KYCSubmission ledger row — no separate object store. ObjectStoreBackend
// and FilesystemRoot are loaded and defaulted, but no code reads them.
type KYCConfig struct {
	EncryptionKey      string `yaml:"encryption_key"` // base64, 32 bytes when decoded
	ObjectStoreBackend string `yaml:"object_store_backend"`
	FilesystemRoot     string `yaml:"filesystem_root"`
}

// SubscriptionPlan is one authoritative priced perk offering.
type SubscriptionPlan struct {
	Plan         string  `yaml:"plan"`
	PriceETB     float64 `yaml:"price_etb"`
	DurationDays int     `yaml:"duration_days"`
}

// SubscriptionsConfig holds the single authoritative price table for perks (spec.md §9 OQ3).
type SubscriptionsConfig struct {
	Plans []SubscriptionPlan `yaml:"plans"`
}

// RateLimitConfig configures API-surface throttles.
type RateLimitConfig struct {
	GiftSendLimit  int      `yaml:"gift_send_limit"`
	GiftSendWindow Duration `yaml:"gift_send_window"`
	GlobalLimit    int      `yaml:"global_limit"`
	GlobalWindow   Duration `yaml:"global_window"`
	PerIPLimit     int      `yaml:"per_ip_limit"`
	PerIPWindow    Duration `yaml:"per_ip_window"`
}

// BreakerServiceConfig configures one named circuit breaker.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}

// CircuitBreakerConfig configures the breakers guarding outbound provider calls.
type CircuitBreakerConfig struct {
	Enabled         bool                 `yaml:"enabled"`
	PaymentProvider BreakerServiceConfig `yaml:"payment_provider"`
	PayoutAdapter   BreakerServiceConfig `yaml:"payout_adapter"`
}

// RealtimeConfig configures the notifier.
type RealtimeConfig struct {
	Backend string `yaml:"backend"` // "memory" for now; external transport is a future option
}
