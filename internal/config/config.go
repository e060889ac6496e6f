package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with the defaults from spec.md §6.4.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Service:     "addispay-wallet",
			Environment: "production",
		},
		Database: DatabaseConfig{
			Backend:         "postgres",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration{Duration: 30 * time.Minute},
		},
		Money: MoneyConfig{
			VATRate:                0.15,
			PlatformCommissionRate: 0.25,
			GatewayRate:            0.03,
			GatewayFixedETB:        2.00,
			CoinsPerETB:            1,
		},
		Withdrawal: WithdrawalConfig{
			MinETB:        500,
			MaxDailyETB:   5000,
			MaxMonthlyETB: 50000,
		},
		Risk: RiskConfig{
			Window:                     Duration{Duration: 60 * time.Minute},
			ExcessiveTopupsCount:       5,
			LargeGiftsSumETB:           10000,
			RepeatWithdrawDestinations: 3,
			SweepInterval:              Duration{Duration: 10 * time.Minute},
		},
		Provider: ProviderConfig{
			ConnectTimeout: Duration{Duration: 10 * time.Second},
			ReadTimeout:    Duration{Duration: 20 * time.Second},
		},
		KYC: KYCConfig{
			ObjectStoreBackend: "filesystem",
			FilesystemRoot:     "./data/kyc",
		},
		Subscriptions: SubscriptionsConfig{
			Plans: []SubscriptionPlan{
				{Plan: "BOOST", PriceETB: 50, DurationDays: 30},
				{Plan: "LIKES_REVEAL", PriceETB: 75, DurationDays: 30},
				{Plan: "AD_FREE", PriceETB: 30, DurationDays: 30},
			},
		},
		RateLimit: RateLimitConfig{
			GiftSendLimit:  10,
			GiftSendWindow: Duration{Duration: time.Minute},
			GlobalLimit:    1000,
			GlobalWindow:   Duration{Duration: time.Minute},
			PerIPLimit:     120,
			PerIPWindow:    Duration{Duration: time.Minute},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			PaymentProvider: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			PayoutAdapter: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
		},
		Realtime: RealtimeConfig{
			Backend: "memory",
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
