package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// requiredPerkPlans is the closed vocabulary of subscription perks from spec.md §3/§4.7.
var requiredPerkPlans = []string{"BOOST", "LIKES_REVEAL", "AD_FREE"}

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.Backend == "" {
		c.Database.Backend = "postgres"
	}
	if c.Risk.Window.Duration <= 0 {
		c.Risk.Window = Duration{Duration: 60 * time.Minute}
	}
	if c.Risk.SweepInterval.Duration <= 0 {
		c.Risk.SweepInterval = Duration{Duration: 10 * time.Minute}
	}
	if c.RateLimit.GiftSendWindow.Duration <= 0 {
		c.RateLimit.GiftSendWindow = Duration{Duration: time.Minute}
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly, per
// spec.md §6.4's tunables and the Open Question decisions recorded in DESIGN.md.
func (c *Config) validate() error {
	var errs []string

	if c.Money.GatewayRate >= 1 {
		errs = append(errs, "money.gateway_rate must be < 1 (gross_topup_price divides by 1 - gateway_rate)")
	}
	if c.Money.VATRate < 0 {
		errs = append(errs, "money.vat_rate must be >= 0")
	}
	if c.Money.PlatformCommissionRate < 0 || c.Money.PlatformCommissionRate > 1 {
		errs = append(errs, "money.platform_commission_rate must be within [0,1]")
	}

	if c.Withdrawal.MinETB <= 0 {
		errs = append(errs, "withdrawal.min_etb must be > 0")
	}
	if c.Withdrawal.MaxDailyETB < c.Withdrawal.MinETB {
		errs = append(errs, "withdrawal.max_daily_etb must be >= withdrawal.min_etb")
	}
	if c.Withdrawal.MaxMonthlyETB < c.Withdrawal.MaxDailyETB {
		errs = append(errs, "withdrawal.max_monthly_etb must be >= withdrawal.max_daily_etb")
	}

	if c.Database.Backend == "postgres" && c.Database.PostgresURL == "" {
		errs = append(errs, "database.postgres_url is required when database.backend is 'postgres'")
	}

	if c.KYC.EncryptionKey == "" {
		errs = append(errs, "kyc.encryption_key is required — KYC documents must always be encrypted at rest")
	}

	// Subscription dual-pricing (spec.md §9 OQ3): exactly one authoritative
	// price + duration per required perk, decided at boot time.
	seen := make(map[string]bool, len(requiredPerkPlans))
	for _, p := range c.Subscriptions.Plans {
		if seen[p.Plan] {
			errs = append(errs, fmt.Sprintf("subscriptions.plans has duplicate entry for plan %q", p.Plan))
			continue
		}
		seen[p.Plan] = true
		if p.PriceETB <= 0 {
			errs = append(errs, fmt.Sprintf("subscriptions.plans[%s].price_etb must be > 0", p.Plan))
		}
		if p.DurationDays <= 0 {
			errs = append(errs, fmt.Sprintf("subscriptions.plans[%s].duration_days must be > 0", p.Plan))
		}
	}
	for _, required := range requiredPerkPlans {
		if !seen[required] {
			errs = append(errs, fmt.Sprintf("subscriptions.plans is missing required plan %q", required))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
func ApplyPostgresPoolSettings(db *sql.DB, cfg DatabaseConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	maxLifetime := cfg.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 30 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
