package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// Server, logging and database settings use the APP_ prefix; the money,
// withdrawal, risk, provider, KYC and rate-limit tunables use unprefixed names.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Server.Address, "APP_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "APP_ADMIN_METRICS_API_KEY")

	setIfEnv(&c.Logging.Level, "APP_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "APP_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "APP_ENVIRONMENT")

	setIfEnv(&c.Database.Backend, "APP_DB_BACKEND")
	setIfEnv(&c.Database.PostgresURL, "APP_DATABASE_URL")
	setIntIfEnv(&c.Database.MaxOpenConns, "APP_DB_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Database.MaxIdleConns, "APP_DB_MAX_IDLE_CONNS")

	setFloatIfEnv(&c.Money.VATRate, "VAT_RATE")
	setFloatIfEnv(&c.Money.PlatformCommissionRate, "PLATFORM_COMMISSION_RATE")
	setFloatIfEnv(&c.Money.GatewayRate, "GATEWAY_RATE")
	setFloatIfEnv(&c.Money.GatewayFixedETB, "GATEWAY_FIXED")
	setFloatIfEnv(&c.Money.CoinsPerETB, "COINS_PER_ETB")

	setFloatIfEnv(&c.Withdrawal.MinETB, "MIN_WITHDRAWAL_ETB")
	setFloatIfEnv(&c.Withdrawal.MaxDailyETB, "MAX_DAILY_WITHDRAWAL_ETB")
	setFloatIfEnv(&c.Withdrawal.MaxMonthlyETB, "MAX_MONTHLY_WITHDRAWAL_ETB")

	setIntIfEnv(&c.Risk.ExcessiveTopupsCount, "RISK_EXCESSIVE_TOPUPS_COUNT")
	setFloatIfEnv(&c.Risk.LargeGiftsSumETB, "RISK_LARGE_GIFTS_SUM_ETB")
	setIntIfEnv(&c.Risk.RepeatWithdrawDestinations, "RISK_REPEAT_WITHDRAW_DESTINATIONS")

	setIfEnv(&c.Provider.BaseURL, "PROVIDER_BASE_URL")
	setIfEnv(&c.Provider.SecretKey, "PROVIDER_SECRET_KEY")
	setIfEnv(&c.Provider.WebhookSecret, "PROVIDER_WEBHOOK_SECRET")
	setIfEnv(&c.Provider.CallbackURL, "PROVIDER_CALLBACK_URL")
	setIfEnv(&c.Provider.BackendURL, "BACKEND_URL")
	setIfEnv(&c.Provider.FrontendURL, "FRONTEND_URL")
	setBoolIfEnv(&c.Provider.DevBypass, "PROVIDER_DEV_BYPASS")

	setIfEnv(&c.KYC.EncryptionKey, "KYC_ENCRYPTION_KEY")

	setIntIfEnv(&c.RateLimit.GiftSendLimit, "RATE_LIMIT_GIFT_SEND")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "RATE_LIMIT_GLOBAL")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "RATE_LIMIT_PER_IP")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// setFloatIfEnv sets a float64 pointer from an environment variable.
func setFloatIfEnv(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// setIntIfEnv sets an int pointer from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
