package config

import (
	"os"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// KYC encryption key and the Postgres URL are the only hard requirements
	// with no sane default; everything else falls back to spec.md §6.4 values.
	cfg, err := Load("")
	if err == nil {
		t.Fatal("expected error when kyc.encryption_key and database.postgres_url are missing, got nil")
	}
	if cfg != nil {
		t.Fatal("expected nil config when validation fails")
	}
}

func TestLoadConfig_DefaultsSatisfied(t *testing.T) {
	os.Setenv("KYC_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	os.Setenv("APP_DATABASE_URL", "postgres://localhost/wallet")
	defer os.Unsetenv("KYC_ENCRYPTION_KEY")
	defer os.Unsetenv("APP_DATABASE_URL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Money.VATRate != 0.15 {
		t.Errorf("VATRate = %v, want 0.15", cfg.Money.VATRate)
	}
	if cfg.Money.PlatformCommissionRate != 0.25 {
		t.Errorf("PlatformCommissionRate = %v, want 0.25", cfg.Money.PlatformCommissionRate)
	}
	if cfg.Money.GatewayRate != 0.03 {
		t.Errorf("GatewayRate = %v, want 0.03", cfg.Money.GatewayRate)
	}
	if cfg.Money.GatewayFixedETB != 2.00 {
		t.Errorf("GatewayFixedETB = %v, want 2.00", cfg.Money.GatewayFixedETB)
	}
	if cfg.Withdrawal.MinETB != 500 {
		t.Errorf("Withdrawal.MinETB = %v, want 500", cfg.Withdrawal.MinETB)
	}
	if len(cfg.Subscriptions.Plans) != 3 {
		t.Errorf("expected 3 default subscription plans, got %d", len(cfg.Subscriptions.Plans))
	}
}

func TestLoadConfig_GatewayRateMustBeBelowOne(t *testing.T) {
	os.Setenv("KYC_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	os.Setenv("APP_DATABASE_URL", "postgres://localhost/wallet")
	os.Setenv("GATEWAY_RATE", "1")
	defer os.Unsetenv("KYC_ENCRYPTION_KEY")
	defer os.Unsetenv("APP_DATABASE_URL")
	defer os.Unsetenv("GATEWAY_RATE")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when gateway_rate >= 1")
	}
}

func TestLoadConfig_MissingPerkPlanRefusesToBoot(t *testing.T) {
	os.Setenv("KYC_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	os.Setenv("APP_DATABASE_URL", "postgres://localhost/wallet")
	defer os.Unsetenv("KYC_ENCRYPTION_KEY")
	defer os.Unsetenv("APP_DATABASE_URL")

	cfg := defaultConfig()
	cfg.Subscriptions.Plans = cfg.Subscriptions.Plans[:1] // drop LIKES_REVEAL and AD_FREE
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for incomplete subscription price table")
	}
}
