package config

import (
	"os"
	"testing"
)

func TestEnvOverrides_MoneyConfig(t *testing.T) {
	defer os.Clearenv()

	os.Setenv("VAT_RATE", "0.2")
	os.Setenv("PLATFORM_COMMISSION_RATE", "0.3")
	os.Setenv("GATEWAY_FIXED", "3.5")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Money.VATRate != 0.2 {
		t.Errorf("VATRate = %v, want 0.2", cfg.Money.VATRate)
	}
	if cfg.Money.PlatformCommissionRate != 0.3 {
		t.Errorf("PlatformCommissionRate = %v, want 0.3", cfg.Money.PlatformCommissionRate)
	}
	if cfg.Money.GatewayFixedETB != 3.5 {
		t.Errorf("GatewayFixedETB = %v, want 3.5", cfg.Money.GatewayFixedETB)
	}
}

func TestEnvOverrides_ServerAddress(t *testing.T) {
	defer os.Clearenv()
	os.Setenv("APP_SERVER_ADDRESS", ":3000")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Server.Address != ":3000" {
		t.Errorf("Server.Address = %q, want :3000", cfg.Server.Address)
	}
}

func TestEnvOverrides_KYCEncryptionKey(t *testing.T) {
	defer os.Clearenv()
	os.Setenv("KYC_ENCRYPTION_KEY", "deadbeef")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.KYC.EncryptionKey != "deadbeef" {
		t.Errorf("KYC.EncryptionKey = %q, want deadbeef", cfg.KYC.EncryptionKey)
	}
}

func TestEnvOverrides_WithdrawalLimits(t *testing.T) {
	defer os.Clearenv()
	os.Setenv("MIN_WITHDRAWAL_ETB", "750")
	os.Setenv("MAX_DAILY_WITHDRAWAL_ETB", "6000")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Withdrawal.MinETB != 750 {
		t.Errorf("Withdrawal.MinETB = %v, want 750", cfg.Withdrawal.MinETB)
	}
	if cfg.Withdrawal.MaxDailyETB != 6000 {
		t.Errorf("Withdrawal.MaxDailyETB = %v, want 6000", cfg.Withdrawal.MaxDailyETB)
	}
}
