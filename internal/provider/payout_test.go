package provider

import (
	"context"
	"testing"

	"github.com/addispay/wallet-server/internal/money"
)

func TestStubPayoutAdapter_Pay(t *testing.T) {
	adapter := NewStubPayoutAdapter(nil)

	result, err := adapter.Pay(context.Background(), PayoutRequest{
		WithdrawalRef: "wd-1",
		UserRef:       "user-1",
		AmountETB:     money.FromFloat(500),
		Destination:   "telebirr:0911223344",
	})
	if err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if result.Status != PayoutPaid {
		t.Errorf("expected PayoutPaid, got %s", result.Status)
	}
	if result.ProviderRef == "" {
		t.Error("expected a synthetic provider reference")
	}
}

func TestStubPayoutAdapter_MissingDestination(t *testing.T) {
	adapter := NewStubPayoutAdapter(nil)

	result, err := adapter.Pay(context.Background(), PayoutRequest{
		WithdrawalRef: "wd-2",
		UserRef:       "user-1",
		AmountETB:     money.FromFloat(500),
	})
	if err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if result.Status != PayoutFailed {
		t.Errorf("expected PayoutFailed for missing destination, got %s", result.Status)
	}
}
