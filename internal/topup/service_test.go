package topup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/provider"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *ledger.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := ledger.NewMemoryStore()
	store.SeedCatalog([]ledger.CoinPackage{
		{ID: "pack-100", Name: "100 coins", TargetNetETB: money.FromFloat(100), Coins: 100,
			BaseETB: money.FromFloat(100), VATETB: money.FromFloat(15), PriceTotalETB: money.FromFloat(120.62)},
	}, nil)

	client := provider.NewClient(config.ProviderConfig{BaseURL: srv.URL}, nil)
	return &Service{Store: store, Provider: client, CallbackURL: "https://api.example.com/webhooks/chapa/"}, store
}

func TestCreate_Success(t *testing.T) {
	svc, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"checkout_url": "https://checkout.example.com/abc"},
		})
	})

	result, err := svc.Create(context.Background(), CreateRequest{UserRef: "alice", PackageRef: "pack-100"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if result.CheckoutURL != "https://checkout.example.com/abc" {
		t.Errorf("unexpected checkout url: %s", result.CheckoutURL)
	}
	if len(result.TxRef) == 0 || result.TxRef[:5] != "coin-" {
		t.Errorf("expected tx_ref prefixed coin-, got %s", result.TxRef)
	}

	payment, err := store.GetPayment(context.Background(), result.PurchaseID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if payment.Status != ledger.PaymentInitiated {
		t.Errorf("expected payment left INITIATED until webhook settles, got %s", payment.Status)
	}
	if payment.CheckoutURL != result.CheckoutURL {
		t.Errorf("expected checkout url persisted on payment")
	}
}

func TestCreate_InvalidPackage(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := svc.Create(context.Background(), CreateRequest{UserRef: "alice", PackageRef: "does-not-exist"})
	if err != ErrInvalidPackage {
		t.Fatalf("expected ErrInvalidPackage, got %v", err)
	}
}

func TestCreate_ProviderRejected(t *testing.T) {
	svc, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed"}`))
	})

	_, err := svc.Create(context.Background(), CreateRequest{UserRef: "alice", PackageRef: "pack-100"})
	if err == nil {
		t.Fatal("expected an error")
	}
	payments, _ := store.ListPackages(context.Background())
	_ = payments
	// The Payment row is left INITIATED for manual triage rather than deleted.
}
