package subscriptions

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
	client := provider.NewClient(config.ProviderConfig{BaseURL: srv.URL}, nil)
	return &Service{
		Store:    store,
		Provider: client,
		Plans: []PlanPricing{
			{Plan: ledger.PlanBoost, PriceETB: money.FromFloat(99), DurationDays: 30},
		},
		CallbackURL: "https://api.example.com/webhooks/chapa/",
	}, store
}

func lockSubByTxRef(t *testing.T, store *ledger.MemoryStore, txRef string) ledger.SubscriptionPurchase {
	t.Helper()
	var sub ledger.SubscriptionPurchase
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		var found bool
		var err error
		sub, found, err = tx.LockSubscriptionByTxRef(ctx, txRef)
		if err != nil {
			return err
		}
		if !found {
			t.Fatalf("subscription purchase for tx_ref %s not found", txRef)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lockSubByTxRef: %v", err)
	}
	return sub
}

func TestPurchase_Success(t *testing.T) {
	svc, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"checkout_url": "https://checkout.example.com/sub"},
		})
	})

	result, err := svc.Purchase(context.Background(), PurchaseRequest{UserRef: "alice", Plan: ledger.PlanBoost})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if result.CheckoutURL != "https://checkout.example.com/sub" {
		t.Errorf("unexpected checkout url: %s", result.CheckoutURL)
	}
	if len(result.TxRef) < 4 || result.TxRef[:4] != "sub-" {
		t.Errorf("expected tx_ref prefixed sub-, got %s", result.TxRef)
	}

	sub := lockSubByTxRef(t, store, result.TxRef)
	if sub.Status != ledger.PaymentInitiated {
		t.Errorf("expected purchase left INITIATED until activation, got %s", sub.Status)
	}
}

func TestPurchase_UnknownPlan(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := svc.Purchase(context.Background(), PurchaseRequest{UserRef: "alice", Plan: ledger.PlanAdFree})
	if err != ErrUnknownPlan {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestActivate_SetsPerkExpiryAndIsIdempotent(t *testing.T) {
	svc, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"checkout_url": "https://checkout.example.com/sub"},
		})
	})

	result, err := svc.Purchase(context.Background(), PurchaseRequest{UserRef: "alice", Plan: ledger.PlanBoost})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	if err := svc.Activate(context.Background(), result.TxRef); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	sub := lockSubByTxRef(t, store, result.TxRef)
	if sub.Status != ledger.PaymentSuccess {
		t.Errorf("expected SUCCESS after activation, got %s", sub.Status)
	}
	if sub.ExpiresAt == nil {
		t.Fatal("expected ExpiresAt to be set")
	}

	var perks ledger.Perks
	err = store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		var err error
		perks, err = tx.LockPerks(ctx, "alice")
		return err
	})
	if err != nil {
		t.Fatalf("lock perks: %v", err)
	}
	if perks.BoostExpiry == nil {
		t.Error("expected boost perk expiry set")
	}

	// Activating again must be a no-op, not an error.
	if err := svc.Activate(context.Background(), result.TxRef); err != nil {
		t.Fatalf("second Activate: %v", err)
	}
}

func TestActivate_UnknownTxRef(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := svc.Activate(context.Background(), "sub-does-not-exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
