package gifts

import (
	"context"
	"testing"

	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/money"
)

func newTestService(t *testing.T) (*Service, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	store.SeedCatalog(nil, []ledger.Gift{
		{ID: "rose", Name: "Rose", Coins: 10, ValueETB: money.FromFloat(8), Active: true},
		{ID: "retired", Name: "Retired gift", Coins: 5, ValueETB: money.FromFloat(4), Active: false},
	})
	return &Service{Store: store, CommissionRate: 0.30, VATRate: 0.15}, store
}

func creditCoins(t *testing.T, store *ledger.MemoryStore, userRef string, coins uint64) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, userRef)
		if err != nil {
			return err
		}
		w.CoinBalance = coins
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		t.Fatalf("credit coins: %v", err)
	}
}

func TestSend_Success(t *testing.T) {
	svc, store := newTestService(t)
	creditCoins(t, store, "alice", 100)

	result, err := svc.Send(context.Background(), SendRequest{
		SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 2,
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if result.TransactionID == "" {
		t.Error("expected a transaction id")
	}

	senderWallet, _ := store.GetWallet(context.Background(), "alice")
	if senderWallet.CoinBalance != 80 {
		t.Errorf("expected sender balance 80, got %d", senderWallet.CoinBalance)
	}

	recipientWallet, _ := store.GetWallet(context.Background(), "bob")
	if recipientWallet.BalanceETB != result.Split.CreatorPayout {
		t.Errorf("expected recipient balance %v, got %v", result.Split.CreatorPayout, recipientWallet.BalanceETB)
	}

	foundSent, foundReceived := false, false
	for _, a := range store.Audit() {
		if a.Event == "GIFT_SENT" {
			foundSent = true
		}
		if a.Event == "GIFT_RECEIVED" {
			foundReceived = true
		}
	}
	if !foundSent || !foundReceived {
		t.Error("expected both GIFT_SENT and GIFT_RECEIVED audit entries")
	}
}

func TestSend_SelfGift(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "alice", GiftRef: "rose", Quantity: 1})
	if err != ErrSelfGift {
		t.Fatalf("expected ErrSelfGift, got %v", err)
	}
}

func TestSend_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 0})
	if err != ErrInvalidQty {
		t.Fatalf("expected ErrInvalidQty, got %v", err)
	}
	_, err = svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 101})
	if err != ErrInvalidQty {
		t.Fatalf("expected ErrInvalidQty, got %v", err)
	}
}

func TestSend_InactiveGift(t *testing.T) {
	svc, store := newTestService(t)
	creditCoins(t, store, "alice", 100)
	_, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "retired", Quantity: 1})
	if err != ErrInvalidGift {
		t.Fatalf("expected ErrInvalidGift, got %v", err)
	}
}

func TestSend_InsufficientCoins(t *testing.T) {
	svc, store := newTestService(t)
	creditCoins(t, store, "alice", 5)
	_, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 1})
	if err != ErrInsufficient {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
	wallet, _ := store.GetWallet(context.Background(), "alice")
	if wallet.CoinBalance != 5 {
		t.Errorf("expected balance untouched at 5, got %d", wallet.CoinBalance)
	}

	failed := false
	for _, a := range store.Audit() {
		if a.Event == "GIFT_SEND_FAILED" {
			failed = true
		}
	}
	if !failed {
		t.Error("expected GIFT_SEND_FAILED audit entry")
	}
}

func TestSend_SenderBanned(t *testing.T) {
	svc, store := newTestService(t)
	creditCoins(t, store, "alice", 100)
	store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		w, _ := tx.LockWallet(ctx, "alice")
		w.IsBanned = true
		return tx.SaveWallet(ctx, w)
	})

	_, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 1})
	if err != ErrSenderBanned {
		t.Fatalf("expected ErrSenderBanned, got %v", err)
	}
}

func TestSend_DeadlockAvoidanceSymmetric(t *testing.T) {
	svc, store := newTestService(t)
	creditCoins(t, store, "alice", 100)
	creditCoins(t, store, "bob", 100)

	if _, err := svc.Send(context.Background(), SendRequest{SenderRef: "alice", RecipientRef: "bob", GiftRef: "rose", Quantity: 1}); err != nil {
		t.Fatalf("alice->bob: %v", err)
	}
	if _, err := svc.Send(context.Background(), SendRequest{SenderRef: "bob", RecipientRef: "alice", GiftRef: "rose", Quantity: 1}); err != nil {
		t.Fatalf("bob->alice: %v", err)
	}
}
