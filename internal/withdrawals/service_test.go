package withdrawals

import (
	"context"
	"testing"

	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/provider"
)

func newTestService(t *testing.T) (*Service, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	svc := &Service{
		Store:  store,
		Payout: provider.NewStubPayoutAdapter(nil),
		Config: Config{
			MinETB:        money.FromFloat(100),
			MaxDailyETB:   money.FromFloat(5000),
			MaxMonthlyETB: money.FromFloat(50000),
		},
	}
	return svc, store
}

func seedWallet(t *testing.T, store *ledger.MemoryStore, userRef string, balanceETB money.ETB, kycLevel uint8) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, userRef)
		if err != nil {
			return err
		}
		w.BalanceETB = balanceETB
		w.KYCLevel = kycLevel
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

// TestWithdrawalLifecycle_ApprovedAndPaid covers spec.md §8 scenario 5: Bob
// holds 1200 ETB at kyc_level 2, requests 600, an admin approves, and the
// payout stub settles it to PAID.
func TestWithdrawalLifecycle_ApprovedAndPaid(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "bob", money.FromFloat(1200), 2)

	created, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "bob", Method: ledger.WithdrawalMethodChapa, Destination: "bob@bank", AmountETB: money.FromFloat(600),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	wallet, _ := store.GetWallet(context.Background(), "bob")
	if wallet.HoldETB != money.FromFloat(600) {
		t.Errorf("expected hold 600, got %v", wallet.HoldETB.Float64())
	}
	if wallet.BalanceETB != money.FromFloat(1200) {
		t.Errorf("expected balance unchanged at 1200, got %v", wallet.BalanceETB.Float64())
	}

	if _, err := svc.Approve(context.Background(), created.ID, "admin-1"); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	final, err := store.GetWithdrawal(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetWithdrawal: %v", err)
	}
	if final.Status != ledger.WithdrawalPaid {
		t.Fatalf("expected status PAID, got %s", final.Status)
	}

	wallet, _ = store.GetWallet(context.Background(), "bob")
	if wallet.BalanceETB != money.FromFloat(600) {
		t.Errorf("expected balance 600 after payout, got %v", wallet.BalanceETB.Float64())
	}
	if wallet.HoldETB != 0 {
		t.Errorf("expected hold cleared to 0, got %v", wallet.HoldETB.Float64())
	}
}

// TestWithdrawalReject covers spec.md §8 scenario 6: Carol holds 800 ETB at
// kyc_level 2, requests 500 via TELEBIRR, and an admin rejects it.
func TestWithdrawalReject(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "carol", money.FromFloat(800), 2)

	created, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "carol", Method: ledger.WithdrawalMethodTelebirr, Destination: "0911000000", AmountETB: money.FromFloat(500),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	wallet, _ := store.GetWallet(context.Background(), "carol")
	if wallet.HoldETB != money.FromFloat(500) {
		t.Fatalf("expected hold 500, got %v", wallet.HoldETB.Float64())
	}

	if _, err := svc.Reject(context.Background(), created.ID, "admin-1", "destination could not be verified"); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	final, err := store.GetWithdrawal(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetWithdrawal: %v", err)
	}
	if final.Status != ledger.WithdrawalRejected {
		t.Fatalf("expected status REJECTED, got %s", final.Status)
	}
	if final.FailureReason != "destination could not be verified" {
		t.Errorf("expected recorded reject reason, got %q", final.FailureReason)
	}

	wallet, _ = store.GetWallet(context.Background(), "carol")
	if wallet.HoldETB != 0 {
		t.Errorf("expected hold released to 0, got %v", wallet.HoldETB.Float64())
	}
	if wallet.BalanceETB != money.FromFloat(800) {
		t.Errorf("expected balance unchanged at 800, got %v", wallet.BalanceETB.Float64())
	}
}

func TestCreate_MinimumBoundary(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "dana", money.FromFloat(1000), 2)

	if _, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "dana", Method: ledger.WithdrawalMethodChapa, Destination: "dana@bank", AmountETB: svc.Config.MinETB,
	}); err != nil {
		t.Fatalf("expected amount at MinETB to be accepted, got error: %v", err)
	}

	belowMin := svc.Config.MinETB - money.FromFloat(0.01)
	if _, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "dana", Method: ledger.WithdrawalMethodChapa, Destination: "dana@bank", AmountETB: belowMin,
	}); err != ErrBelowMin {
		t.Fatalf("expected ErrBelowMin just under the minimum, got %v", err)
	}
}

func TestCreate_KYCInsufficient(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "erin", money.FromFloat(1000), 1)

	_, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "erin", Method: ledger.WithdrawalMethodChapa, Destination: "erin@bank", AmountETB: money.FromFloat(500),
	})
	if err != ErrKYCInsufficient {
		t.Fatalf("expected ErrKYCInsufficient, got %v", err)
	}
}

func TestCreate_InsufficientAvailable(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "fana", money.FromFloat(300), 2)

	_, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "fana", Method: ledger.WithdrawalMethodChapa, Destination: "fana@bank", AmountETB: money.FromFloat(500),
	})
	if err != ErrInsufficientAvl {
		t.Fatalf("expected ErrInsufficientAvl, got %v", err)
	}
}

func TestCreate_BlockedAccount(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "gizaw", money.FromFloat(1000), 2)
	store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		w, _ := tx.LockWallet(ctx, "gizaw")
		w.WithdrawalsBlocked = true
		return tx.SaveWallet(ctx, w)
	})

	_, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "gizaw", Method: ledger.WithdrawalMethodChapa, Destination: "gizaw@bank", AmountETB: money.FromFloat(500),
	})
	if err != ErrBlocked {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestCreate_DailyLimitExceeded(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "hana", money.FromFloat(20000), 2)

	if _, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "hana", Method: ledger.WithdrawalMethodChapa, Destination: "hana@bank", AmountETB: money.FromFloat(4800),
	}); err != nil {
		t.Fatalf("first withdrawal should succeed: %v", err)
	}

	_, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "hana", Method: ledger.WithdrawalMethodChapa, Destination: "hana@bank", AmountETB: money.FromFloat(300),
	})
	if err != ErrDailyLimit {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
}

func TestApprove_NotPending(t *testing.T) {
	svc, store := newTestService(t)
	seedWallet(t, store, "ito", money.FromFloat(1000), 2)

	created, err := svc.Create(context.Background(), CreateRequest{
		UserRef: "ito", Method: ledger.WithdrawalMethodChapa, Destination: "ito@bank", AmountETB: money.FromFloat(500),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Approve(context.Background(), created.ID, "admin-1"); err != nil {
		t.Fatalf("first Approve returned error: %v", err)
	}
	if _, err := svc.Approve(context.Background(), created.ID, "admin-1"); err != ErrNotPending {
		t.Fatalf("expected ErrNotPending on re-approve, got %v", err)
	}
}
