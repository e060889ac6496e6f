package kyc

import (
	"bytes"
	"context"
	"testing"

	"github.com/addispay/wallet-server/internal/ledger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	sealer, err := NewAESGCMSealer(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewAESGCMSealer: %v", err)
	}
	return &Service{Store: ledger.NewMemoryStore(), Sealer: sealer}
}

func TestSubmit_EncryptsAndStores(t *testing.T) {
	svc := newTestService(t)
	sub, err := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocNID,
		Document: []byte("document-bytes"), Selfie: []byte("selfie-bytes"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if bytes.Contains(sub.DocumentCipher, []byte("document-bytes")) {
		t.Error("document must not be stored in plaintext")
	}

	doc, selfie, err := svc.Open(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(doc) != "document-bytes" || string(selfie) != "selfie-bytes" {
		t.Error("decrypted content does not match original")
	}
}

func TestSubmit_DedupesPending(t *testing.T) {
	svc := newTestService(t)
	first, err := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocNID, Document: []byte("a"), Selfie: []byte("b"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocPassport, Document: []byte("c"), Selfie: []byte("d"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.ID != second.ID {
		t.Error("expected the existing pending submission id to be returned")
	}
}

func TestReview_VerifiedRaisesKYCLevel(t *testing.T) {
	svc := newTestService(t)
	sub, _ := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocNID, Document: []byte("a"), Selfie: []byte("b"),
	})

	reviewed, err := svc.Review(context.Background(), sub.ID, DecisionVerified, "admin-1")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.Status != ledger.KYCVerified {
		t.Errorf("expected VERIFIED, got %s", reviewed.Status)
	}

	wallet, _ := svc.Store.GetWallet(context.Background(), "alice")
	if wallet.KYCLevel < 2 {
		t.Errorf("expected kyc_level raised to >= 2, got %d", wallet.KYCLevel)
	}
}

func TestReview_RejectedLeavesKYCLevelUnchanged(t *testing.T) {
	svc := newTestService(t)
	sub, _ := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocNID, Document: []byte("a"), Selfie: []byte("b"),
	})

	if _, err := svc.Review(context.Background(), sub.ID, DecisionRejected, "admin-1"); err != nil {
		t.Fatalf("Review: %v", err)
	}
	wallet, _ := svc.Store.GetWallet(context.Background(), "alice")
	if wallet.KYCLevel != 1 {
		t.Errorf("expected kyc_level unchanged at 1, got %d", wallet.KYCLevel)
	}
}

func TestReview_NotPendingTwice(t *testing.T) {
	svc := newTestService(t)
	sub, _ := svc.Submit(context.Background(), SubmitRequest{
		UserRef: "alice", DocType: ledger.KYCDocNID, Document: []byte("a"), Selfie: []byte("b"),
	})
	if _, err := svc.Review(context.Background(), sub.ID, DecisionVerified, "admin-1"); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if _, err := svc.Review(context.Background(), sub.ID, DecisionVerified, "admin-1"); err != ErrNotPending {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestAESGCMSealer_OpenRejectsTamperedCiphertext(t *testing.T) {
	sealer, _ := NewAESGCMSealer(bytes.Repeat([]byte{0x01}, 32))
	ciphertext, _ := sealer.Seal([]byte("secret"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, authentic, err := sealer.Open(ciphertext)
	if err != nil {
		t.Fatalf("Open should not error on tampered ciphertext: %v", err)
	}
	if authentic {
		t.Error("expected tampered ciphertext to be reported as non-authentic")
	}
}
