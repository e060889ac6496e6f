package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/money"
)

func testConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:   baseURL,
		SecretKey: "test-secret",
	}
}

func TestClient_Initiate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transaction/initialize" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var wire initiateWireRequest
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if wire.Currency != "ETB" {
			t.Errorf("expected currency ETB, got %q", wire.Currency)
		}
		if wire.Phone != "" {
			t.Errorf("expected phone to be stripped, got %q", wire.Phone)
		}
		if len(wire.Customization.Title) > 16 {
			t.Errorf("expected title truncated to 16 chars, got %d", len(wire.Customization.Title))
		}
		w.Header().Set("Content-Type", "application/json")
		resp := initiateWireResponse{Status: "success"}
		resp.Data.CheckoutURL = "https://pay.example/checkout/abc"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	result, err := client.Initiate(context.Background(), InitiateRequest{
		AmountETB:   money.FromFloat(120.62),
		TxRef:       NewTopupTxRef("user-1"),
		CallbackURL: "https://wallet.example/webhooks/chapa",
		ReturnURL:   "https://wallet.example/return",
		Title:       "This title is way too long for the sixteen char limit",
		Description: "desc",
		Customer:    Customer{Email: "a@example.com", FirstName: "A", LastName: "B", Phone: "invalid"},
	})
	if err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}
	if result.CheckoutURL != "https://pay.example/checkout/abc" {
		t.Errorf("unexpected checkout URL: %s", result.CheckoutURL)
	}
}

func TestClient_Initiate_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	_, err := client.Initiate(context.Background(), InitiateRequest{
		AmountETB: money.FromFloat(10),
		TxRef:     "coin-user-1-deadbeef",
		Customer:  Customer{Email: "a@example.com"},
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("expected rejected-classified error, got %v", err)
	}
}

func TestClient_Initiate_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	_, err := client.Initiate(context.Background(), InitiateRequest{
		AmountETB: money.FromFloat(10),
		TxRef:     "coin-user-1-deadbeef",
		Customer:  Customer{Email: "a@example.com"},
	})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("expected unavailable-classified error, got %v", err)
	}
}

func TestClient_Verify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/v1/transaction/verify/") {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		resp := verifyWireResponse{Status: "success"}
		resp.Data.Status = "success"
		resp.Data.Reference = "chapa-ref-1"
		resp.Data.Charge = 3.5
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	result, err := client.Verify(context.Background(), "coin-user-1-deadbeef")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Success {
		t.Error("expected Success true")
	}
	if !result.HasGwFee || result.GwFeeETB.Float64() != 3.5 {
		t.Errorf("expected gateway fee 3.5, got %v (has=%v)", result.GwFeeETB, result.HasGwFee)
	}
}

func TestSanitizeCustomer(t *testing.T) {
	cases := []struct {
		phone string
		kept  bool
	}{
		{"0911223344", true},
		{"0711223344", true},
		{"+251911223344", false},
		{"123", false},
		{"", false},
	}
	for _, tc := range cases {
		out := SanitizeCustomer(Customer{Phone: tc.phone})
		if tc.kept && out.Phone != tc.phone {
			t.Errorf("expected phone %q to be kept, got %q", tc.phone, out.Phone)
		}
		if !tc.kept && out.Phone != "" {
			t.Errorf("expected phone %q to be stripped, got %q", tc.phone, out.Phone)
		}
	}
}

func TestTxRefHelpers(t *testing.T) {
	ref := NewTopupTxRef("user-1")
	if !strings.HasPrefix(ref, "coin-user-1-") {
		t.Errorf("expected coin- prefix, got %s", ref)
	}
	if IsSubscriptionTxRef(ref) {
		t.Error("topup tx_ref should not be classified as subscription")
	}

	subRef := NewSubscriptionTxRef("premium")
	if !strings.HasPrefix(subRef, "sub-premium-") {
		t.Errorf("expected sub- prefix, got %s", subRef)
	}
	if !IsSubscriptionTxRef(subRef) {
		t.Error("subscription tx_ref should be classified as subscription")
	}
	if len(subRef) > maxTxRefLen {
		t.Errorf("tx_ref exceeds max length: %d", len(subRef))
	}
}
