package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/provider"
	"github.com/addispay/wallet-server/internal/subscriptions"
	"github.com/addispay/wallet-server/pkg/responders"
)

type subscribeRequest struct {
	Plan      string           `json:"plan"`
	ReturnURL string           `json:"return_url"`
	Customer  topupCustomerDTO `json:"customer"`
}

type subscribeResponse struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
	PurchaseID  string `json:"purchase_id"`
}

// subscribe implements spec.md §6.1 "POST /api/subscriptions/subscribe/".
func (h handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req subscribeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}

	result, err := h.subscriptions.Purchase(r.Context(), subscriptions.PurchaseRequest{
		UserRef:   principal.UserRef,
		Plan:      ledger.SubscriptionPlan(req.Plan),
		ReturnURL: req.ReturnURL,
		Customer: provider.Customer{
			Email:     req.Customer.Email,
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, subscribeResponse{
		CheckoutURL: result.CheckoutURL,
		TxRef:       result.TxRef,
		PurchaseID:  result.PurchaseID,
	})
}

type devActivateRequest struct {
	TxRef string `json:"tx_ref"`
}

// devActivateSubscription implements spec.md §4.7's "explicit activate
// endpoint for dev": the same perk-activation transition the webhook
// handler performs on a successful settlement, exposed directly when
// DevActivate is enabled (no live provider callback available).
func (h handlers) devActivateSubscription(w http.ResponseWriter, r *http.Request) {
	var req devActivateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}
	if req.TxRef == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "tx_ref is required")
		return
	}

	if err := h.subscriptions.Activate(r.Context(), req.TxRef); err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, map[string]string{"status": "activated"})
}
