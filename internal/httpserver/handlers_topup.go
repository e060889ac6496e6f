package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/provider"
	"github.com/addispay/wallet-server/internal/topup"
	"github.com/addispay/wallet-server/pkg/responders"
)

type createTopupRequest struct {
	PackageRef string          `json:"package_ref"`
	ReturnURL  string          `json:"return_url"`
	Customer   topupCustomerDTO `json:"customer"`
}

type topupCustomerDTO struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type createTopupResponse struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
	PurchaseID  string `json:"purchase_id"`
}

// createTopup implements spec.md §6.1 "POST /api/coins/topup/".
func (h handlers) createTopup(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req createTopupRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}
	if req.PackageRef == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "package_ref is required")
		return
	}

	result, err := h.topup.Create(r.Context(), topup.CreateRequest{
		UserRef:    principal.UserRef,
		PackageRef: req.PackageRef,
		ReturnURL:  req.ReturnURL,
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

	responders.JSON(w, http.StatusOK, createTopupResponse{
		CheckoutURL: result.CheckoutURL,
		TxRef:       result.TxRef,
		PurchaseID:  result.PurchaseID,
	})
}

type receiptDTO struct {
	ID          string  `json:"id"`
	PaymentID   string  `json:"payment_id"`
	ProviderRef string  `json:"provider_ref"`
	AmountETB   float64 `json:"amount_etb"`
	IssuedAt    string  `json:"issued_at"`
}

// getReceipt implements spec.md §6.1 "GET /api/payments/{id}/receipt/", owner-only.
func (h handlers) getReceipt(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	paymentID := chiURLParam(r, "id")
	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrNotFound, "payment not found")
		return
	}
	if payment.UserRef != principal.UserRef && !principal.Admin {
		forbidden(w, r)
		return
	}
	if payment.Status != ledger.PaymentSuccess {
		apierrors.WriteSimpleError(w, apierrors.ErrNotFound, "no receipt for a payment that is not SUCCESS")
		return
	}

	receipt, err := h.store.GetReceiptByPayment(r.Context(), paymentID)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrNotFound, "receipt not found")
		return
	}

	responders.JSON(w, http.StatusOK, receiptDTO{
		ID:          receipt.ID,
		PaymentID:   receipt.PaymentID,
		ProviderRef: receipt.ProviderRef,
		AmountETB:   receipt.AmountETB.Float64(),
		IssuedAt:    receipt.IssuedAt.Format(timeLayout),
	})
}
