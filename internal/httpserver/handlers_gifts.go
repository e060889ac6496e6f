package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/gifts"
	"github.com/addispay/wallet-server/pkg/responders"
)

type sendGiftRequest struct {
	RecipientID string `json:"recipient_id"`
	GiftID      string `json:"gift_id"`
	Quantity    int    `json:"quantity"`
	Message     string `json:"message"`
}

type sendGiftResponse struct {
	TransactionID    string  `json:"transaction_id"`
	CommissionGross  float64 `json:"commission_gross"`
	VATOnCommission  float64 `json:"vat_on_commission"`
	CommissionNet    float64 `json:"commission_net"`
	CreatorPayout    float64 `json:"creator_payout"`
}

// sendGift implements spec.md §6.1 "POST /api/gifts/send/".
func (h handlers) sendGift(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req sendGiftRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.RecipientID == "" || req.GiftID == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "recipient_id and gift_id are required")
		return
	}

	result, err := h.gifts.Send(r.Context(), gifts.SendRequest{
		SenderRef:    principal.UserRef,
		RecipientRef: req.RecipientID,
		GiftRef:      req.GiftID,
		Quantity:     req.Quantity,
		Message:      req.Message,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, sendGiftResponse{
		TransactionID:   result.TransactionID,
		CommissionGross: result.Split.CommissionGross.Float64(),
		VATOnCommission: result.Split.VATOnCommission.Float64(),
		CommissionNet:   result.Split.CommissionNet.Float64(),
		CreatorPayout:   result.Split.CreatorPayout.Float64(),
	})
}
