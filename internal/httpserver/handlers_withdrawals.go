package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/withdrawals"
	"github.com/addispay/wallet-server/pkg/responders"
)

type createWithdrawalRequest struct {
	Method      string  `json:"method"`
	Destination string  `json:"destination"`
	AmountETB   float64 `json:"amount_etb"`
}

// createWithdrawal implements spec.md §6.1 "POST /api/wallet/withdraw/".
func (h handlers) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req createWithdrawalRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}
	method := ledger.WithdrawalMethod(req.Method)
	if method != ledger.WithdrawalMethodChapa && method != ledger.WithdrawalMethodTelebirr {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "method must be CH or TELEBIRR")
		return
	}
	if req.Destination == "" || req.AmountETB <= 0 {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "destination and amount_etb are required")
		return
	}

	result, err := h.withdrawals.Create(r.Context(), withdrawals.CreateRequest{
		UserRef:     principal.UserRef,
		Method:      method,
		Destination: req.Destination,
		AmountETB:   money.FromFloat(req.AmountETB),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, withdrawalDTO(result))
}

type withdrawalResponseDTO struct {
	ID            string  `json:"id"`
	UserRef       string  `json:"user_ref"`
	Method        string  `json:"method"`
	Destination   string  `json:"destination"`
	AmountETB     float64 `json:"amount_etb"`
	Status        string  `json:"status"`
	ProviderRef   string  `json:"provider_ref,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

func withdrawalDTO(w ledger.WithdrawalRequest) withdrawalResponseDTO {
	return withdrawalResponseDTO{
		ID:            w.ID,
		UserRef:       w.UserRef,
		Method:        string(w.Method),
		Destination:   w.Destination,
		AmountETB:     w.AmountETB.Float64(),
		Status:        string(w.Status),
		ProviderRef:   w.ProviderRef,
		FailureReason: w.FailureReason,
	}
}

// listWithdrawals implements spec.md §6.1 "GET /api/admin/withdrawals/", optionally filtered by status.
func (h handlers) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := ledger.WithdrawalStatus(r.URL.Query().Get("status"))
	list, err := h.store.ListWithdrawals(r.Context(), status)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
		return
	}
	out := make([]withdrawalResponseDTO, 0, len(list))
	for _, wd := range list {
		out = append(out, withdrawalDTO(wd))
	}
	responders.JSON(w, http.StatusOK, map[string]any{"withdrawals": out})
}

// approveWithdrawal implements spec.md §6.1 "POST /api/admin/withdrawals/{id}/approve".
func (h handlers) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	id := chiURLParam(r, "id")

	result, err := h.withdrawals.Approve(r.Context(), id, principal.UserRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, withdrawalDTO(result))
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// rejectWithdrawal implements spec.md §6.1 "POST /api/admin/withdrawals/{id}/reject".
func (h handlers) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	id := chiURLParam(r, "id")

	var req rejectWithdrawalRequest
	_ = decodeJSON(r.Body, &req)

	result, err := h.withdrawals.Reject(r.Context(), id, principal.UserRef, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, withdrawalDTO(result))
}
