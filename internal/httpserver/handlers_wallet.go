package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/pkg/responders"
)

type walletDTO struct {
	CoinBalance        uint64             `json:"coin_balance"`
	BalanceETB         float64            `json:"balance_etb"`
	HoldETB            float64            `json:"hold_etb"`
	AvailableETB       float64            `json:"available_etb"`
	KYCLevel           uint8              `json:"kyc_level"`
	WithdrawalsBlocked bool               `json:"withdrawals_blocked"`
	RecentGifts        []recentGiftDTO    `json:"recent_gifts"`
}

type recentGiftDTO struct {
	ID           string  `json:"id"`
	SenderRef    string  `json:"sender_ref"`
	RecipientRef string  `json:"recipient_ref"`
	GiftRef      string  `json:"gift_ref"`
	ValueETB     float64 `json:"value_etb"`
	Status       string  `json:"status"`
	OccurredAt   string  `json:"occurred_at"`
}

const recentGiftsLimit = 20

// getWallet implements spec.md §6.1 "GET /api/wallet/": current wallet and
// recent gifts.
func (h handlers) getWallet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	wallet, err := h.store.GetWallet(r.Context(), principal.UserRef)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
		return
	}
	recent, err := h.store.ListRecentGiftTransactions(r.Context(), principal.UserRef, recentGiftsLimit)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
		return
	}

	out := make([]recentGiftDTO, 0, len(recent))
	for _, g := range recent {
		out = append(out, recentGiftDTO{
			ID:           g.ID,
			SenderRef:    g.SenderRef,
			RecipientRef: g.RecipientRef,
			GiftRef:      g.GiftRef,
			ValueETB:     g.ValueETB.Float64(),
			Status:       string(g.Status),
			OccurredAt:   g.OccurredAt.Format(timeLayout),
		})
	}

	responders.JSON(w, http.StatusOK, walletDTO{
		CoinBalance:        wallet.CoinBalance,
		BalanceETB:         wallet.BalanceETB.Float64(),
		HoldETB:            wallet.HoldETB.Float64(),
		AvailableETB:       wallet.AvailableETB().Float64(),
		KYCLevel:           wallet.KYCLevel,
		WithdrawalsBlocked: wallet.WithdrawalsBlocked,
		RecentGifts:        out,
	})
}
