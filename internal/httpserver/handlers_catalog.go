package httpserver

import (
	"net/http"

	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/pkg/responders"
)

type giftDTO struct {
	Ref      string  `json:"ref"`
	Name     string  `json:"name"`
	Coins    uint64  `json:"coins"`
	ValueETB float64 `json:"value_etb"`
}

// listGifts implements spec.md §4.5 "list active gifts" catalog read.
func (h handlers) listGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.catalog.Gifts(r.Context(), h.store.ListActiveGifts)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
		return
	}
	out := make([]giftDTO, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, giftDTO{Ref: g.ID, Name: g.Name, Coins: g.Coins, ValueETB: g.ValueETB.Float64()})
	}
	responders.JSON(w, http.StatusOK, map[string]any{"gifts": out})
}

type packageDTO struct {
	Ref           string  `json:"ref"`
	Name          string  `json:"name"`
	Coins         uint64  `json:"coins"`
	PriceTotalETB float64 `json:"price_total_etb"`
}

// listPackages implements spec.md §4.3 "list coin packages" catalog read.
func (h handlers) listPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.catalog.Packages(r.Context(), h.store.ListPackages)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
		return
	}
	out := make([]packageDTO, 0, len(packages))
	for _, p := range packages {
		out = append(out, packageDTO{Ref: p.ID, Name: p.Name, Coins: p.Coins, PriceTotalETB: p.PriceTotalETB.Float64()})
	}
	responders.JSON(w, http.StatusOK, map[string]any{"packages": out})
}

type planDTO struct {
	Plan         string  `json:"plan"`
	PriceETB     float64 `json:"price_etb"`
	DurationDays int     `json:"duration_days"`
}

// listSubscriptionPlans implements spec.md §4.7 plan price table listing.
func (h handlers) listSubscriptionPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.subscriptions.ListPlans()
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, planDTO{Plan: string(p.Plan), PriceETB: p.PriceETB.Float64(), DurationDays: p.DurationDays})
	}
	responders.JSON(w, http.StatusOK, map[string]any{"plans": out})
}
