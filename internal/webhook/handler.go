// Package webhook implements the idempotent provider-callback settlement
// handler (spec.md §4.4, C4).
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/logger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/provider"
	"github.com/addispay/wallet-server/internal/realtime"
	"github.com/addispay/wallet-server/internal/risk"
	"github.com/google/uuid"
)

// Verifier abstracts the provider's server-to-server verify call so the
// handler can be tested without a live HTTP client.
type Verifier interface {
	Verify(ctx context.Context, txRef string) (provider.VerifyResult, error)
}

// RiskEvaluator re-evaluates a single user's withdrawal-risk rules after a
// settlement touches their account (spec.md §4.9: per-event trigger).
// *risk.Service satisfies this.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, userRef string) ([]risk.Reason, error)
}

// Handler settles provider callbacks against the ledger.
type Handler struct {
	Store     ledger.Store
	Verifier  Verifier
	Notifier  realtime.Notifier
	Metrics   *metrics.Metrics
	Risk      RiskEvaluator // optional; nil skips post-settlement risk re-evaluation
	SignKey   []byte        // HMAC secret; empty disables signature verification (dev bypass)
	DevBypass bool
}

// inboundPayload covers both the GET-query and POST-JSON shapes (spec.md §4.4).
type inboundPayload struct {
	TxRef     string `json:"tx_ref"`
	TrxRef    string `json:"trx_ref"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

func (p inboundPayload) txRef() string {
	if p.TxRef != "" {
		return p.TxRef
	}
	return p.TrxRef
}

func parseInbound(r *http.Request) (inboundPayload, []byte, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return inboundPayload{
			TxRef:     q.Get("tx_ref"),
			TrxRef:    q.Get("trx_ref"),
			Status:    q.Get("status"),
			Reference: q.Get("reference"),
		}, nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return inboundPayload{}, nil, err
	}
	var payload inboundPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return inboundPayload{}, body, err
		}
	}
	return payload, body, nil
}

// ServeHTTP implements the full settlement algorithm from spec.md §4.4.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	payload, body, err := parseInbound(r)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "invalid webhook payload")
		return
	}

	txRef := payload.txRef()
	if txRef == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "tx_ref is required")
		return
	}

	if h.SignKey != nil && len(h.SignKey) > 0 && !h.DevBypass {
		sig := r.Header.Get("Chapa-Signature")
		if sig == "" {
			sig = r.Header.Get("X-Chapa-Signature")
		}
		if !auth.VerifyWebhookSignature(h.SignKey, body, sig) {
			log.Warn().Str("tx_ref", txRef).Msg("webhook.signature_invalid")
			apierrors.WriteSimpleError(w, apierrors.ErrUnauthorized, "invalid webhook signature")
			return
		}
	}

	if payload.Status != "" && payload.Status != "success" {
		respond(w, http.StatusOK, "ignored")
		return
	}

	verify, err := h.Verifier.Verify(r.Context(), txRef)
	if err != nil {
		log.Error().Err(err).Str("tx_ref", txRef).Msg("webhook.verify_failed")
		respond(w, http.StatusOK, "ignored")
		return
	}
	if !verify.Success {
		respond(w, http.StatusOK, "ignored")
		return
	}

	if provider.IsSubscriptionTxRef(txRef) {
		if err := h.settleSubscription(r.Context(), txRef, verify); err != nil {
			log.Error().Err(err).Str("tx_ref", txRef).Msg("webhook.settle_subscription_failed")
			apierrors.WriteSimpleError(w, apierrors.ErrInternal, "settlement failed")
			return
		}
		respond(w, http.StatusOK, "ok")
		return
	}

	if err := h.settleTopup(r.Context(), txRef, verify); err != nil {
		log.Error().Err(err).Str("tx_ref", txRef).Msg("webhook.settle_topup_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrInternal, "settlement failed")
		return
	}
	respond(w, http.StatusOK, "ok")
}

func respond(w http.ResponseWriter, status int, result string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"result": result})
}

// settleTopup credits coins for a coin top-up payment (spec.md §4.4 steps 4-9).
func (h *Handler) settleTopup(ctx context.Context, txRef string, verify provider.VerifyResult) error {
	var notifyUserRef string
	var settled bool
	var replayed bool
	var providerLabel string

	err := h.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		payment, found, err := tx.LockPaymentByProviderRef(ctx, verify.ProviderRef)
		if err != nil {
			return err
		}
		if !found {
			payment, found, err = tx.LockPaymentByTxRef(ctx, txRef)
			if err != nil {
				return err
			}
		}
		if !found {
			return errors.New("webhook: unknown payment for tx_ref " + txRef)
		}
		providerLabel = string(payment.Provider)
		if payment.Status == ledger.PaymentSuccess {
			// Idempotent replay: no additional credit, no additional audit entry.
			replayed = true
			return nil
		}

		pkg, err := tx.GetPackage(ctx, payment.PackageRef)
		if err != nil {
			return err
		}

		gwFee := payment.PriceTotalETB - pkg.BaseETB - payment.VATETB
		if verify.HasGwFee {
			diff := verify.GwFeeETB - gwFee
			if diff < 0 {
				diff = -diff
			}
			if diff > money.FromFloat(0.01) {
				_ = tx.AppendAudit(ctx, ledger.AuditLog{
					ID:       uuid.NewString(),
					UserRef:  payment.UserRef,
					ActorRef: "system",
					Event:    "GATEWAY_FEE_MISMATCH",
					Metadata: map[string]any{
						"tx_ref":         txRef,
						"computed_fee":   gwFee.Float64(),
						"reported_fee":   verify.GwFeeETB.Float64(),
					},
					OccurredAt: time.Now(),
				})
			}
			gwFee = verify.GwFeeETB
		}

		payment.Status = ledger.PaymentSuccess
		payment.ProviderRef = verify.ProviderRef
		payment.GwFeeETB = gwFee
		payment.UpdatedAt = time.Now()
		if err := tx.SavePayment(ctx, payment); err != nil {
			return err
		}

		wallet, err := tx.LockWallet(ctx, payment.UserRef)
		if err != nil {
			return err
		}
		before := wallet.CoinBalance
		wallet.CoinBalance += pkg.Coins
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		hasReceipt, err := tx.HasReceipt(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !hasReceipt {
			if err := tx.CreateReceipt(ctx, ledger.Receipt{
				ID:          uuid.NewString(),
				PaymentID:   payment.ID,
				ProviderRef: payment.ProviderRef,
				UserRef:     payment.UserRef,
				AmountETB:   payment.PriceTotalETB,
				IssuedAt:    time.Now(),
			}); err != nil {
				return err
			}
		}

		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID:       uuid.NewString(),
			UserRef:  payment.UserRef,
			ActorRef: "system",
			Event:    "PAYMENT_SUCCESS",
			Metadata: map[string]any{
				"tx_ref":           txRef,
				"coins_before":     before,
				"coins_after":      wallet.CoinBalance,
				"coins_purchased":  pkg.Coins,
			},
			OccurredAt: time.Now(),
		}); err != nil {
			return err
		}

		notifyUserRef = payment.UserRef
		settled = true
		return nil
	})
	if err != nil {
		return err
	}

	if settled && h.Notifier != nil {
		h.Notifier.Publish(ctx, realtime.UserGroup(notifyUserRef), realtime.Event{
			Type:    "wallet.updated",
			Payload: map[string]any{"user_ref": notifyUserRef},
		})
	}
	if h.Metrics != nil {
		if settled {
			h.Metrics.TopupsSuccessTotal.WithLabelValues(providerLabel).Inc()
		}
		if replayed {
			h.Metrics.WebhookReplaysTotal.WithLabelValues("topup").Inc()
		}
	}
	if settled && h.Risk != nil {
		if _, err := h.Risk.Evaluate(ctx, notifyUserRef); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("user_ref", notifyUserRef).Msg("webhook.risk_evaluate_failed")
		}
	}
	return nil
}

// settleSubscription activates a perk purchase (spec.md §4.4 final paragraph, §4.7).
func (h *Handler) settleSubscription(ctx context.Context, txRef string, verify provider.VerifyResult) error {
	var notifyUserRef string
	var settled bool
	var replayed bool
	var planLabel string

	err := h.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		sub, found, err := tx.LockSubscriptionByTxRef(ctx, txRef)
		if err != nil {
			return err
		}
		if !found {
			return errors.New("webhook: unknown subscription for tx_ref " + txRef)
		}
		planLabel = string(sub.Plan)
		if sub.Status == ledger.PaymentSuccess {
			replayed = true
			return nil
		}

		now := time.Now()
		expiry := now.AddDate(0, 0, sub.DurationDays)

		sub.Status = ledger.PaymentSuccess
		sub.ProviderRef = verify.ProviderRef
		sub.ActivatedAt = &now
		sub.ExpiresAt = &expiry
		if err := tx.SaveSubscriptionPurchase(ctx, sub); err != nil {
			return err
		}

		perks, err := tx.LockPerks(ctx, sub.UserRef)
		if err != nil {
			return err
		}
		switch sub.Plan {
		case ledger.PlanBoost:
			perks.BoostExpiry = &expiry
		case ledger.PlanLikesReveal:
			perks.LikesRevealExpiry = &expiry
		case ledger.PlanAdFree:
			perks.AdFreeExpiry = &expiry
		}
		if err := tx.SavePerks(ctx, perks); err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID:       uuid.NewString(),
			UserRef:  sub.UserRef,
			ActorRef: "system",
			Event:    "SUBSCRIPTION_ACTIVATED",
			Metadata: map[string]any{
				"tx_ref":  txRef,
				"plan":    sub.Plan,
				"expires": expiry,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		notifyUserRef = sub.UserRef
		settled = true
		return nil
	})
	if err != nil {
		return err
	}

	if settled && h.Notifier != nil {
		h.Notifier.Publish(ctx, realtime.UserGroup(notifyUserRef), realtime.Event{
			Type:    "perks.updated",
			Payload: map[string]any{"user_ref": notifyUserRef},
		})
	}
	if h.Metrics != nil {
		if settled {
			h.Metrics.SubscriptionPurchasesTotal.WithLabelValues(planLabel, "settled").Inc()
		}
		if replayed {
			h.Metrics.WebhookReplaysTotal.WithLabelValues("subscription").Inc()
		}
	}
	return nil
}
