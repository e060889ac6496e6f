// Package subscriptions implements the perk-purchase orchestrator (spec.md
// §4.7, C7): it creates a SubscriptionPurchase row and calls the external
// payment provider for a checkout URL, mirroring internal/topup's coin
// top-up flow. Activation (crediting the perk itself) happens either via
// the webhook handler (C4, settleSubscription) or, for local/dev use, via
// Activate below, which performs the identical state transition.
package subscriptions

import (
	"context"
	"errors"
	"time"

	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/provider"
	"github.com/addispay/wallet-server/internal/realtime"
	"github.com/google/uuid"
)

// CodedError carries the stable error code the HTTP layer maps to a status.
type CodedError struct {
	Code    apierrors.ErrorCode
	Message string
}

func (e *CodedError) Error() string { return e.Message }

// ErrorCode exposes the stable error code for the HTTP layer.
func (e *CodedError) ErrorCode() apierrors.ErrorCode { return e.Code }

func apiErr(code apierrors.ErrorCode, msg string) *CodedError {
	return &CodedError{Code: code, Message: msg}
}

var (
	ErrUnknownPlan = apiErr(apierrors.ErrInvalidInput, "unknown subscription plan")
	ErrNotFound    = apiErr(apierrors.ErrNotFound, "subscription purchase not found")
)

// PlanPricing is the authoritative price/duration for one plan (spec.md §9
// OQ3: one table, sourced from config, boot fails on mismatch elsewhere).
type PlanPricing struct {
	Plan         ledger.SubscriptionPlan
	PriceETB     money.ETB
	DurationDays int
}

// Service initiates and activates perk purchases.
type Service struct {
	Store    ledger.Store
	Provider *provider.Client
	Notifier realtime.Notifier
	Metrics  *metrics.Metrics
	Plans    []PlanPricing

	CallbackURL string
}

func (s *Service) pricingFor(plan ledger.SubscriptionPlan) (PlanPricing, bool) {
	for _, p := range s.Plans {
		if p.Plan == plan {
			return p, true
		}
	}
	return PlanPricing{}, false
}

// PurchaseRequest is the input to Purchase.
type PurchaseRequest struct {
	UserRef   string
	Plan      ledger.SubscriptionPlan
	ReturnURL string
	Customer  provider.Customer
}

// PurchaseResult is returned to the caller on success.
type PurchaseResult struct {
	CheckoutURL string
	TxRef       string
	PurchaseID  string
}

// Purchase implements spec.md §4.7 "Purchase creates a SubscriptionPurchase
// and a Payment-like flow (§4.3)".
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	pricing, ok := s.pricingFor(req.Plan)
	if !ok {
		return PurchaseResult{}, ErrUnknownPlan
	}

	txRef := provider.NewSubscriptionTxRef(string(req.Plan))
	sub := ledger.SubscriptionPurchase{
		ID:           uuid.NewString(),
		UserRef:      req.UserRef,
		Plan:         req.Plan,
		AmountETB:    pricing.PriceETB,
		DurationDays: pricing.DurationDays,
		Status:       ledger.PaymentInitiated,
		TxRef:        txRef,
	}

	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateSubscriptionPurchase(ctx, sub)
	}); err != nil {
		return PurchaseResult{}, err
	}

	if s.Metrics != nil {
		s.Metrics.SubscriptionPurchasesTotal.WithLabelValues(string(req.Plan), "initiated").Inc()
	}

	initResult, err := s.Provider.Initiate(ctx, provider.InitiateRequest{
		AmountETB:   pricing.PriceETB,
		TxRef:       txRef,
		CallbackURL: s.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Title:       "Perk subscription",
		Description: "Subscribe to " + string(req.Plan),
		Customer:    req.Customer,
		Meta: map[string]string{
			"user_ref": req.UserRef,
			"plan":     string(req.Plan),
			"tx_ref":   txRef,
		},
	})
	if err != nil {
		if s.Metrics != nil {
			reason := "unavailable"
			if errors.Is(err, provider.ErrRejected) {
				reason = "rejected"
			}
			s.Metrics.SubscriptionPurchasesTotal.WithLabelValues(string(req.Plan), reason).Inc()
		}
		if errors.Is(err, provider.ErrRejected) {
			return PurchaseResult{}, apiErr(apierrors.ErrProviderRejected, err.Error())
		}
		return PurchaseResult{}, apiErr(apierrors.ErrProviderUnavailable, err.Error())
	}

	sub.ProviderRef = initResult.ProviderRef
	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SaveSubscriptionPurchase(ctx, sub)
	}); err != nil {
		return PurchaseResult{}, err
	}

	return PurchaseResult{
		CheckoutURL: initResult.CheckoutURL,
		TxRef:       txRef,
		PurchaseID:  sub.ID,
	}, nil
}

// Activate performs the same perk-activation transition as the webhook
// handler's settleSubscription, for local development and tests where there
// is no live provider callback (spec.md §4.7: "explicit activate endpoint
// for dev"). It is idempotent: activating an already-settled purchase is a
// no-op.
func (s *Service) Activate(ctx context.Context, txRef string) error {
	var notifyUserRef string
	var settled bool
	var planLabel string

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		sub, found, err := tx.LockSubscriptionByTxRef(ctx, txRef)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		planLabel = string(sub.Plan)
		if sub.Status == ledger.PaymentSuccess {
			return nil
		}

		now := time.Now()
		expiry := now.AddDate(0, 0, sub.DurationDays)

		sub.Status = ledger.PaymentSuccess
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
				"via":     "dev_activate",
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

	if settled && s.Notifier != nil {
		s.Notifier.Publish(ctx, realtime.UserGroup(notifyUserRef), realtime.Event{
			Type:    "perks.updated",
			Payload: map[string]any{"user_ref": notifyUserRef},
		})
	}
	if s.Metrics != nil && settled {
		s.Metrics.SubscriptionPurchasesTotal.WithLabelValues(planLabel, "settled").Inc()
	}
	return nil
}

// ListPlans returns the configured plan price table, for the
// GET /api/subscription-plans/ listing (spec.md §4.7).
func (s *Service) ListPlans() []PlanPricing {
	return s.Plans
}
