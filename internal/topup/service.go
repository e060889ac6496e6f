// Package topup implements the payment orchestrator (spec.md §4.3, C3): it
// creates a Payment row and calls the external payment provider to obtain a
// checkout URL, storing the provider reference for the webhook handler (C4)
// to settle later.
package topup

import (
	"context"
	"errors"
	"time"

	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/provider"
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

// Errors returned by Create.
var ErrInvalidPackage = apiErr(apierrors.ErrInvalidInput, "unknown coin package")

// Service initiates coin top-ups against the external payment provider.
type Service struct {
	Store    ledger.Store
	Provider *provider.Client
	Metrics  *metrics.Metrics

	CallbackURL string // webhook URL handed to the provider
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	UserRef    string
	PackageRef string
	ReturnURL  string
	Customer   provider.Customer
}

// CreateResult is returned to the caller on success (spec.md §4.3 step 4).
type CreateResult struct {
	CheckoutURL string
	TxRef       string
	PurchaseID  string
}

// Create implements spec.md §4.3 "Create top-up".
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	start := time.Now()

	pkg, err := s.Store.GetPackage(ctx, req.PackageRef)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return CreateResult{}, ErrInvalidPackage
		}
		return CreateResult{}, err
	}

	txRef := provider.NewTopupTxRef(req.UserRef)
	now := time.Now()
	payment := ledger.Payment{
		ID:            uuid.NewString(),
		UserRef:       req.UserRef,
		PackageRef:    req.PackageRef,
		Status:        ledger.PaymentInitiated,
		Provider:      ledger.ProviderChapa,
		TxRef:         txRef,
		PriceTotalETB: pkg.PriceTotalETB,
		VATETB:        pkg.VATETB,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreatePayment(ctx, payment)
	}); err != nil {
		return CreateResult{}, err
	}

	if s.Metrics != nil {
		s.Metrics.TopupsInitiatedTotal.WithLabelValues(string(payment.Provider)).Inc()
	}

	initResult, err := s.Provider.Initiate(ctx, provider.InitiateRequest{
		AmountETB:   pkg.PriceTotalETB,
		TxRef:       txRef,
		CallbackURL: s.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Title:       "Coin top-up",
		Description: "Purchase " + pkg.Name,
		Customer:    req.Customer,
		Meta: map[string]string{
			"user_ref":    req.UserRef,
			"package_ref": req.PackageRef,
			"tx_ref":      txRef,
		},
	})
	if s.Metrics != nil {
		s.Metrics.TopupDuration.WithLabelValues(string(payment.Provider)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// The Payment row is left INITIATED for manual triage, per spec.md §4.3
		// "Failure modes" — PROVIDER_REJECTED is not retryable and PROVIDER_UNAVAILABLE is.
		if s.Metrics != nil {
			reason := "unavailable"
			if errors.Is(err, provider.ErrRejected) {
				reason = "rejected"
			}
			s.Metrics.TopupsFailedTotal.WithLabelValues(string(payment.Provider), reason).Inc()
		}
		if errors.Is(err, provider.ErrRejected) {
			return CreateResult{}, apiErr(apierrors.ErrProviderRejected, err.Error())
		}
		return CreateResult{}, apiErr(apierrors.ErrProviderUnavailable, err.Error())
	}

	payment.CheckoutURL = initResult.CheckoutURL
	payment.ProviderRef = initResult.ProviderRef
	payment.UpdatedAt = time.Now()
	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SavePayment(ctx, payment)
	}); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		CheckoutURL: payment.CheckoutURL,
		TxRef:       txRef,
		PurchaseID:  payment.ID,
	}, nil
}
