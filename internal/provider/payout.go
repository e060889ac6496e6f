package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/addispay/wallet-server/internal/circuitbreaker"
	"github.com/addispay/wallet-server/internal/money"
)

// PayoutRequest describes a withdrawal to be paid out to a creator
// (spec.md §6.2: "pay(withdrawal) -> {status, provider_ref}").
type PayoutRequest struct {
	WithdrawalRef string
	UserRef       string
	AmountETB     money.ETB
	Destination   string // bank account / mobile money handle, provider-specific
}

// PayoutStatus is the outcome of a payout attempt.
type PayoutStatus string

const (
	PayoutPaid   PayoutStatus = "PAID"
	PayoutFailed PayoutStatus = "FAILED"
)

// PayoutResult is returned by a PayoutAdapter.
type PayoutResult struct {
	Status      PayoutStatus
	ProviderRef string
	Reason      string // populated when Status == PayoutFailed
}

// PayoutAdapter sends money to a creator once a withdrawal has been
// admin-approved (spec.md §4.6 step "paid"). Real deployments plug in a bank
// or mobile-money transfer API here; this package ships only the contract
// and a deterministic stub.
type PayoutAdapter interface {
	Pay(ctx context.Context, req PayoutRequest) (PayoutResult, error)
}

// StubPayoutAdapter is the default PayoutAdapter: it always succeeds with a
// synthetic reference, wrapped in the circuit breaker the same way a real
// adapter would be (spec.md §6.2: "The default implementation is a
// deterministic stub returning PAID with a synthetic reference — real
// adapters plug in here").
type StubPayoutAdapter struct {
	breaker *circuitbreaker.Manager
}

// NewStubPayoutAdapter builds the default payout adapter.
func NewStubPayoutAdapter(breaker *circuitbreaker.Manager) *StubPayoutAdapter {
	return &StubPayoutAdapter{breaker: breaker}
}

// Pay implements PayoutAdapter.
func (s *StubPayoutAdapter) Pay(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	op := func() (interface{}, error) {
		if req.Destination == "" {
			return PayoutResult{Status: PayoutFailed, Reason: "missing destination"}, nil
		}
		var b [6]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("%w: generating payout reference: %v", ErrUnavailable, err)
		}
		ref := "payout-" + hex.EncodeToString(b[:])
		return PayoutResult{Status: PayoutPaid, ProviderRef: ref}, nil
	}

	if s.breaker == nil {
		result, err := op()
		if err != nil {
			return PayoutResult{}, err
		}
		return result.(PayoutResult), nil
	}

	result, err := s.breaker.Execute(circuitbreaker.ServicePayoutAdapter, op)
	if err != nil {
		return PayoutResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(PayoutResult), nil
}
