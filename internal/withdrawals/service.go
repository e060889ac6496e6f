// Package withdrawals implements the creator payout state machine
// (spec.md §4.6, C6): hold/approve/reject/paid.
package withdrawals

import (
	"context"
	"errors"
	"time"

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

// Errors returned by Create (spec.md §4.6 policy checks).
var (
	ErrKYCInsufficient = apiErr(apierrors.ErrKYCInsufficient, "kyc level 2 or higher is required to withdraw")
	ErrBlocked         = apiErr(apierrors.ErrBlocked, "withdrawals are blocked for this account")
	ErrBelowMin        = apiErr(apierrors.ErrInvalidInput, "amount is below the minimum withdrawal")
	ErrInsufficientAvl = apiErr(apierrors.ErrInsufficientAvailable, "amount exceeds available balance")
	ErrDailyLimit      = apiErr(apierrors.ErrLimitExceeded, "daily withdrawal limit exceeded")
	ErrMonthlyLimit    = apiErr(apierrors.ErrLimitExceeded, "monthly withdrawal limit exceeded")
	ErrNotPending      = apiErr(apierrors.ErrConflictDuplicate, "withdrawal is not pending")
	ErrNotApproved     = apiErr(apierrors.ErrConflictDuplicate, "withdrawal is not approved")
)

const minKYCLevel = 2

// Config holds the policy limits from spec.md §4.6/§6.4.
type Config struct {
	MinETB        money.ETB
	MaxDailyETB   money.ETB
	MaxMonthlyETB money.ETB
}

// Service runs the withdrawal lifecycle.
type Service struct {
	Store    ledger.Store
	Payout   provider.PayoutAdapter
	Notifier realtime.Notifier
	Metrics  *metrics.Metrics
	Risk     RiskEvaluator // optional; nil skips post-request risk re-evaluation
	Config   Config
}

// RiskEvaluator re-evaluates a single user's withdrawal-risk rules after a
// new withdrawal request is recorded (spec.md §4.9: per-event trigger).
// *risk.Service satisfies this.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, userRef string) ([]risk.Reason, error)
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	UserRef     string
	Method      ledger.WithdrawalMethod
	Destination string
	AmountETB   money.ETB
}

// Create implements spec.md §4.6 "Create withdrawal".
func (s *Service) Create(ctx context.Context, req CreateRequest) (ledger.WithdrawalRequest, error) {
	var result ledger.WithdrawalRequest

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		wallet, err := tx.LockWallet(ctx, req.UserRef)
		if err != nil {
			return err
		}

		if wallet.KYCLevel < minKYCLevel {
			return ErrKYCInsufficient
		}
		if wallet.WithdrawalsBlocked {
			return ErrBlocked
		}
		if req.AmountETB < s.Config.MinETB {
			return ErrBelowMin
		}
		if req.AmountETB > wallet.AvailableETB() {
			return ErrInsufficientAvl
		}

		now := time.Now()
		dailySum, err := tx.SumWithdrawalsSince(ctx, req.UserRef, now.Add(-24*time.Hour), ledger.WithdrawalRejected)
		if err != nil {
			return err
		}
		if money.ETB(dailySum)+req.AmountETB > s.Config.MaxDailyETB {
			return ErrDailyLimit
		}
		monthlySum, err := tx.SumWithdrawalsSince(ctx, req.UserRef, now.AddDate(0, 0, -30), ledger.WithdrawalRejected)
		if err != nil {
			return err
		}
		if money.ETB(monthlySum)+req.AmountETB > s.Config.MaxMonthlyETB {
			return ErrMonthlyLimit
		}

		wallet.HoldETB += req.AmountETB
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		result = ledger.WithdrawalRequest{
			ID:          uuid.NewString(),
			UserRef:     req.UserRef,
			Method:      req.Method,
			Destination: req.Destination,
			AmountETB:   req.AmountETB,
			Status:      ledger.WithdrawalPending,
			CreatedAt:   now,
		}
		if err := tx.CreateWithdrawal(ctx, result); err != nil {
			return err
		}

		return tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: req.UserRef, ActorRef: req.UserRef,
			Event:      "WITHDRAWAL_REQUESTED",
			Metadata:   map[string]any{"withdrawal_id": result.ID, "amount_etb": req.AmountETB.Float64(), "method": req.Method},
			OccurredAt: now,
		})
	})
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}

	if s.Notifier != nil {
		s.Notifier.Publish(ctx, realtime.AdminsGroup, realtime.Event{
			Type:    "withdrawal.new",
			Payload: map[string]any{"withdrawal_id": result.ID, "user_ref": req.UserRef},
		})
	}
	if s.Metrics != nil {
		s.Metrics.WithdrawalsCreatedTotal.WithLabelValues(string(req.Method)).Inc()
	}
	if s.Risk != nil {
		if _, err := s.Risk.Evaluate(ctx, req.UserRef); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("user_ref", req.UserRef).Msg("withdrawals.risk_evaluate_failed")
		}
	}
	return result, nil
}

// Approve transitions PENDING -> APPROVED and kicks off the payout (spec.md
// §4.6 "Admin approve"). actorRef is the admin's user ref for the audit trail.
func (s *Service) Approve(ctx context.Context, withdrawalID, actorRef string) (ledger.WithdrawalRequest, error) {
	var result ledger.WithdrawalRequest

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.LockWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Status != ledger.WithdrawalPending {
			return ErrNotPending
		}
		now := time.Now()
		w.Status = ledger.WithdrawalApproved
		w.ApprovedAt = &now
		if err := tx.SaveWithdrawal(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: w.UserRef, ActorRef: actorRef,
			Event:      "WITHDRAWAL_APPROVED",
			Metadata:   map[string]any{"withdrawal_id": w.ID},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	if s.Metrics != nil {
		s.Metrics.WithdrawalsApprovedTotal.Inc()
	}

	// Payout is triggered synchronously here; a production deployment can
	// instead enqueue it for the retriable background worker described in
	// spec.md §4.6 "Payout task" — ProcessPayout implements that same step
	// and is safe to call again if this attempt fails.
	_, payoutErr := s.ProcessPayout(ctx, result.ID)
	if payoutErr != nil {
		return result, nil // approval itself succeeded; payout failure is recorded and retriable
	}
	return result, nil
}

// Reject transitions PENDING -> REJECTED and releases the hold (spec.md
// §4.6 "Admin reject").
func (s *Service) Reject(ctx context.Context, withdrawalID, actorRef, reason string) (ledger.WithdrawalRequest, error) {
	var result ledger.WithdrawalRequest
	var notifyUserRef string

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.LockWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Status != ledger.WithdrawalPending {
			return ErrNotPending
		}

		wallet, err := tx.LockWallet(ctx, w.UserRef)
		if err != nil {
			return err
		}
		wallet.HoldETB -= w.AmountETB
		if wallet.HoldETB < 0 {
			wallet.HoldETB = 0
		}
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		w.Status = ledger.WithdrawalRejected
		w.FailureReason = reason
		if err := tx.SaveWithdrawal(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: w.UserRef, ActorRef: actorRef,
			Event:      "WITHDRAWAL_REJECTED",
			Metadata:   map[string]any{"withdrawal_id": w.ID, "reason": reason},
			OccurredAt: time.Now(),
		}); err != nil {
			return err
		}
		result = w
		notifyUserRef = w.UserRef
		return nil
	})
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}

	if s.Notifier != nil {
		s.Notifier.Publish(ctx, realtime.UserGroup(notifyUserRef), realtime.Event{
			Type:    "withdrawal.rejected",
			Payload: map[string]any{"withdrawal_id": result.ID, "reason": reason},
		})
	}
	if s.Metrics != nil {
		s.Metrics.WithdrawalsRejectedTotal.Inc()
	}
	return result, nil
}

// ProcessPayout implements spec.md §4.6 "Payout task": safe to call again if
// a previous attempt left the withdrawal APPROVED.
func (s *Service) ProcessPayout(ctx context.Context, withdrawalID string) (ledger.WithdrawalRequest, error) {
	start := time.Now()

	w, err := s.Store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	if w.Status != ledger.WithdrawalApproved {
		return w, nil
	}

	payoutResult, payErr := s.Payout.Pay(ctx, provider.PayoutRequest{
		WithdrawalRef: w.ID,
		UserRef:       w.UserRef,
		AmountETB:     w.AmountETB,
		Destination:   w.Destination,
	})

	var result ledger.WithdrawalRequest
	var notifyUserRef string
	var paid bool

	txErr := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		current, err := tx.LockWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if current.Status != ledger.WithdrawalApproved {
			result = current
			return nil
		}

		if payErr != nil || payoutResult.Status != provider.PayoutPaid {
			reason := payoutResult.Reason
			if payErr != nil {
				reason = payErr.Error()
			}
			current.FailureReason = reason
			if err := tx.SaveWithdrawal(ctx, current); err != nil {
				return err
			}
			result = current
			return nil
		}

		wallet, err := tx.LockWallet(ctx, current.UserRef)
		if err != nil {
			return err
		}
		wallet.BalanceETB -= current.AmountETB
		wallet.HoldETB -= current.AmountETB
		if wallet.HoldETB < 0 {
			wallet.HoldETB = 0
		}
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		now := time.Now()
		current.Status = ledger.WithdrawalPaid
		current.ProviderRef = payoutResult.ProviderRef
		current.PaidAt = &now
		if err := tx.SaveWithdrawal(ctx, current); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: current.UserRef, ActorRef: "system",
			Event:      "WITHDRAWAL_PAID",
			Metadata:   map[string]any{"withdrawal_id": current.ID, "provider_ref": current.ProviderRef},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = current
		notifyUserRef = current.UserRef
		paid = true
		return nil
	})
	if txErr != nil {
		return ledger.WithdrawalRequest{}, txErr
	}

	if paid && s.Notifier != nil {
		s.Notifier.Publish(ctx, realtime.UserGroup(notifyUserRef), realtime.Event{
			Type:    "withdrawal.paid",
			Payload: map[string]any{"withdrawal_id": result.ID},
		})
	}
	if s.Metrics != nil {
		if paid {
			s.Metrics.WithdrawalsPaidTotal.Inc()
		}
		s.Metrics.WithdrawalPayoutDuration.Observe(time.Since(start).Seconds())
	}
	if !paid {
		return result, errors.New("withdrawals: payout did not complete, left APPROVED for retry")
	}
	return result, nil
}
