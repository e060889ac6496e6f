// Package gifts implements the atomic gift-send engine (spec.md §4.5, C5).
package gifts

import (
	"context"
	"errors"
	"time"

	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/logger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/realtime"
	"github.com/addispay/wallet-server/internal/risk"
	"github.com/google/uuid"
)

// Errors returned by Send, each carrying a stable error code for the HTTP layer.
var (
	ErrSelfGift       = apiErr(apierrors.ErrInvalidInput, "cannot send a gift to yourself")
	ErrInvalidGift    = apiErr(apierrors.ErrNotFound, "gift is not active")
	ErrInvalidRecip   = apiErr(apierrors.ErrNotFound, "recipient does not exist")
	ErrSenderBanned   = apiErr(apierrors.ErrBlocked, "sender is banned")
	ErrInvalidQty     = apiErr(apierrors.ErrInvalidInput, "quantity must be between 1 and 100")
	ErrInsufficient   = apiErr(apierrors.ErrInsufficientCoins, "insufficient coin balance")
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

// Service sends gifts between users (spec.md §4.5).
type Service struct {
	Store     ledger.Store
	Notifier  realtime.Notifier
	Metrics   *metrics.Metrics
	Recipient RecipientValidator // optional; nil accepts any recipient
	Risk      RiskEvaluator      // optional; nil skips post-send risk re-evaluation
	// CommissionRate and VATRate feed split_gift (spec.md §6.4 money.Config).
	CommissionRate float64
	VATRate        float64
}

// RiskEvaluator re-evaluates a single user's withdrawal-risk rules after a
// money-moving event touches their account (spec.md §4.9: evaluation must be
// schedulable per-user, not only on the periodic sweep). *risk.Service
// satisfies this.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, userRef string) ([]risk.Reason, error)
}

// SendRequest is the input to Send.
type SendRequest struct {
	SenderRef    string
	RecipientRef string
	GiftRef      string
	Quantity     int
	Message      string
}

// SendResult is returned to the caller on success.
type SendResult struct {
	TransactionID string
	Split         money.GiftSplit
}

// RecipientValidator confirms a user ref is a real account before a gift is
// sent to it; this payments core has no user directory of its own, so the
// caller (typically the HTTP layer, backed by the identity service) supplies
// one. A nil validator accepts any recipient, matching this core's wallets
// being created lazily on first access.
type RecipientValidator interface {
	Exists(ctx context.Context, userRef string) bool
}

// Send implements spec.md §4.5: validates guards, then atomically debits the
// sender and credits the recipient's creator earnings inside one
// transaction, locking wallets in ascending user-ref order to avoid
// deadlocks with a concurrent reverse-direction gift.
func (s *Service) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()

	if req.SenderRef == req.RecipientRef {
		return SendResult{}, ErrSelfGift
	}
	if req.Quantity < 1 || req.Quantity > 100 {
		return SendResult{}, ErrInvalidQty
	}

	if s.Recipient != nil && !s.Recipient.Exists(ctx, req.RecipientRef) {
		return SendResult{}, ErrInvalidRecip
	}

	first, second := req.SenderRef, req.RecipientRef
	if second < first {
		first, second = second, first
	}

	var result SendResult
	var failureReason string
	var totalCoins uint64
	var totalValue money.ETB
	var split money.GiftSplit

	txErr := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		firstWallet, err := tx.LockWallet(ctx, first)
		if err != nil {
			return err
		}
		secondWallet, err := tx.LockWallet(ctx, second)
		if err != nil {
			return err
		}
		senderWallet, recipientWallet := firstWallet, secondWallet
		if first != req.SenderRef {
			senderWallet, recipientWallet = secondWallet, firstWallet
		}

		if senderWallet.IsBanned {
			failureReason = "SENDER_BANNED"
			return ErrSenderBanned
		}

		gift, err := tx.GetGift(ctx, req.GiftRef)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				failureReason = "INVALID_GIFT"
				return ErrInvalidGift
			}
			return err
		}
		if !gift.Active {
			failureReason = "INVALID_GIFT"
			return ErrInvalidGift
		}

		totalCoins = gift.Coins * uint64(req.Quantity)
		totalValue = money.ETB(int64(gift.ValueETB) * int64(req.Quantity))
		split, err = money.SplitGift(totalValue, s.CommissionRate, s.VATRate)
		if err != nil {
			return apiErr(apierrors.ErrInternal, err.Error())
		}

		ok, err := tx.DebitCoins(ctx, req.SenderRef, totalCoins)
		if err != nil {
			return err
		}
		if !ok {
			failureReason = "INSUFFICIENT_COINS"
			return ErrInsufficient
		}

		recipientWallet.BalanceETB += split.CreatorPayout
		if err := tx.SaveWallet(ctx, recipientWallet); err != nil {
			return err
		}

		txID := uuid.NewString()
		now := time.Now()
		if err := tx.CreateGiftTransaction(ctx, ledger.GiftTransaction{
			ID:              txID,
			SenderRef:       req.SenderRef,
			RecipientRef:    req.RecipientRef,
			GiftRef:         req.GiftRef,
			CoinsSpent:      totalCoins,
			ValueETB:        totalValue,
			CommissionGross: split.CommissionGross,
			VATOnCommission: split.VATOnCommission,
			CommissionNet:   split.CommissionNet,
			CreatorPayout:   split.CreatorPayout,
			Status:          ledger.GiftTxSuccess,
			OccurredAt:      now,
		}); err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: req.SenderRef, ActorRef: req.SenderRef,
			Event: "GIFT_SENT",
			Metadata: map[string]any{
				"gift_ref": req.GiftRef, "quantity": req.Quantity,
				"coins_spent": totalCoins, "recipient": req.RecipientRef, "tx_id": txID,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: req.RecipientRef, ActorRef: req.SenderRef,
			Event: "GIFT_RECEIVED",
			Metadata: map[string]any{
				"gift_ref": req.GiftRef, "quantity": req.Quantity,
				"creator_payout": split.CreatorPayout.Float64(), "sender": req.SenderRef, "tx_id": txID,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = SendResult{TransactionID: txID, Split: split}
		return nil
	})

	if txErr != nil {
		_ = s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.AppendAudit(ctx, ledger.AuditLog{
				ID: uuid.NewString(), UserRef: req.SenderRef, ActorRef: req.SenderRef,
				Event:      "GIFT_SEND_FAILED",
				Metadata:   map[string]any{"gift_ref": req.GiftRef, "reason": failureReason, "error": txErr.Error()},
				OccurredAt: time.Now(),
			})
		})
		if s.Metrics != nil {
			s.Metrics.GiftsFailedTotal.WithLabelValues(failureReason).Inc()
		}
		return SendResult{}, txErr
	}

	if s.Notifier != nil {
		s.Notifier.Publish(ctx, realtime.UserGroup(req.SenderRef), realtime.Event{
			Type:    "gift.sent",
			Payload: map[string]any{"gift_ref": req.GiftRef, "tx_id": result.TransactionID},
		})
		s.Notifier.Publish(ctx, realtime.UserGroup(req.RecipientRef), realtime.Event{
			Type:    "gift.received",
			Payload: map[string]any{"gift_ref": req.GiftRef, "tx_id": result.TransactionID},
		})
		s.Notifier.Publish(ctx, realtime.UserGroup(req.RecipientRef), realtime.Event{
			Type:    "wallet.updated",
			Payload: map[string]any{"user_ref": req.RecipientRef},
		})
	}
	if s.Metrics != nil {
		s.Metrics.GiftsSentTotal.WithLabelValues(req.GiftRef).Inc()
		s.Metrics.GiftValueETBTotal.Add(float64(totalValue))
		s.Metrics.CreatorPayoutETBTotal.Add(float64(split.CreatorPayout))
		s.Metrics.GiftSendDuration.Observe(time.Since(start).Seconds())
	}

	if s.Risk != nil {
		if _, err := s.Risk.Evaluate(ctx, req.RecipientRef); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("user_ref", req.RecipientRef).Msg("gifts.risk_evaluate_failed")
		}
	}

	return result, nil
}
