// Package risk implements the rule-based withdrawal-blocking engine
// (spec.md §4.9, C9): a pure rule evaluation over recent activity windows,
// re-entrant and schedulable both per-user and across all users.
package risk

import (
	"context"
	"time"

	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/google/uuid"
)

// Reason is one triggered rule name (spec.md §4.9 rule table).
type Reason string

const (
	ReasonExcessiveTopups           Reason = "excessive_topups"
	ReasonLargeGifts                Reason = "large_gifts"
	ReasonRepeatWithdrawDestination Reason = "repeat_withdraw_destination"
)

// Config holds the tunable thresholds from spec.md §4.9/§6.4.
type Config struct {
	Window                     time.Duration
	ExcessiveTopupsCount       int
	LargeGiftsSumETB           money.ETB
	RepeatWithdrawDestinations int
}

// Service evaluates risk rules and toggles the wallet's withdrawals_blocked flag.
type Service struct {
	Store   ledger.Store
	Config  Config
	Metrics *metrics.Metrics
}

// Evaluate implements spec.md §4.9: computes the triggered reasons for
// userRef and sets or clears withdrawals_blocked accordingly, auditing
// RISK_FLAGGED or RISK_CLEARED only when the flag actually changes value.
func (s *Service) Evaluate(ctx context.Context, userRef string) ([]Reason, error) {
	reasons, err := s.reasons(ctx, userRef)
	if err != nil {
		return nil, err
	}

	blocked := len(reasons) > 0
	changed := false

	err = s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		wallet, err := tx.LockWallet(ctx, userRef)
		if err != nil {
			return err
		}
		if wallet.WithdrawalsBlocked == blocked {
			return nil
		}
		changed = true
		wallet.WithdrawalsBlocked = blocked
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}

		event := "RISK_CLEARED"
		if blocked {
			event = "RISK_FLAGGED"
		}
		return tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: userRef, ActorRef: "system",
			Event:      event,
			Metadata:   map[string]any{"reasons": reasons},
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.Metrics != nil && changed {
		outcome := "cleared"
		if blocked {
			outcome = "flagged"
		}
		s.Metrics.RiskFlaggedTotal.WithLabelValues(outcome).Inc()
	}
	return reasons, nil
}

// reasons computes the triggered rule set without mutating any state,
// letting callers (tests, dashboards) inspect the evaluation in isolation.
func (s *Service) reasons(ctx context.Context, userRef string) ([]Reason, error) {
	window := s.Config.Window
	if window <= 0 {
		window = 60 * time.Minute
	}
	since := time.Now().Add(-window)

	var reasons []Reason

	var topupErr, giftErr, destErr error
	var topupCount int
	var giftSum int64
	var destCounts map[string]int

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		topupCount, topupErr = tx.CountSuccessPaymentsSince(ctx, userRef, since)
		if topupErr != nil {
			return topupErr
		}
		giftSum, giftErr = tx.SumReceivedGiftValueSince(ctx, userRef, since)
		if giftErr != nil {
			return giftErr
		}
		destCounts, destErr = tx.RecentWithdrawalDestinationCounts(ctx, userRef, since)
		return destErr
	})
	if err != nil {
		return nil, err
	}

	threshold := s.Config.ExcessiveTopupsCount
	if threshold <= 0 {
		threshold = 5
	}
	if topupCount >= threshold {
		reasons = append(reasons, ReasonExcessiveTopups)
	}

	largeGiftsThreshold := s.Config.LargeGiftsSumETB
	if largeGiftsThreshold <= 0 {
		largeGiftsThreshold = money.FromFloat(10000)
	}
	if money.ETB(giftSum) >= largeGiftsThreshold {
		reasons = append(reasons, ReasonLargeGifts)
	}

	repeatThreshold := s.Config.RepeatWithdrawDestinations
	if repeatThreshold <= 0 {
		repeatThreshold = 3
	}
	for _, count := range destCounts {
		if count >= repeatThreshold {
			reasons = append(reasons, ReasonRepeatWithdrawDestination)
			break
		}
	}

	return reasons, nil
}

// EvaluateAll runs Evaluate for every known user, for the periodic sweep
// (spec.md §4.9: "schedulable ... across all users").
func (s *Service) EvaluateAll(ctx context.Context) (evaluated, flagged int, err error) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			s.Metrics.RiskSweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	userRefs, err := s.Store.ListAllUserRefs(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, userRef := range userRefs {
		reasons, err := s.Evaluate(ctx, userRef)
		if err != nil {
			return evaluated, flagged, err
		}
		evaluated++
		if len(reasons) > 0 {
			flagged++
		}
	}
	return evaluated, flagged, nil
}
