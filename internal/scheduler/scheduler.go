// Package scheduler runs the periodic, idempotent background sweeps
// spec.md §4.7/§4.9/§5 require: perk expiry and risk re-evaluation. Both
// sweeps are safe to run concurrently with live requests and safe to run on
// any cadence. Uses a Start/Stop-over-stopCh-and-ticker shape for each sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/logger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/risk"
	"github.com/google/uuid"
)

// RiskEvaluator is the subset of risk.Service the scheduler depends on.
type RiskEvaluator interface {
	EvaluateAll(ctx context.Context) (evaluated, flagged int, err error)
}

// Scheduler owns the perk-expiry and risk sweep tickers.
type Scheduler struct {
	Store             ledger.Store
	Risk              RiskEvaluator
	Metrics           *metrics.Metrics
	PerkSweepInterval time.Duration
	RiskSweepInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Start launches both sweep loops as background goroutines. Each runs an
// initial pass immediately, then on its own ticker, until ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})

	perkInterval := s.PerkSweepInterval
	if perkInterval <= 0 {
		perkInterval = 10 * time.Minute
	}
	riskInterval := s.RiskSweepInterval
	if riskInterval <= 0 {
		riskInterval = 10 * time.Minute
	}

	s.wg.Add(2)
	go s.loop(ctx, "perk_expiry_sweep", perkInterval, s.runPerkSweep)
	go s.loop(ctx, "risk_sweep", riskInterval, s.runRiskSweep)
}

// Stop waits for both loops to exit.
func (s *Scheduler) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(ctx context.Context)) {
	defer s.wg.Done()

	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			log.Debug().Str("job", name).Msg("scheduler.tick")
			run(ctx)
		}
	}
}

// runPerkSweep implements spec.md §4.7's periodic sweep: for each perk whose
// expiry is in the past, clear it. The invariant "a perk is enabled iff
// expiry > now" already makes reads correct without this sweep; it exists to
// keep Perks rows from growing stale pointers and to emit PERK_EXPIRED audit
// entries, and is idempotent (re-running it is a no-op on already-cleared rows).
func (s *Scheduler) runPerkSweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			s.Metrics.PerkExpirySweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	now := time.Now()
	expired, err := s.Store.ListPerksPastExpiry(ctx, now)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("scheduler.perk_sweep_list_failed")
		return
	}

	for _, p := range expired {
		err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			perks, err := tx.LockPerks(ctx, p.UserRef)
			if err != nil {
				return err
			}
			cleared := clearExpiredPerks(&perks, now)
			if len(cleared) == 0 {
				return nil
			}
			if err := tx.SavePerks(ctx, perks); err != nil {
				return err
			}
			for _, plan := range cleared {
				if s.Metrics != nil {
					s.Metrics.PerksExpiredTotal.WithLabelValues(string(plan)).Inc()
				}
				if err := tx.AppendAudit(ctx, ledger.AuditLog{
					ID: uuid.NewString(), UserRef: p.UserRef, ActorRef: "system",
					Event:      "PERK_EXPIRED",
					Metadata:   map[string]any{"plan": plan},
					OccurredAt: now,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logger.FromContext(ctx).Error().Err(err).Str("user_ref", p.UserRef).Msg("scheduler.perk_sweep_user_failed")
		}
	}
}

// clearExpiredPerks nils out every perk expiry that has passed, returning
// which plans it cleared.
func clearExpiredPerks(p *ledger.Perks, now time.Time) []ledger.SubscriptionPlan {
	var cleared []ledger.SubscriptionPlan
	if p.BoostExpiry != nil && !p.BoostExpiry.After(now) {
		p.BoostExpiry = nil
		cleared = append(cleared, ledger.PlanBoost)
	}
	if p.LikesRevealExpiry != nil && !p.LikesRevealExpiry.After(now) {
		p.LikesRevealExpiry = nil
		cleared = append(cleared, ledger.PlanLikesReveal)
	}
	if p.AdFreeExpiry != nil && !p.AdFreeExpiry.After(now) {
		p.AdFreeExpiry = nil
		cleared = append(cleared, ledger.PlanAdFree)
	}
	return cleared
}

// runRiskSweep implements spec.md §4.9's all-users sweep.
func (s *Scheduler) runRiskSweep(ctx context.Context) {
	evaluated, flagged, err := s.Risk.EvaluateAll(ctx)
	log := logger.FromContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler.risk_sweep_failed")
		return
	}
	log.Info().Int("evaluated", evaluated).Int("flagged", flagged).Msg("scheduler.risk_sweep_complete")
}

var _ RiskEvaluator = (*risk.Service)(nil)
