// Command riskjob runs a single risk-evaluation pass over every wallet and
// exits, for operators who want an on-demand sweep outside the server's own
// ticker (spec.md §4.9's "schedulable ... across all users" applies equally
// to a cron-triggered one-shot as to the in-process scheduler).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/addispay/wallet-server/internal/money"
	"github.com/addispay/wallet-server/internal/risk"
)

func main() {
	configPath := flag.String("config", os.Getenv("WALLET_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var store ledger.Store
	if cfg.Database.Backend == "memory" {
		store = ledger.NewMemoryStore()
	} else {
		store, err = ledger.NewPostgresStore(cfg.Database.PostgresURL, cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "store: %v\n", err)
			os.Exit(1)
		}
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	svc := &risk.Service{
		Store: store,
		Config: risk.Config{
			Window:                     cfg.Risk.Window.Duration,
			ExcessiveTopupsCount:       cfg.Risk.ExcessiveTopupsCount,
			LargeGiftsSumETB:           money.FromFloat(cfg.Risk.LargeGiftsSumETB),
			RepeatWithdrawDestinations: cfg.Risk.RepeatWithdrawDestinations,
		},
		Metrics: metrics.New(nil),
	}

	evaluated, flagged, err := svc.EvaluateAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "riskjob: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("riskjob: evaluated=%d flagged=%d\n", evaluated, flagged)
}
