package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/pkg/walletapp"
)

func main() {
	// Best-effort local dev convenience; a missing .env is normal in
	// deployed environments where config comes from the process env.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("WALLET_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	app, err := walletapp.New(cfg, nil, nil, prometheus.DefaultRegisterer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wallet-server: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Logger.Info().Str("address", cfg.Server.Address).Msg("wallet-server.starting")
	if err := app.Run(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("wallet-server.exited")
	}
}
