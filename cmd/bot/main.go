// Polymarket Market Maker — an automated market maker for a single
// Polymarket binary prediction market.
//
// Architecture:
//
//	main.go                    — entry point: loads config, runs the orchestrator, waits for SIGINT/SIGTERM
//	internal/orchestrator      — wires every component and drives the process lifecycle
//	internal/book              — local order book mirror fed by WebSocket snapshots + deltas
//	internal/inventory         — tracks YES/NO positions and inventory imbalance
//	internal/quote             — computes skewed bid/ask quotes from book + inventory
//	internal/risk              — gates candidate quotes against exposure and inventory-band limits
//	internal/executor          — places, cancels, and reconciles orders against the venue
//	internal/loop              — the cancel-replace cycle driving the above each tick
//	internal/redeem            — sweeps resolved positions for redemption
//	internal/discovery         — resolves the configured market_id, optionally by scanning active markets
//	internal/exchange          — REST client and WebSocket feeds for the venue's CLOB API
//	internal/signer            — EIP-712/HMAC order signing
//	internal/metrics           — Prometheus metrics + HTTP endpoint
//
// How it makes money:
//
//	The bot posts a bid below mid price and an ask above mid price on one
//	binary market. When both sides fill, it earns the spread. Quotes skew
//	with inventory imbalance to attract offsetting fills when one side of
//	the position grows too large.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/config"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/orchestrator"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(int(orchestrator.ExitConfigError))
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(int(orchestrator.ExitConfigError))
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	orch, err := orchestrator.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(exitCodeFor(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("market maker starting", "market_id", cfg.Market.MarketID, "dry_run", cfg.DryRun)

	if err := orch.Run(ctx); err != nil {
		logger.Error("orchestrator exited with error", "error", err)
		os.Exit(exitCodeFor(err))
	}

	logger.Info("market maker stopped cleanly")
}

func exitCodeFor(err error) int {
	var fatal *orchestrator.FatalError
	if errors.As(err, &fatal) {
		return int(fatal.Code)
	}
	return int(orchestrator.ExitVenueError)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
