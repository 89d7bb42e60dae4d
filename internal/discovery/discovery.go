// Package discovery resolves the single market this process trades, either
// by direct lookup (market_discovery_enabled=false) or by scanning the
// active market list for a matching id (market_discovery_enabled=true).
// Grounded on original_source/src/main.py's discover_market, translated
// into the teacher's REST-client idiom; the teacher's own
// internal/market/scanner.go polls many markets and ranks them by spread —
// this package narrows that to a single configured market_id, per
// SPEC_FULL.md §4.7's one-market-per-process scope.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// Client is the subset of exchange.Client discovery calls.
type Client interface {
	GetMarket(ctx context.Context, marketID string) (*types.MarketDTO, error)
	ListMarkets(ctx context.Context) ([]types.MarketDTO, error)
}

// Discover resolves marketID to its descriptor. When discoveryEnabled is
// false it fetches the market directly; otherwise it scans the active,
// non-closed market list and matches by id, logging a warning if absent.
func Discover(ctx context.Context, client Client, marketID string, discoveryEnabled bool, logger *slog.Logger) (*types.MarketDTO, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !discoveryEnabled {
		market, err := client.GetMarket(ctx, marketID)
		if err != nil {
			return nil, fmt.Errorf("get market %s: %w", marketID, err)
		}
		return market, nil
	}

	markets, err := client.ListMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	for i := range markets {
		m := markets[i]
		if m.ConditionID == marketID {
			if !m.Active || m.Closed {
				return nil, fmt.Errorf("market %s is not active (active=%v closed=%v)", marketID, m.Active, m.Closed)
			}
			logger.Info("market discovered", "market_id", marketID, "question", m.Question)
			return &m, nil
		}
	}

	logger.Warn("market not found in active list", "market_id", marketID)
	return nil, fmt.Errorf("market %s not found among active markets", marketID)
}
