// Package inventory is the InventoryLedger: the authoritative store of
// positions, exposure, and inventory imbalance (SPEC_FULL.md §4.2). It is
// owned exclusively by the task that applies venue fills and is read by
// everyone else through an immutable Snapshot.
package inventory

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// epsilon guards the imbalance formula's denominator against division by
// zero when both legs are flat.
var epsilon = decimal.New(1, -9)

// Snapshot is an immutable view of the ledger for risk/quote consumers.
type Snapshot struct {
	Positions map[types.Outcome]types.Position
	Imbalance decimal.Decimal
}

// ExposureUSD returns Sum(position.size * mark(outcome)) over both outcomes.
func (s Snapshot) ExposureUSD(mark func(types.Outcome) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for outcome, pos := range s.Positions {
		total = total.Add(pos.Size.Mul(mark(outcome)))
	}
	return total
}

// Ledger is the mutable position store. Fills are applied in venue
// trade_id order; duplicates are dropped idempotently.
type Ledger struct {
	mu         sync.RWMutex
	positions  map[types.Outcome]types.Position
	seenTrades map[string]struct{}
	logger     *slog.Logger
}

// New returns an empty ledger (zero position in both outcomes).
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		positions: map[types.Outcome]types.Position{
			types.YES: {Size: decimal.Zero, AverageCost: decimal.Zero},
			types.NO:  {Size: decimal.Zero, AverageCost: decimal.Zero},
		},
		seenTrades: make(map[string]struct{}),
		logger:     logger,
	}
}

// ApplyFill updates the position for fill.Outcome and blends average cost.
// Duplicate trade_ids are a no-op. A SELL that would take size negative is
// rejected (short-selling is unsupported) and logged, leaving the position
// unchanged.
func (l *Ledger) ApplyFill(fill types.Fill) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.seenTrades[fill.TradeID]; seen {
		return nil
	}

	pos := l.positions[fill.Outcome]

	switch fill.Side {
	case types.BUY:
		totalCost := pos.AverageCost.Mul(pos.Size).Add(fill.Price.Mul(fill.Size))
		pos.Size = pos.Size.Add(fill.Size)
		if pos.Size.Sign() > 0 {
			pos.AverageCost = totalCost.Div(pos.Size)
		} else {
			pos.AverageCost = decimal.Zero
		}
	case types.SELL:
		if fill.Size.GreaterThan(pos.Size) {
			l.logger.Error("rejecting sell fill below zero inventory",
				"outcome", fill.Outcome, "trade_id", fill.TradeID,
				"position_size", pos.Size.String(), "fill_size", fill.Size.String())
			return fmt.Errorf("inventory: sell of %s %s would go short (have %s)", fill.Size, fill.Outcome, pos.Size)
		}
		pos.Size = pos.Size.Sub(fill.Size)
		if pos.Size.IsZero() {
			pos.AverageCost = decimal.Zero
		}
	default:
		return fmt.Errorf("inventory: unknown side %q", fill.Side)
	}

	l.positions[fill.Outcome] = pos
	l.seenTrades[fill.TradeID] = struct{}{}
	return nil
}

// Imbalance returns (yes_size - no_size) / (yes_size + no_size + epsilon),
// in [-1, 1]. Positive means net long YES.
func (l *Ledger) Imbalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.imbalanceLocked()
}

func (l *Ledger) imbalanceLocked() decimal.Decimal {
	yes := l.positions[types.YES].Size
	no := l.positions[types.NO].Size
	denom := yes.Add(no).Add(epsilon)
	return yes.Sub(no).Div(denom)
}

// Snapshot returns an immutable copy of current positions and imbalance.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[types.Outcome]types.Position, len(l.positions))
	for k, v := range l.positions {
		positions[k] = v
	}
	return Snapshot{Positions: positions, Imbalance: l.imbalanceLocked()}
}
