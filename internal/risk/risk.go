// Package risk implements the RiskGate: a pure pre-trade validation
// function with no owned state (SPEC_FULL.md §4.3). It is called
// synchronously by the CancelReplaceLoop for every candidate quote.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// eightyPct is the fraction of max exposure above which only
// exposure-reducing orders are accepted.
var eightyPct = decimal.RequireFromString("0.8")

// Reason names why a candidate order was rejected.
type Reason string

const (
	ExceedsMaxExposure             Reason = "exceeds_max_exposure"
	BelowMinSize                   Reason = "below_min_size"
	InventoryOutsideTargetBand     Reason = "inventory_outside_target_band"
	ExposureIncreasesWrongDirection Reason = "exposure_increases_wrong_direction"
)

// Config carries the limits RiskGate enforces. It is a plain value, not
// read from any mutable store, keeping Evaluate a pure function of its
// arguments.
type Config struct {
	MaxExposureUSD         decimal.Decimal
	MinExposureUSD         decimal.Decimal
	TargetInventoryBalance decimal.Decimal
}

// Intent describes the candidate order under evaluation.
type Intent struct {
	Side types.Side
	// NotionalUSD is price * size for this candidate order.
	NotionalUSD decimal.Decimal
	// Reduces reports whether filling this order moves exposure toward
	// zero. The inventory is long-only (no shorting), so a SELL always
	// reduces magnitude and a BUY always increases it.
	Reduces bool
	// ProjectedImbalance is the inventory imbalance that would result if
	// this order filled.
	ProjectedImbalance decimal.Decimal
}

// Evaluate returns true (Accept) or false with a Reason (Reject). It reads
// only its arguments — no package-level or owned state — so it can be
// called freely from any goroutine.
func Evaluate(intent Intent, currentExposureUSD decimal.Decimal, currentImbalance decimal.Decimal, cfg Config) (bool, Reason) {
	if intent.NotionalUSD.LessThan(cfg.MinExposureUSD) {
		return false, BelowMinSize
	}

	projected := currentExposureUSD
	if intent.Reduces {
		projected = projected.Sub(intent.NotionalUSD)
	} else {
		projected = projected.Add(intent.NotionalUSD)
	}
	if projected.Abs().GreaterThan(cfg.MaxExposureUSD) {
		return false, ExceedsMaxExposure
	}

	highExposure := currentExposureUSD.Abs().GreaterThan(cfg.MaxExposureUSD.Mul(eightyPct))
	if highExposure && !intent.Reduces {
		return false, ExposureIncreasesWrongDirection
	}

	if currentImbalance.Abs().GreaterThan(cfg.TargetInventoryBalance) &&
		intent.ProjectedImbalance.Abs().GreaterThan(currentImbalance.Abs()) {
		return false, InventoryOutsideTargetBand
	}

	return true, ""
}
