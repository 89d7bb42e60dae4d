// Package quote is the QuoteEngine: given the current book and inventory,
// it derives target bid/ask prices and sizes for both outcomes
// (SPEC_FULL.md §4.4). It is stateless apart from a per-cycle generation
// counter.
package quote

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

var (
	one  = decimal.New(1, 0)
	two  = decimal.New(2, 0)
	zero = decimal.Zero
)

// Config tunes the imbalance/skew quoting algorithm.
type Config struct {
	BaseSize        decimal.Decimal
	MinSize         decimal.Decimal
	MaxSize         decimal.Decimal
	MinHalfSpread   decimal.Decimal
	WidenFactor     decimal.Decimal
	SkewCoefficient decimal.Decimal
	TickSize        types.TickSize
}

// Input is the book/inventory state one cycle computes quotes from.
type Input struct {
	MarketID   string
	YesTokenID string
	NoTokenID  string
	BestBid    decimal.Decimal
	BestAsk    decimal.Decimal
	Imbalance  decimal.Decimal
}

// Engine computes target quotes. The zero value is usable; Engine carries
// only a monotonic generation counter across cycles.
type Engine struct {
	generation uint64
}

// NewEngine returns a ready Engine with generation starting at zero.
func NewEngine() *Engine {
	return &Engine{}
}

// Compute runs one quoting cycle and returns up to four quotes (YES
// bid/ask, NO bid/ask). A side is omitted from the result when its price
// would be invalid or would cross the book (self-trade) — per spec step 6,
// that side is simply suppressed for the cycle, not an error.
func (e *Engine) Compute(in Input, cfg Config) []types.Quote {
	generation := atomic.AddUint64(&e.generation, 1)
	now := time.Now()

	tick := cfg.TickSize.Decimal()

	mid := in.BestBid.Add(in.BestAsk).Div(two)
	observedSpread := in.BestAsk.Sub(in.BestBid)

	halfSpread := observedSpread.Div(two).Mul(cfg.WidenFactor)
	if halfSpread.LessThan(cfg.MinHalfSpread) {
		halfSpread = cfg.MinHalfSpread
	}

	skew := in.Imbalance.Mul(cfg.SkewCoefficient)

	yesBidPrice := quantizeDown(mid.Sub(halfSpread).Sub(skew), tick)
	yesAskPrice := quantizeUp(mid.Add(halfSpread).Sub(skew), tick)
	noBidPrice := one.Sub(yesAskPrice)
	noAskPrice := one.Sub(yesBidPrice)

	quotes := make([]types.Quote, 0, 4)

	if q, ok := e.build(in.MarketID, in.YesTokenID, types.YES, types.BUY, yesBidPrice, in.Imbalance, in.BestAsk, cfg, generation, now); ok {
		quotes = append(quotes, q)
	}
	if q, ok := e.build(in.MarketID, in.YesTokenID, types.YES, types.SELL, yesAskPrice, in.Imbalance, in.BestBid, cfg, generation, now); ok {
		quotes = append(quotes, q)
	}
	if q, ok := e.build(in.MarketID, in.NoTokenID, types.NO, types.BUY, noBidPrice, in.Imbalance, one.Sub(in.BestBid), cfg, generation, now); ok {
		quotes = append(quotes, q)
	}
	if q, ok := e.build(in.MarketID, in.NoTokenID, types.NO, types.SELL, noAskPrice, in.Imbalance, one.Sub(in.BestAsk), cfg, generation, now); ok {
		quotes = append(quotes, q)
	}

	return quotes
}

// build constructs one quote, applying the suppression and size rules of
// spec step 5-6. oppositeBookPrice is the price this quote must not cross:
// for a BUY it is the best ask it would be trading against; for a SELL it
// is the best bid.
func (e *Engine) build(marketID, tokenID string, outcome types.Outcome, side types.Side, price, imbalance, oppositeBookPrice decimal.Decimal, cfg Config, generation uint64, now time.Time) (types.Quote, bool) {
	if price.LessThanOrEqual(zero) || price.GreaterThanOrEqual(one) {
		return types.Quote{}, false
	}
	if crosses(side, price, oppositeBookPrice) {
		return types.Quote{}, false
	}

	size := sizeFor(outcome, side, imbalance, cfg)
	if size.LessThanOrEqual(zero) {
		return types.Quote{}, false
	}

	return types.Quote{
		MarketID:    marketID,
		TokenID:     tokenID,
		Outcome:     outcome,
		Side:        side,
		Price:       price,
		Size:        size,
		Generation:  generation,
		GeneratedAt: now,
	}, true
}

// crosses reports whether placing this order at price would immediately
// trade against the opposite side of the book.
func crosses(side types.Side, price, oppositeBookPrice decimal.Decimal) bool {
	if oppositeBookPrice.IsZero() {
		return false
	}
	if side == types.BUY {
		return price.GreaterThanOrEqual(oppositeBookPrice)
	}
	return price.LessThanOrEqual(oppositeBookPrice)
}

// sizeFor scales base_size per spec step 5: accumulating trades (those
// that would push inventory further in the direction it already leans)
// shrink toward (1-|imbalance|); reducing trades grow toward
// (1+|imbalance|), both clamped to [min_size, max_size].
func sizeFor(outcome types.Outcome, side types.Side, imbalance decimal.Decimal, cfg Config) decimal.Decimal {
	absImbalance := imbalance.Abs()

	accumulating := true
	switch {
	case imbalance.IsZero():
		accumulating = true // scale is 1 either way
	case outcome == types.YES && side == types.BUY:
		accumulating = imbalance.IsPositive()
	case outcome == types.YES && side == types.SELL:
		accumulating = imbalance.IsNegative()
	case outcome == types.NO && side == types.BUY:
		accumulating = imbalance.IsNegative()
	case outcome == types.NO && side == types.SELL:
		accumulating = imbalance.IsPositive()
	}

	var scale decimal.Decimal
	if accumulating {
		scale = one.Sub(absImbalance)
	} else {
		scale = one.Add(absImbalance)
	}

	size := cfg.BaseSize.Mul(scale)
	if size.LessThan(cfg.MinSize) {
		size = cfg.MinSize
	}
	if size.GreaterThan(cfg.MaxSize) {
		size = cfg.MaxSize
	}
	return size
}

func quantizeDown(p, tick decimal.Decimal) decimal.Decimal {
	steps := p.Div(tick).Floor()
	return steps.Mul(tick)
}

func quantizeUp(p, tick decimal.Decimal) decimal.Decimal {
	steps := p.Div(tick).Ceil()
	return steps.Mul(tick)
}
