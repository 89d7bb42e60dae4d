// Package loop implements CancelReplaceLoop (SPEC_FULL.md §4.6): the single
// cooperative task that drives one market's quoting cycle — snapshot, quote,
// cancel stale orders, risk-check, place — on a fixed refresh cadence, with
// linear backoff on transient errors. Grounded on the teacher's
// strategy.Maker.Run/quoteUpdate ticker loop, restructured to call out to
// the now-separate QuoteEngine/RiskGate/OrderExecutor instead of doing
// everything inline.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/book"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/executor"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/inventory"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/quote"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/risk"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

const (
	minBackoff = time.Second
	maxBackoff = 5 * time.Second
)

// BookView is the subset of *book.Book the loop reads.
type BookView interface {
	Snapshot() book.Snapshot
	NeedsResync() bool
}

// Resyncer refetches a full book snapshot over REST when the feed reports a
// sequence gap.
type Resyncer interface {
	GetBook(ctx context.Context, marketID string) (*types.BookDTO, error)
}

// Metrics is the subset of the metrics package the loop reports to. A nil
// Metrics is valid — every method is a no-op check by the caller.
type Metrics interface {
	ObserveQuoteCycleDuration(d time.Duration)
	IncBookResync()
	IncOrdersPlaced(side types.Side, outcome types.Outcome)
	IncOrdersCancelled()
}

// Config tunes the loop's cadence and the QuoteEngine it drives.
type Config struct {
	MarketID           string
	YesTokenID         string
	NoTokenID          string
	QuoteRefreshRate   time.Duration
	QuoteConfig        quote.Config
	RiskConfig         risk.Config
	OrderExpirationSec int64
	FeeRateBps         int
}

// Loop is the CancelReplaceLoop for one market.
type Loop struct {
	cfg       Config
	bookView  BookView
	inventory *inventory.Ledger
	quoter    *quote.Engine
	executor  *executor.Executor
	resync    Resyncer
	metrics   Metrics
	markFn    func(types.Outcome) decimal.Decimal
	logger    *slog.Logger

	lastQuoteTime time.Time
	currentGen    uint64
}

// New builds a Loop wired to its collaborators. markFn prices each outcome
// for exposure_usd (typically the book mid for YES, 1-mid for NO).
func New(cfg Config, bookView BookView, ledger *inventory.Ledger, quoter *quote.Engine, exec *executor.Executor, resync Resyncer, metrics Metrics, markFn func(types.Outcome) decimal.Decimal, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:       cfg,
		bookView:  bookView,
		inventory: ledger,
		quoter:    quoter,
		executor:  exec,
		resync:    resync,
		metrics:   metrics,
		markFn:    markFn,
		logger:    logger.With("component", "cancel_replace_loop"),
	}
}

// Run drives the cycle until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		wait := l.cfg.QuoteRefreshRate - time.Since(l.lastQuoteTime)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		err := l.cycle(ctx)
		l.lastQuoteTime = time.Now()

		if err == nil {
			backoff = minBackoff
			continue
		}
		if errors.Is(err, errNonTransient) {
			l.logger.Error("non-transient error, loop stopping", "error", err)
			return
		}

		l.logger.Warn("cycle failed, backing off", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff += minBackoff
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

var errNonTransient = errors.New("non-transient cancel-replace loop error")

// imbalanceStep is the per-quote nudge used to estimate the post-fill
// imbalance for RiskGate's inventory-band check. The loop doesn't know a
// quote's eventual fill size relative to existing inventory, so this
// approximates direction rather than magnitude.
var imbalanceStep = decimal.RequireFromString("0.01")

// projectedImbalance estimates the inventory imbalance that would result if
// this quote filled, nudging the current imbalance in the direction the
// trade would push it: YES buys and NO sells push imbalance up; YES sells
// and NO buys push it down.
func projectedImbalance(outcome types.Outcome, side types.Side, current decimal.Decimal) decimal.Decimal {
	pushesUp := (outcome == types.YES && side == types.BUY) || (outcome == types.NO && side == types.SELL)
	if pushesUp {
		return current.Add(imbalanceStep)
	}
	return current.Sub(imbalanceStep)
}

// cycle runs one iteration of the 6-step algorithm from spec §4.6.
func (l *Loop) cycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.ObserveQuoteCycleDuration(time.Since(start))
		}
	}()

	// Step 2: snapshot the book; resync on staleness/gap/empty.
	snap := l.bookView.Snapshot()
	if snap.Stale || l.bookView.NeedsResync() || len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		if l.metrics != nil {
			l.metrics.IncBookResync()
		}
		if l.resync != nil {
			if _, err := l.resync.GetBook(ctx, l.cfg.MarketID); err != nil {
				return err // transient: retry next cycle after backoff
			}
		}
		return nil // skip this cycle regardless; the feed consumer applies the new snapshot
	}

	bid, okBid := snap.BestBid()
	ask, okAsk := snap.BestAsk()
	if !okBid || !okAsk {
		return nil
	}

	// Step 3: invoke QuoteEngine with book + inventory snapshot.
	invSnap := l.inventory.Snapshot()
	l.currentGen++
	quotes := l.quoter.Compute(quote.Input{
		MarketID:   l.cfg.MarketID,
		YesTokenID: l.cfg.YesTokenID,
		NoTokenID:  l.cfg.NoTokenID,
		BestBid:    bid,
		BestAsk:    ask,
		Imbalance:  invSnap.Imbalance,
	}, l.cfg.QuoteConfig)

	// Step 4: cancel stale orders (aged or from an earlier generation).
	staleIDs := l.executor.AgedAndStale(l.currentGen)
	if len(staleIDs) > 0 {
		if err := l.executor.BatchCancel(ctx, staleIDs); err != nil {
			return err
		}
		if l.metrics != nil {
			for range staleIDs {
				l.metrics.IncOrdersCancelled()
			}
		}
	}

	// Step 5: validate each candidate via RiskGate, place accepted ones.
	exposure := invSnap.ExposureUSD(l.markFn)
	for _, q := range quotes {
		reduces := q.Side == types.SELL
		notional := q.Price.Mul(q.Size)

		ok, reason := risk.Evaluate(risk.Intent{
			Side:               q.Side,
			NotionalUSD:        notional,
			Reduces:            reduces,
			ProjectedImbalance: projectedImbalance(q.Outcome, q.Side, invSnap.Imbalance),
		}, exposure, invSnap.Imbalance, l.cfg.RiskConfig)
		if !ok {
			l.logger.Debug("quote rejected by risk gate", "reason", reason, "side", q.Side, "outcome", q.Outcome, "price", q.Price)
			continue
		}

		expiration := int64(0)
		if l.cfg.OrderExpirationSec > 0 {
			expiration = time.Now().Unix() + l.cfg.OrderExpirationSec
		}
		if _, err := l.executor.Place(ctx, q, expiration, l.cfg.FeeRateBps); err != nil {
			l.logger.Error("place order failed", "error", err, "side", q.Side, "outcome", q.Outcome)
			continue
		}
		if l.metrics != nil {
			l.metrics.IncOrdersPlaced(q.Side, q.Outcome)
		}
	}

	return nil
}
