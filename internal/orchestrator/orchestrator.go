// Package orchestrator wires every component into one running process for
// a single configured market (SPEC_FULL.md §4.7): load config, configure
// logging, start the metrics endpoint, discover the market, build BookView
// from a REST snapshot, connect the live feeds, and run the cancel-replace
// loop, the redeem sweeper, and the feed-consumer as concurrent tasks. On
// shutdown signal it cancels every task, awaits OrderExecutor.CancelAll,
// and closes transports. Grounded on the teacher's internal/engine/engine.go
// lifecycle and cmd/bot/main.go's signal handling, narrowed from
// many-markets to the spec's single-market-per-process scope.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/book"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/config"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/discovery"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/exchange"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/executor"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/inventory"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/loop"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/metrics"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/quote"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/redeem"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/risk"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/signer"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// ExitCode is the taxonomy from SPEC_FULL.md §6: 0 clean shutdown, 1
// configuration error, 2 unrecoverable venue error, 3 signer error.
type ExitCode int

const (
	ExitOK          ExitCode = 0
	ExitConfigError ExitCode = 1
	ExitVenueError  ExitCode = 2
	ExitSignerError ExitCode = 3
)

// defaultShutdownGrace bounds the wait for OrderExecutor.CancelAll to
// confirm before the process exits regardless (spec §5's 10s grace period).
const defaultShutdownGrace = 10 * time.Second

// FatalError carries the exit code a fatal startup or runtime failure maps
// to, so cmd/bot/main.go can set os.Exit accordingly.
type FatalError struct {
	Code ExitCode
	Err  error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Orchestrator owns every component for one market and drives its lifecycle.
type Orchestrator struct {
	cfg    config.Config
	logger *slog.Logger

	eoa        *signer.EOASigner
	client     *exchange.Client
	marketFeed *exchange.WSFeed
	userFeed   *exchange.WSFeed
	bookStore  *book.Book
	ledger     *inventory.Ledger
	execut     *executor.Executor
	metricsReg *metrics.Registry
	sweeper    *redeem.Sweeper
	cancelLoop *loop.Loop

	yesTokenID string
	noTokenID  string
	tickSize   types.TickSize

	wg sync.WaitGroup
}

// New builds every component from cfg but starts no goroutines.
func New(cfg config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	eoa, err := signer.NewEOASigner(cfg.Wallet.PrivateKey, cfg.Wallet.FunderAddress, cfg.Wallet.ChainID,
		types.SignatureType(cfg.Wallet.SignatureType), signer.Credentials{
			ApiKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		})
	if err != nil {
		return nil, &FatalError{Code: ExitSignerError, Err: fmt.Errorf("build signer: %w", err)}
	}

	client := exchange.NewClient(cfg.API.BaseURL, eoa, cfg.DryRun, logger)

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		eoa:        eoa,
		client:     client,
		marketFeed: exchange.NewMarketFeed(cfg.API.WSURL, logger),
		userFeed:   exchange.NewUserFeed(cfg.API.WSURL, eoa, logger),
		bookStore:  book.New(),
		ledger:     inventory.New(logger),
		metricsReg: metrics.New(),
	}, nil
}

// Run performs startup (derive L2 credentials if absent, discover the
// market, prime the book, wire the loop) then blocks running every
// concurrent task until ctx is cancelled, finishing with shutdown cleanup.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.eoa.HasL2Credentials() {
		creds, err := o.client.DeriveAPIKey(ctx)
		if err != nil {
			return &FatalError{Code: ExitSignerError, Err: fmt.Errorf("derive l2 credentials: %w", err)}
		}
		o.eoa.SetCredentials(*creds)
	}

	market, err := discovery.Discover(ctx, o.client, o.cfg.Market.MarketID, o.cfg.Market.DiscoveryEnabled, o.logger)
	if err != nil {
		return &FatalError{Code: ExitVenueError, Err: err}
	}
	o.yesTokenID = market.YesTokenID
	o.noTokenID = market.NoTokenID
	o.tickSize = parseTickSize(market.TickSize)

	o.execut = executor.New(o.client, o.cfg.Market.MarketID, o.tickSize, o.cfg.Loop.OrderLifetime(), o.logger)
	o.sweeper = redeem.New(o.client, o.cfg.Redeem.ThresholdUSD, o.logger)

	if err := o.primeBook(ctx); err != nil {
		return &FatalError{Code: ExitVenueError, Err: err}
	}
	if err := o.execut.Reconcile(ctx); err != nil {
		o.logger.Warn("initial reconcile failed, starting with an empty open-order set", "error", err)
	}

	markFn := func(outcome types.Outcome) decimal.Decimal {
		mid, ok := o.bookStore.Snapshot().Mid()
		if !ok {
			return decimal.Zero
		}
		if outcome == types.YES {
			return mid
		}
		return decimal.New(1, 0).Sub(mid)
	}

	o.cancelLoop = loop.New(loop.Config{
		MarketID:           o.cfg.Market.MarketID,
		YesTokenID:         o.yesTokenID,
		NoTokenID:          o.noTokenID,
		QuoteRefreshRate:   o.cfg.Loop.QuoteRefreshRate(),
		QuoteConfig:        quoteConfigFrom(o.cfg.Quote, o.tickSize),
		RiskConfig:         risk.Config(o.cfg.Risk),
		OrderExpirationSec: 0,
		FeeRateBps:         0,
	}, o.bookStore, o.ledger, quote.NewEngine(), o.execut, o.client, o.metricsReg, markFn, o.logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.marketFeed.Run(runCtx); err != nil && runCtx.Err() == nil {
			o.logger.Error("market feed stopped unexpectedly", "error", err)
		}
	}()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.userFeed.Run(runCtx); err != nil && runCtx.Err() == nil {
			o.logger.Error("user feed stopped unexpectedly", "error", err)
		}
	}()
	if err := o.marketFeed.Subscribe([]string{o.yesTokenID}); err != nil {
		o.logger.Warn("initial market feed subscribe failed, will retry on reconnect", "error", err)
	}
	if err := o.userFeed.Subscribe([]string{o.cfg.Market.MarketID}); err != nil {
		o.logger.Warn("initial user feed subscribe failed, will retry on reconnect", "error", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.consumeFeeds(runCtx)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.cancelLoop.Run(runCtx)
	}()

	if o.cfg.Redeem.Enabled {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.sweeper.Run(runCtx, o.cfg.Redeem.SweepInterval)
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.metricsReg.Serve(runCtx, o.cfg.Metrics.Host, o.cfg.Metrics.Port); err != nil {
			o.logger.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	o.logger.Info("shutdown signal received, stopping tasks")
	cancel()
	o.wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), defaultShutdownGrace)
	defer cancelShutdown()
	if err := o.execut.CancelAll(shutdownCtx); err != nil {
		o.logger.Error("cancel_all on shutdown failed", "error", err)
	}
	o.marketFeed.Close()
	o.userFeed.Close()

	o.logger.Info("shutdown complete")
	return nil
}

// primeBook fetches the initial REST book snapshot for the configured market.
func (o *Orchestrator) primeBook(ctx context.Context) error {
	dto, err := o.client.GetBook(ctx, o.cfg.Market.MarketID)
	if err != nil {
		return fmt.Errorf("prime book: %w", err)
	}
	o.bookStore.ApplySnapshot(dto.Sequence, book.LevelsFromDTO(dto.Bids, true), book.LevelsFromDTO(dto.Asks, false))
	return nil
}

// consumeFeeds is the sole writer to bookStore/ledger/execut from WS events,
// satisfying SPEC_FULL.md §5's single-owner-per-state-machine rule.
func (o *Orchestrator) consumeFeeds(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case evt := <-o.marketFeed.BookSnapshots():
			o.bookStore.ApplySnapshot(evt.Sequence, book.LevelsFromDTO(evt.Bids, true), book.LevelsFromDTO(evt.Asks, false))

		case evt := <-o.marketFeed.BookDeltas():
			price, err := decimal.NewFromString(evt.Price)
			if err != nil {
				o.logger.Warn("unparseable delta price, ignoring", "price", evt.Price)
				continue
			}
			size, err := decimal.NewFromString(evt.NewSize)
			if err != nil {
				o.logger.Warn("unparseable delta size, ignoring", "size", evt.NewSize)
				continue
			}
			o.bookStore.ApplyDelta(evt.Sequence, types.Side(evt.Side), price, size)

		case evt := <-o.userFeed.Trades():
			fill, err := fillFromTrade(evt)
			if err != nil {
				o.logger.Warn("skipping unparseable trade event", "trade_id", evt.TradeID, "error", err)
				continue
			}
			if err := o.ledger.ApplyFill(fill); err != nil {
				o.logger.Error("apply fill failed", "trade_id", evt.TradeID, "error", err)
				continue
			}
			snap := o.ledger.Snapshot()
			o.metricsReg.SetInventory(types.YES, mustFloat(snap.Positions[types.YES].Size))
			o.metricsReg.SetInventory(types.NO, mustFloat(snap.Positions[types.NO].Size))
			o.metricsReg.IncOrdersFilled(fill.Side, fill.Outcome)

		case evt := <-o.userFeed.OrderUpdates():
			remaining, err := remainingFromUpdate(evt)
			if err != nil {
				o.logger.Warn("skipping unparseable order_update event", "order_id", evt.OrderID, "error", err)
				continue
			}
			state, terminal := orderStateFromStatus(evt.Status)
			o.execut.ApplyFillUpdate(evt.OrderID, remaining, terminal, state)
			if terminal && state == types.Cancelled {
				o.metricsReg.IncOrdersCancelled()
			}
		}
	}
}

func fillFromTrade(evt types.WSTrade) (types.Fill, error) {
	size, err := decimal.NewFromString(evt.Size)
	if err != nil {
		return types.Fill{}, fmt.Errorf("parse size: %w", err)
	}
	price, err := decimal.NewFromString(evt.Price)
	if err != nil {
		return types.Fill{}, fmt.Errorf("parse price: %w", err)
	}
	return types.Fill{
		TradeID: evt.TradeID,
		Outcome: types.Outcome(evt.Outcome),
		Side:    types.Side(evt.Side),
		Size:    size,
		Price:   price,
	}, nil
}

func remainingFromUpdate(evt types.WSOrderUpdate) (decimal.Decimal, error) {
	original, err := decimal.NewFromString(evt.OriginalSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse original_size: %w", err)
	}
	matched, err := decimal.NewFromString(evt.SizeMatched)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse size_matched: %w", err)
	}
	return original.Sub(matched), nil
}

// orderStateFromStatus maps the venue's order_update status string to a
// local OrderState and whether it is terminal.
func orderStateFromStatus(status string) (types.OrderState, bool) {
	switch status {
	case "LIVE":
		return types.Open, false
	case "MATCHED":
		return types.Filled, true
	case "CANCELLED":
		return types.Cancelled, true
	default:
		return types.Open, false
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// parseTickSize converts the venue's decimal tick string (e.g. "0.01")
// into the domain TickSize enum, defaulting to Tick001 if unrecognized.
func parseTickSize(raw string) types.TickSize {
	switch raw {
	case "0.1":
		return types.Tick01
	case "0.01":
		return types.Tick001
	case "0.001":
		return types.Tick0001
	case "0.0001":
		return types.Tick00001
	default:
		return types.Tick001
	}
}

func quoteConfigFrom(cfg config.QuoteConfig, tick types.TickSize) quote.Config {
	return quote.Config{
		BaseSize:        cfg.BaseSize,
		MinSize:         cfg.MinSize,
		MaxSize:         cfg.MaxSize,
		MinHalfSpread:   cfg.MinHalfSpread,
		WidenFactor:     cfg.WidenFactor,
		SkewCoefficient: cfg.SkewCoefficient,
		TickSize:        tick,
	}
}
