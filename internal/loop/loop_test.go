package loop

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/book"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/executor"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/inventory"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/quote"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/risk"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeBookView struct {
	snap   book.Snapshot
	resync bool
}

func (f *fakeBookView) Snapshot() book.Snapshot { return f.snap }
func (f *fakeBookView) NeedsResync() bool       { return f.resync }

type fakeResyncer struct {
	calls int
	err   error
}

func (f *fakeResyncer) GetBook(ctx context.Context, marketID string) (*types.BookDTO, error) {
	f.calls++
	return &types.BookDTO{}, f.err
}

type fakeExecClient struct {
	placed int
}

func (f *fakeExecClient) BuildOrderPayload(tokenID string, side types.Side, price, size decimal.Decimal, tick types.TickSize, expiration int64, feeRateBps int, nonce string) (types.SignedOrderPayload, error) {
	return types.SignedOrderPayload{Salt: nonce}, nil
}

func (f *fakeExecClient) PostOrders(ctx context.Context, orders []types.SignedOrderPayload) ([]types.OrderAckDTO, error) {
	out := make([]types.OrderAckDTO, len(orders))
	for i := range orders {
		f.placed++
		out[i] = types.OrderAckDTO{Success: true, OrderID: "ord", Status: "live"}
	}
	return out, nil
}

func (f *fakeExecClient) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelAckDTO, error) {
	return &types.CancelAckDTO{Cancelled: orderIDs}, nil
}

func (f *fakeExecClient) GetOpenOrders(ctx context.Context, marketID string) ([]types.OpenOrderDTO, error) {
	return nil, nil
}

func testLoop(snap book.Snapshot, resync bool) (*Loop, *fakeExecClient, *fakeResyncer) {
	ledger := inventory.New(slog.Default())
	fc := &fakeExecClient{}
	exec := executor.New(fc, "m1", types.Tick001, time.Hour, slog.Default())
	fr := &fakeResyncer{}

	cfg := Config{
		MarketID:         "m1",
		YesTokenID:       "yes",
		NoTokenID:        "no",
		QuoteRefreshRate: time.Millisecond,
		QuoteConfig: quote.Config{
			BaseSize: d("100"), MinSize: d("10"), MaxSize: d("500"),
			MinHalfSpread: d("0.01"), WidenFactor: d("1"), SkewCoefficient: d("0.02"),
			TickSize: types.Tick001,
		},
		RiskConfig: risk.Config{
			MaxExposureUSD: d("1000"), MinExposureUSD: d("1"), TargetInventoryBalance: d("0.5"),
		},
	}

	l := New(cfg, &fakeBookView{snap: snap, resync: resync}, ledger, quote.NewEngine(), exec, fr, nil, func(types.Outcome) decimal.Decimal { return d("0.5") }, slog.Default())
	return l, fc, fr
}

func TestCycleSkipsAndResyncsOnStaleBook(t *testing.T) {
	l, fc, fr := testLoop(book.Snapshot{Stale: true}, false)

	if err := l.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fr.calls != 1 {
		t.Errorf("expected a resync call, got %d", fr.calls)
	}
	if fc.placed != 0 {
		t.Errorf("expected no orders placed on a stale cycle, got %d", fc.placed)
	}
}

func TestCycleSkipsOnEmptyBook(t *testing.T) {
	l, _, fr := testLoop(book.Snapshot{}, false)

	if err := l.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fr.calls != 1 {
		t.Errorf("expected a resync call for an empty book, got %d", fr.calls)
	}
}

func TestCyclePlacesQuotesOnHealthyBook(t *testing.T) {
	snap := book.Snapshot{
		Bids: []types.OrderbookLevel{{Price: d("0.49"), Size: d("500")}},
		Asks: []types.OrderbookLevel{{Price: d("0.51"), Size: d("500")}},
	}
	l, fc, _ := testLoop(snap, false)

	if err := l.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fc.placed == 0 {
		t.Error("expected at least one order placed on a healthy symmetric book")
	}
}

func TestCycleRejectsQuotesBelowMinSize(t *testing.T) {
	snap := book.Snapshot{
		Bids: []types.OrderbookLevel{{Price: d("0.49"), Size: d("500")}},
		Asks: []types.OrderbookLevel{{Price: d("0.51"), Size: d("500")}},
	}
	l, fc, _ := testLoop(snap, false)
	l.cfg.RiskConfig.MinExposureUSD = d("10000") // force below_min_size rejection of every candidate

	if err := l.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fc.placed != 0 {
		t.Errorf("expected all quotes rejected by risk gate, got %d placed", fc.placed)
	}
}
