package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// fakeClient is a minimal in-memory stand-in for exchange.Client.
type fakeClient struct {
	nextOrderID  int
	postErr      error
	cancelErr    error
	rejectReason string
	openOrders   []types.OpenOrderDTO
	cancelledIDs []string
}

func (f *fakeClient) BuildOrderPayload(tokenID string, side types.Side, price, size decimal.Decimal, tick types.TickSize, expiration int64, feeRateBps int, nonce string) (types.SignedOrderPayload, error) {
	return types.SignedOrderPayload{Salt: nonce, TokenID: tokenID, Side: side}, nil
}

func (f *fakeClient) PostOrders(ctx context.Context, orders []types.SignedOrderPayload) ([]types.OrderAckDTO, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	out := make([]types.OrderAckDTO, len(orders))
	for i := range orders {
		if f.rejectReason != "" {
			out[i] = types.OrderAckDTO{Success: false, ErrorMsg: f.rejectReason}
			continue
		}
		f.nextOrderID++
		out[i] = types.OrderAckDTO{Success: true, OrderID: fmt.Sprintf("ord-%d", f.nextOrderID), Status: "live"}
	}
	return out, nil
}

func (f *fakeClient) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelAckDTO, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelledIDs = append(f.cancelledIDs, orderIDs...)
	return &types.CancelAckDTO{Cancelled: orderIDs}, nil
}

func (f *fakeClient) GetOpenOrders(ctx context.Context, marketID string) ([]types.OpenOrderDTO, error) {
	return f.openOrders, nil
}

func testQuote() types.Quote {
	return types.Quote{
		MarketID: "m1", TokenID: "yes-token", Outcome: types.YES, Side: types.BUY,
		Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("100"), Generation: 1,
	}
}

func TestPlaceTransitionsPendingToOpen(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)

	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if order.State != types.Open {
		t.Fatalf("expected Open, got %s", order.State)
	}
	if len(e.OpenOrders()) != 1 {
		t.Fatalf("expected 1 open order, got %d", len(e.OpenOrders()))
	}
}

func TestPlaceRejectionDoesNotTrack(t *testing.T) {
	fc := &fakeClient{rejectReason: "insufficient balance"}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)

	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err == nil {
		t.Fatal("expected an error for a rejected order")
	}
	if order.State != types.Rejected {
		t.Fatalf("expected Rejected, got %s", order.State)
	}
	if len(e.OpenOrders()) != 0 {
		t.Fatalf("rejected order should not be tracked, got %d open", len(e.OpenOrders()))
	}
}

func TestDoubleCancelIsIdempotent(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)
	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Cancel(context.Background(), order.OrderID); err != nil {
		t.Fatal(err)
	}
	if len(e.OpenOrders()) != 0 {
		t.Fatal("expected order removed after cancel")
	}

	// Second cancel on an already-removed id must not error.
	if err := e.Cancel(context.Background(), order.OrderID); err != nil {
		t.Fatalf("double cancel should be idempotent, got error: %v", err)
	}
}

func TestBatchCancelAlreadyCancelledLeavesOrderCancelled(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)
	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.BatchCancel(context.Background(), []string{order.OrderID}); err != nil {
		t.Fatal(err)
	}
	if len(e.OpenOrders()) != 0 {
		t.Fatal("order should be removed from the open set after a cancel ack")
	}

	// A venue "already cancelled" response for the same id must not resurrect
	// or reject the order — just a no-op, since it's no longer tracked.
	if err := e.BatchCancel(context.Background(), []string{order.OrderID}); err != nil {
		t.Fatalf("repeat batch cancel should not error, got: %v", err)
	}
}

func TestReconcileMarksMissingOrdersExpired(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)
	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	fc.openOrders = nil // venue no longer reports this order
	if err := e.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(e.OpenOrders()) != 0 {
		t.Fatalf("order %s absent from venue truth should be removed (expired), got %d open", order.OrderID, len(e.OpenOrders()))
	}
}

func TestReconcileAdoptsUntrackedVenueOrders(t *testing.T) {
	fc := &fakeClient{
		openOrders: []types.OpenOrderDTO{
			{OrderID: "venue-1", Market: "m1", AssetID: "yes-token", Side: "BUY", Price: "0.49", OriginalSize: "100", SizeMatched: "0"},
		},
	}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)

	if err := e.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	open := e.OpenOrders()
	if len(open) != 1 || open[0].OrderID != "venue-1" {
		t.Fatalf("expected venue-1 to be adopted, got %+v", open)
	}
}

func TestAgedAndStaleFlagsOldAndPriorGenerationOrders(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Millisecond, nil) // tiny lifetime so the order is immediately aged

	order, err := e.Place(context.Background(), testQuote(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	ids := e.AgedAndStale(order.Generation)
	if len(ids) != 1 || ids[0] != order.OrderID {
		t.Fatalf("expected order to be flagged as aged, got %v", ids)
	}
}

func TestCancelAllEmptyIsNoop(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc, "m1", types.Tick01, time.Minute, nil)
	if err := e.CancelAll(context.Background()); err != nil {
		t.Fatalf("cancel_all on an empty set should not error, got: %v", err)
	}
}
