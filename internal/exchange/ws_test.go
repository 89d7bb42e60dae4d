package exchange

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchMessageRoutesBookSnapshot(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid", discardLogger())

	msg := []byte(`{"event_type":"book_snapshot","market":"m1","asset_id":"a1","sequence":5,"bids":[],"asks":[]}`)
	f.dispatchMessage(msg)

	select {
	case evt := <-f.BookSnapshots():
		if evt.AssetID != "a1" || evt.Sequence != 5 {
			t.Errorf("unexpected snapshot: %+v", evt)
		}
	default:
		t.Fatal("expected a book snapshot on the channel")
	}
}

func TestDispatchMessageRoutesBookDelta(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid", discardLogger())

	msg := []byte(`{"event_type":"book_delta","market":"m1","asset_id":"a1","sequence":6,"side":"BUY","price":"0.5","new_size":"10"}`)
	f.dispatchMessage(msg)

	select {
	case evt := <-f.BookDeltas():
		if evt.Sequence != 6 || evt.Price != "0.5" {
			t.Errorf("unexpected delta: %+v", evt)
		}
	default:
		t.Fatal("expected a book delta on the channel")
	}
}

func TestDispatchMessageRoutesTradeAndOrderUpdate(t *testing.T) {
	f := NewUserFeed("wss://example.invalid", nil, discardLogger())

	f.dispatchMessage([]byte(`{"event_type":"trade","trade_id":"t1","market":"m1"}`))
	select {
	case evt := <-f.Trades():
		if evt.TradeID != "t1" {
			t.Errorf("unexpected trade: %+v", evt)
		}
	default:
		t.Fatal("expected a trade on the channel")
	}

	f.dispatchMessage([]byte(`{"event_type":"order_update","order_id":"o1","status":"LIVE"}`))
	select {
	case evt := <-f.OrderUpdates():
		if evt.OrderID != "o1" || evt.Status != "LIVE" {
			t.Errorf("unexpected order update: %+v", evt)
		}
	default:
		t.Fatal("expected an order update on the channel")
	}
}

func TestDispatchMessageIgnoresUnknownAndNonJSON(t *testing.T) {
	f := NewMarketFeed("wss://example.invalid", discardLogger())

	f.dispatchMessage([]byte(`not json at all`))
	f.dispatchMessage([]byte(`{"event_type":"last_trade_price"}`))

	select {
	case evt := <-f.BookSnapshots():
		t.Fatalf("expected no snapshot, got %+v", evt)
	default:
	}
}

func TestSubscriptionMessageIncludesAuthOnlyForUserChannel(t *testing.T) {
	market := NewMarketFeed("wss://example.invalid", discardLogger())
	if msg := market.subscriptionMessage([]string{"a1"}); msg.Auth != nil {
		t.Errorf("market channel subscribe should not carry auth, got %+v", msg.Auth)
	}

	user := NewUserFeed("wss://example.invalid", nil, discardLogger())
	if msg := user.subscriptionMessage([]string{"c1"}); msg.Type != "user" {
		t.Errorf("expected type=user, got %q", msg.Type)
	}
}
