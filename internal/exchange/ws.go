// ws.go implements the venue WebSocket feed (SPEC_FULL.md §6.2). Two
// independent feeds run concurrently:
//
//   - Market feed (public): subscribes by asset (token) ID, receives
//     book_snapshot and book_delta events for the order book.
//
//   - User feed (authenticated): subscribes by condition ID, receives
//     trade and order_update events.
//
// Both feeds auto-reconnect with exponential backoff and re-subscribe to
// all tracked IDs on reconnection. An idle read deadline (60s) ensures silent
// server failures are detected and trigger a reconnect.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/signer"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

const (
	pingInterval    = 50 * time.Second // how often we send PING to keep alive
	readTimeout     = 60 * time.Second // no inbound message within this window triggers reconnect
	writeTimeout    = 10 * time.Second // deadline for outgoing messages
	bookBufferSize  = 256              // buffer for book snapshot/delta events
	userBufferSize  = 64               // buffer for trade/order events
	maxReconnectGap = 30 * time.Second // cap on exponential backoff between reconnects
)

// WSFeed manages a single WebSocket connection (market or user channel).
// It handles connection lifecycle, subscription tracking, message routing,
// and automatic reconnection with exponential backoff.
type WSFeed struct {
	url         string
	conn        *websocket.Conn
	connMu      sync.Mutex // protects conn reads/writes
	auth        *signer.EOASigner
	channelType string // "market" or "user"

	// Track subscriptions for automatic re-subscribe on reconnect.
	subscribedMu sync.RWMutex
	subscribed   map[string]bool // asset IDs (market) or condition IDs (user)

	// Typed event channels — consumers read from these via accessor methods.
	bookSnapshotCh chan types.WSBookSnapshot
	bookDeltaCh    chan types.WSBookDelta
	tradeCh        chan types.WSTrade
	orderUpdateCh  chan types.WSOrderUpdate

	logger *slog.Logger
}

// NewMarketFeed creates a WebSocket feed for the market channel (public).
func NewMarketFeed(wsURL string, logger *slog.Logger) *WSFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSFeed{
		url:            wsURL,
		channelType:    "market",
		subscribed:     make(map[string]bool),
		bookSnapshotCh: make(chan types.WSBookSnapshot, bookBufferSize),
		bookDeltaCh:    make(chan types.WSBookDelta, bookBufferSize),
		tradeCh:        make(chan types.WSTrade, userBufferSize),
		orderUpdateCh:  make(chan types.WSOrderUpdate, userBufferSize),
		logger:         logger.With("component", "ws_market"),
	}
}

// NewUserFeed creates a WebSocket feed for the user channel (authenticated).
func NewUserFeed(wsURL string, auth *signer.EOASigner, logger *slog.Logger) *WSFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSFeed{
		url:            wsURL,
		auth:           auth,
		channelType:    "user",
		subscribed:     make(map[string]bool),
		bookSnapshotCh: make(chan types.WSBookSnapshot, bookBufferSize),
		bookDeltaCh:    make(chan types.WSBookDelta, bookBufferSize),
		tradeCh:        make(chan types.WSTrade, userBufferSize),
		orderUpdateCh:  make(chan types.WSOrderUpdate, userBufferSize),
		logger:         logger.With("component", "ws_user"),
	}
}

// BookSnapshots returns a read-only channel of full book snapshot events.
func (f *WSFeed) BookSnapshots() <-chan types.WSBookSnapshot { return f.bookSnapshotCh }

// BookDeltas returns a read-only channel of incremental book update events.
func (f *WSFeed) BookDeltas() <-chan types.WSBookDelta { return f.bookDeltaCh }

// Trades returns a read-only channel of fill notifications (user channel).
func (f *WSFeed) Trades() <-chan types.WSTrade { return f.tradeCh }

// OrderUpdates returns a read-only channel of order lifecycle events (user channel).
func (f *WSFeed) OrderUpdates() <-chan types.WSOrderUpdate { return f.orderUpdateCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled. Reconnect backoff is exponential with no
// ceiling on elapsed time (MaxElapsedTime 0), capped per-interval at
// maxReconnectGap.
func (f *WSFeed) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = maxReconnectGap
	bo.MaxElapsedTime = 0 // retry forever; ctx cancellation is the only stop signal

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Subscribe adds asset IDs (market channel) or condition IDs (user channel)
// and sends a subscribe message if connected.
func (f *WSFeed) Subscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(f.subscriptionMessage(ids))
}

func (f *WSFeed) subscriptionMessage(ids []string) types.WSSubscribe {
	msg := types.WSSubscribe{Type: f.channelType, AssetIDs: ids}
	if f.channelType == "user" && f.auth != nil {
		msg.Auth = f.auth.WSAuthPayload()
	}
	return msg
}

// Close gracefully closes the connection.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "channel", f.channelType)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *WSFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(f.subscriptionMessage(ids))
}

func (f *WSFeed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "book_snapshot", "book":
		var evt types.WSBookSnapshot
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book_snapshot event", "error", err)
			return
		}
		select {
		case f.bookSnapshotCh <- evt:
		default:
			f.logger.Warn("book_snapshot channel full, dropping event", "asset_id", evt.AssetID)
		}

	case "book_delta", "price_change":
		var evt types.WSBookDelta
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book_delta event", "error", err)
			return
		}
		select {
		case f.bookDeltaCh <- evt:
		default:
			f.logger.Warn("book_delta channel full, dropping event", "asset_id", evt.AssetID)
		}

	case "trade":
		var evt types.WSTrade
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal trade event", "error", err)
			return
		}
		select {
		case f.tradeCh <- evt:
		default:
			f.logger.Warn("trade channel full, dropping event", "trade_id", evt.TradeID)
		}

	case "order_update", "order":
		var evt types.WSOrderUpdate
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal order_update event", "error", err)
			return
		}
		select {
		case f.orderUpdateCh <- evt:
		default:
			f.logger.Warn("order_update channel full, dropping event", "order_id", evt.OrderID)
		}

	default:
		f.logger.Debug("unhandled ws event type", "type", envelope.EventType)
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *WSFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil // not yet connected; initial subscribe on connect will pick up tracked ids
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *WSFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
