// Package executor implements OrderExecutor (SPEC_FULL.md §4.5): it holds
// the set of open orders keyed by order_id and drives place/cancel/
// batch_cancel/cancel_all/reconcile against the venue, fused from the
// teacher's Maker.reconcileOrders bookkeeping and internal/exchange/client.go
// REST calls, split into its own component per the spec's boundaries.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/exchange"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// defaultCancelAllTimeout bounds cancel_all's wait for terminal confirmation.
const defaultCancelAllTimeout = 5 * time.Second

// Client is the subset of exchange.Client the executor calls. Declared here
// so tests can substitute a fake without a live venue.
type Client interface {
	BuildOrderPayload(tokenID string, side types.Side, price, size decimal.Decimal, tick types.TickSize, expiration int64, feeRateBps int, nonce string) (types.SignedOrderPayload, error)
	PostOrders(ctx context.Context, orders []types.SignedOrderPayload) ([]types.OrderAckDTO, error)
	CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelAckDTO, error)
	GetOpenOrders(ctx context.Context, marketID string) ([]types.OpenOrderDTO, error)
}

var _ Client = (*exchange.Client)(nil)

// Executor tracks this process's open orders for one market and reconciles
// them against quote intents each cycle.
type Executor struct {
	client         Client
	marketID       string
	tickSize       types.TickSize
	orderLifetime  time.Duration
	cancelAllWait  time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	orders map[string]types.Order // order_id -> live order
}

// New builds an Executor for one market. orderLifetime is order_lifetime_ms
// from config, converted to a duration by the caller.
func New(client Client, marketID string, tickSize types.TickSize, orderLifetime time.Duration, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:        client,
		marketID:      marketID,
		tickSize:      tickSize,
		orderLifetime: orderLifetime,
		cancelAllWait: defaultCancelAllTimeout,
		logger:        logger.With("component", "executor"),
		orders:        make(map[string]types.Order),
	}
}

// OpenOrders returns a copy of the current open-order set.
func (e *Executor) OpenOrders() []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o)
	}
	return out
}

// Place builds an Order in Pending, signs and submits it, and on success
// transitions it to Open. On submission failure it emits a terminal
// Rejected order locally (no retry — the next cancel-replace cycle
// regenerates intent) and returns the error.
func (e *Executor) Place(ctx context.Context, q types.Quote, expiration int64, feeRateBps int) (types.Order, error) {
	nonce := uuid.NewString()

	order := types.Order{
		ClientOrderID: nonce, // OrderID is set to the venue's id on ack
		MarketID:   q.MarketID,
		TokenID:    q.TokenID,
		Side:       q.Side,
		Price:      q.Price,
		Size:       q.Size,
		Remaining:  q.Size,
		PlacedAt:   time.Now(),
		State:      types.Pending,
		Generation: q.Generation,
	}

	payload, err := e.client.BuildOrderPayload(q.TokenID, q.Side, q.Price, q.Size, e.tickSize, expiration, feeRateBps, nonce)
	if err != nil {
		order.State = types.Rejected
		e.logger.Error("sign order failed", "error", err, "token_id", q.TokenID, "side", q.Side)
		return order, fmt.Errorf("build order payload: %w", err)
	}

	acks, err := e.client.PostOrders(ctx, []types.SignedOrderPayload{payload})
	if err != nil {
		order.State = types.Rejected
		e.logger.Error("post order failed", "error", err, "token_id", q.TokenID, "side", q.Side)
		return order, fmt.Errorf("post orders: %w", err)
	}
	if len(acks) == 0 || !acks[0].Success {
		order.State = types.Rejected
		msg := "no ack returned"
		if len(acks) > 0 {
			msg = acks[0].ErrorMsg
		}
		e.logger.Error("order rejected by venue", "reason", msg, "token_id", q.TokenID, "side", q.Side)
		return order, fmt.Errorf("order rejected: %s", msg)
	}

	order.OrderID = acks[0].OrderID
	order.State = types.Open

	e.mu.Lock()
	e.orders[order.OrderID] = order
	e.mu.Unlock()

	return order, nil
}

// Cancel issues a cancel for one order. The order remains Open until the
// venue confirms Cancelled. Double-cancel on an already-terminal or
// already-absent order is a no-op, not an error.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	e.mu.Lock()
	_, ok := e.orders[orderID]
	e.mu.Unlock()
	if !ok {
		return nil // idempotent: nothing local to cancel
	}

	ack, err := e.client.CancelOrders(ctx, []string{orderID})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	e.applyCancelAck(ack)
	return nil
}

// BatchCancel cancels several orders at once, best-effort: a per-id
// rejection does not abort the rest of the batch.
func (e *Executor) BatchCancel(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	ack, err := e.client.CancelOrders(ctx, orderIDs)
	if err != nil {
		return fmt.Errorf("batch cancel: %w", err)
	}
	e.applyCancelAck(ack)
	return nil
}

// applyCancelAck removes every id listed in ack.Cancelled from the open set.
// CancelAckDTO carries only that list, so an id the venue reports as already
// cancelled is removed only if it appears there; unlisted ids stay open. No
// cancel response marks an order Rejected.
func (e *Executor) applyCancelAck(ack *types.CancelAckDTO) {
	if ack == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ack.Cancelled {
		if _, ok := e.orders[id]; ok {
			delete(e.orders, id)
		}
	}
}

// CancelAll cancels every open order for the market, on shutdown. It waits
// for terminal confirmation up to the configured timeout, then abandons —
// any orders still open after that are left for the venue to expire.
func (e *Executor) CancelAll(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.cancelAllWait)
	defer cancel()

	ack, err := e.client.CancelOrders(cctx, ids)
	if err != nil {
		e.logger.Error("cancel_all failed", "error", err, "count", len(ids))
		return fmt.Errorf("cancel all: %w", err)
	}
	e.applyCancelAck(ack)

	e.mu.Lock()
	remaining := len(e.orders)
	e.mu.Unlock()
	if remaining > 0 {
		e.logger.Warn("cancel_all abandoned with orders still open", "remaining", remaining)
	}
	return nil
}

// Reconcile replaces the local open-order set with venue truth. The
// orchestrator calls it once at startup; nothing calls it periodically. Any
// locally-tracked order absent from the venue response is marked Expired
// (terminal) and removed, with a log line.
func (e *Executor) Reconcile(ctx context.Context) error {
	venueOrders, err := e.client.GetOpenOrders(ctx, e.marketID)
	if err != nil {
		return fmt.Errorf("reconcile: get open orders: %w", err)
	}

	venueIDs := make(map[string]types.OpenOrderDTO, len(venueOrders))
	for _, vo := range venueOrders {
		venueIDs[vo.OrderID] = vo
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, local := range e.orders {
		if _, stillOpen := venueIDs[id]; !stillOpen {
			local.State = types.Expired
			delete(e.orders, id)
			e.logger.Info("order expired on reconcile", "order_id", id)
		}
	}
	for id, vo := range venueIDs {
		if _, tracked := e.orders[id]; !tracked {
			price, _ := decimal.NewFromString(vo.Price)
			size, _ := decimal.NewFromString(vo.OriginalSize)
			matched, _ := decimal.NewFromString(vo.SizeMatched)
			e.orders[id] = types.Order{
				OrderID:   id,
				MarketID:  e.marketID,
				TokenID:   vo.AssetID,
				Side:      types.Side(vo.Side),
				Price:     price,
				Size:      size,
				Remaining: size.Sub(matched),
				State:     types.Open,
				PlacedAt:  time.Now(),
			}
		}
	}
	return nil
}

// AgedAndStale returns the ids of open orders that should be cancelled
// before the next placement batch: those older than order_lifetime_ms, and
// those stamped with an earlier generation than currentGeneration.
func (e *Executor) AgedAndStale(currentGeneration uint64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var ids []string
	for id, o := range e.orders {
		if now.Sub(o.PlacedAt) >= e.orderLifetime {
			ids = append(ids, id)
			continue
		}
		if o.Generation < currentGeneration {
			ids = append(ids, id)
		}
	}
	return ids
}

// ApplyFillUpdate updates remaining size and state after a WS order_update
// event, transitioning to PartiallyFilled or Filled and removing terminal
// orders from the open set exactly once.
func (e *Executor) ApplyFillUpdate(orderID string, remaining decimal.Decimal, terminal bool, state types.OrderState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return
	}
	o.Remaining = remaining
	o.State = state
	if terminal {
		delete(e.orders, orderID)
		return
	}
	e.orders[orderID] = o
}
