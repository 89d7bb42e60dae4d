// Package exchange implements the venue REST and WebSocket clients
// (SPEC_FULL.md §6.1-6.2). The REST client talks to the endpoints named in
// spec §6: markets, book, open-orders, positions, orders, and redemption.
// Every mutating request is rate-limited, retried on 5xx by resty, and
// authenticated with L1/L2 headers from the signer.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/signer"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// Client is the venue REST API client.
type Client struct {
	http   *resty.Client
	signer *signer.EOASigner
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry, grounded
// on the teacher's resty setup: 30s timeout per SPEC_FULL.md §5, capped
// retry on 5xx.
func NewClient(baseURL string, s *signer.EOASigner, dryRun bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		signer: s,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		logger: logger,
	}
}

// ListMarkets fetches active, non-closed markets (GET /markets?active&closed).
func (c *Client) ListMarkets(ctx context.Context) ([]types.MarketDTO, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result []types.MarketDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"active": "true", "closed": "false"}).
		SetResult(&result).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list markets: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GetMarket fetches one market descriptor (GET /markets/{id}).
func (c *Client) GetMarket(ctx context.Context, marketID string) (*types.MarketDTO, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.MarketDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/markets/" + marketID)
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get market: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// GetBook fetches an orderbook snapshot (GET /book?market={id}).
func (c *Client) GetBook(ctx context.Context, marketID string) (*types.BookDTO, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("market", marketID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// GetOpenOrders fetches open orders for this wallet, optionally scoped to
// one market (GET /open-orders?user={addr}[&market={id}]).
func (c *Client) GetOpenOrders(ctx context.Context, marketID string) ([]types.OpenOrderDTO, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{"user": c.signer.FunderAddress()}
	if marketID != "" {
		params["market"] = marketID
	}

	var result []types.OpenOrderDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/open-orders")
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get open orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GetRedeemablePositions fetches resolved positions eligible for redemption
// (GET /positions?user={addr}&redeemable=true).
func (c *Client) GetRedeemablePositions(ctx context.Context) ([]types.RedeemablePositionDTO, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result []types.RedeemablePositionDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"user": c.signer.FunderAddress(), "redeemable": "true"}).
		SetResult(&result).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("get redeemable positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get redeemable positions: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// BuildOrderPayload converts a quote into the on-chain order shape and
// signs it. expiration is a unix timestamp, 0 meaning no expiry.
func (c *Client) BuildOrderPayload(tokenID string, side types.Side, price, size decimal.Decimal, tick types.TickSize, expiration int64, feeRateBps int, nonce string) (types.SignedOrderPayload, error) {
	makerAmt, takerAmt := signer.PriceToAmounts(price, size, side, tick)

	unsigned := types.SignedOrderPayload{
		Salt:        nonce,
		TokenID:     tokenID,
		MakerAmount: makerAmt,
		TakerAmount: takerAmt,
		Side:        side,
		Expiration:  fmt.Sprintf("%d", expiration),
		Nonce:       nonce,
		FeeRateBps:  fmt.Sprintf("%d", feeRateBps),
	}
	return c.signer.Sign(unsigned)
}

// PostOrders submits up to 15 signed orders in one batch (POST /orders).
func (c *Client) PostOrders(ctx context.Context, orders []types.SignedOrderPayload) ([]types.OrderAckDTO, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("dry-run: would post orders", "count", len(orders))
		results := make([]types.OrderAckDTO, len(orders))
		for i := range orders {
			results[i] = types.OrderAckDTO{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(orders)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.signer.L2Headers(http.MethodPost, "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderAckDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(orders).
		SetResult(&results).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return results, nil
}

// CancelOrders cancels orders by id (POST /orders/cancel). Best-effort:
// the venue may reject some ids while accepting others.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelAckDTO, error) {
	if len(orderIDs) == 0 {
		return &types.CancelAckDTO{}, nil
	}
	if c.dryRun {
		c.logger.Info("dry-run: would cancel orders", "count", len(orderIDs))
		return &types.CancelAckDTO{Cancelled: orderIDs}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	payload := struct {
		OrderIDs []string `json:"order_ids"`
	}{OrderIDs: orderIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.signer.L2Headers(http.MethodPost, "/orders/cancel", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelAckDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/orders/cancel")
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// RedeemAckDTO is the REST response to POST /redeem/{position_id}.
type RedeemAckDTO struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
}

// RedeemPosition claims the cash value of a resolved position (POST
// /redeem/{position_id}).
func (c *Client) RedeemPosition(ctx context.Context, positionID string) (*RedeemAckDTO, error) {
	if c.dryRun {
		c.logger.Info("dry-run: would redeem position", "position_id", positionID)
		return &RedeemAckDTO{Success: true}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.signer.L2Headers(http.MethodPost, "/redeem/"+positionID, "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result RedeemAckDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Post("/redeem/" + positionID)
	if err != nil {
		return nil, fmt.Errorf("redeem position: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("redeem position: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// DeriveAPIKey bootstraps L2 credentials from L1 wallet auth.
func (c *Client) DeriveAPIKey(ctx context.Context) (*signer.Credentials, error) {
	headers, err := c.signer.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result signer.Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.signer.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}
