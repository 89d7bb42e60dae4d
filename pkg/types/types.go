// Package types defines the data vocabulary shared across every layer of
// the market maker: sides, outcomes, order state, book levels, quotes, and
// the wire-level shapes exchanged with the venue's REST and WebSocket
// APIs. It depends on nothing internal, so any package may import it.
package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Outcome identifies one of the two complementary tokens of a binary market.
type Outcome string

const (
	YES Outcome = "YES"
	NO  Outcome = "NO"
)

// Other returns the complementary outcome.
func (o Outcome) Other() Outcome {
	if o == YES {
		return NO
	}
	return YES
}

// OrderState is the lifecycle state of a live order. Transitions are driven
// exclusively by venue-confirmed events; no client-initiated jump skips
// Pending.
type OrderState string

const (
	Pending         OrderState = "Pending"
	Open            OrderState = "Open"
	PartiallyFilled OrderState = "PartiallyFilled"
	Filled          OrderState = "Filled"
	Cancelled       OrderState = "Cancelled"
	Rejected        OrderState = "Rejected"
	Expired         OrderState = "Expired"
)

// Terminal reports whether the state removes the order from the open set.
func (s OrderState) Terminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account (standard wallet)
	SigProxy      SignatureType = 1 // Polymarket proxy / Magic wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// TickSize is the price granularity for a market, expressed as the
// exponent of 10 (2 means 0.01). It drives both price quantization and
// signed-order amount rounding.
type TickSize int

const (
	Tick01    TickSize = 1 // 0.1   — coarse markets
	Tick001   TickSize = 2 // 0.01  — standard markets (most common)
	Tick0001  TickSize = 3 // 0.001 — fine-grained markets
	Tick00001 TickSize = 4 // 0.0001 — ultra-precise markets
)

// Decimal returns the tick size as a decimal.Decimal, e.g. 0.01 for Tick001.
func (t TickSize) Decimal() decimal.Decimal {
	if t <= 0 {
		t = Tick001
	}
	return decimal.New(1, -int32(t))
}

// AmountDecimals returns the rounding precision used for on-chain USDC
// amounts at this tick size, mirroring the venue's fixed-point scaling.
func (t TickSize) AmountDecimals() int32 {
	switch t {
	case Tick01:
		return 3
	case Tick001:
		return 4
	case Tick0001:
		return 5
	case Tick00001:
		return 6
	default:
		return 4
	}
}

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// Market carries the static facts about the one binary market this process
// trades: its two token IDs and the price/size granularity orders must
// respect.
type Market struct {
	MarketID    string // venue market identifier (condition ID)
	Slug        string // human-readable URL slug, if known
	Question    string // the prediction question

	YesTokenID string // CLOB token ID for the YES outcome
	NoTokenID  string // CLOB token ID for the NO outcome

	TickSize TickSize        // price granularity
	MinSize  decimal.Decimal // minimum order size in tokens
	NegRisk  bool            // true if this is a neg-risk market (affects CTF exchange)

	Active          bool
	Closed          bool
	AcceptingOrders bool
	EndDate         time.Time
}

// TokenID returns the token id for the given outcome of this market.
func (m Market) TokenID(o Outcome) string {
	if o == YES {
		return m.YesTokenID
	}
	return m.NoTokenID
}

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// OrderbookLevel is a single price level: the total resting size at that
// price.
type OrderbookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Quote / Order / Position / Fill
// ————————————————————————————————————————————————————————————————————————

// Quote is an internal quoting intent produced by the QuoteEngine, not yet
// signed or submitted.
type Quote struct {
	MarketID    string
	TokenID     string
	Outcome     Outcome
	Side        Side
	Price       decimal.Decimal
	Size        decimal.Decimal
	Generation  uint64
	GeneratedAt time.Time
}

// Order is the executor's live view of a resting (or settling) order.
type Order struct {
	OrderID       string // venue-assigned id, empty until acknowledged
	ClientOrderID string // locally generated correlation id
	MarketID      string
	TokenID       string
	Outcome       Outcome
	Side          Side
	Price         decimal.Decimal
	Size          decimal.Decimal
	Remaining     decimal.Decimal
	Generation    uint64
	PlacedAt      time.Time
	State         OrderState
}

// Position is the ledger's per-outcome holding.
type Position struct {
	Size       decimal.Decimal
	AverageCost decimal.Decimal
}

// Fill is a venue-confirmed trade applied to the inventory ledger.
type Fill struct {
	TradeID string
	Outcome Outcome
	Side    Side
	Size    decimal.Decimal
	Price   decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Venue wire shapes (REST)
// ————————————————————————————————————————————————————————————————————————

// PriceLevelDTO is a single bid or ask level as the venue encodes it —
// strings, to preserve decimal precision across the wire.
type PriceLevelDTO struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketDTO is the REST response body describing one market.
type MarketDTO struct {
	ConditionID  string `json:"condition_id"`
	Slug         string `json:"market_slug"`
	Question     string `json:"question"`
	YesTokenID   string `json:"yes_token_id"`
	NoTokenID    string `json:"no_token_id"`
	TickSize     string `json:"tick_size"`
	MinOrderSize string `json:"min_order_size"`
	NegRisk      bool   `json:"neg_risk"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	AcceptingOrd bool   `json:"accepting_orders"`
	EndDateISO   string `json:"end_date_iso"`
}

// BookDTO is the REST response from GET /book?market={id}.
type BookDTO struct {
	Market    string          `json:"market"`
	Sequence  uint64          `json:"sequence"`
	Bids      []PriceLevelDTO `json:"bids"`
	Asks      []PriceLevelDTO `json:"asks"`
	Timestamp string          `json:"timestamp"`
}

// OpenOrderDTO is one entry of GET /open-orders.
type OpenOrderDTO struct {
	OrderID      string `json:"order_id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Status       string `json:"status"`
}

// RedeemablePositionDTO is one entry of GET /positions?redeemable=true.
type RedeemablePositionDTO struct {
	PositionID string `json:"position_id"`
	Market     string `json:"market"`
	Outcome    string `json:"outcome"`
	Size       string `json:"size"`
	ValueUSD   string `json:"value_usd"`
}

// SignedOrderPayload is the on-chain order format the venue's POST /orders
// expects. MakerAmount/TakerAmount are 6-decimal USDC fixed-point units.
type SignedOrderPayload struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   *big.Int      `json:"makerAmount"`
	TakerAmount   *big.Int      `json:"takerAmount"`
	Side          Side          `json:"side"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`
}

// OrderAckDTO is the REST response to a POST /orders submission.
type OrderAckDTO struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// CancelAckDTO is the REST response to POST /orders/cancel and friends.
type CancelAckDTO struct {
	Cancelled []string `json:"cancelled"`
}

// ————————————————————————————————————————————————————————————————————————
// Venue wire shapes (WebSocket)
// ————————————————————————————————————————————————————————————————————————
// These map 1:1 to the JSON messages documented in SPEC_FULL.md §6.2 — the
// concrete schema resolving Open Question (b): book_snapshot, book_delta,
// order_update, trade.

// WSBookSnapshot is a full orderbook replacement.
type WSBookSnapshot struct {
	EventType string          `json:"event_type"` // "book_snapshot"
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Sequence  uint64          `json:"sequence"`
	Bids      []PriceLevelDTO `json:"bids"`
	Asks      []PriceLevelDTO `json:"asks"`
	Timestamp string          `json:"timestamp"`
}

// WSBookDelta is a single incremental level change.
type WSBookDelta struct {
	EventType string `json:"event_type"` // "book_delta"
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Sequence  uint64 `json:"sequence"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Price     string `json:"price"`
	NewSize   string `json:"new_size"` // 0 removes the level
	Timestamp string `json:"timestamp"`
}

// WSTrade is a fill notification on the user channel.
type WSTrade struct {
	EventType string `json:"event_type"` // "trade"
	TradeID   string `json:"trade_id"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Outcome   string `json:"outcome"` // "YES" or "NO"
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// WSOrderUpdate is an order lifecycle notification on the user channel.
type WSOrderUpdate struct {
	EventType    string `json:"event_type"` // "order_update"
	OrderID      string `json:"order_id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Status       string `json:"status"` // "LIVE", "MATCHED", "CANCELLED"
	Timestamp    string `json:"timestamp"`
}

// WSSubscribe is the initial subscription message for a channel.
type WSSubscribe struct {
	Auth     *WSAuth  `json:"auth,omitempty"`
	Type     string   `json:"type"` // "market" or "user"
	Markets  []string `json:"markets,omitempty"`
	AssetIDs []string `json:"assets_ids,omitempty"`
}

// WSAuth carries L2 API credentials for the user channel.
type WSAuth struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}
