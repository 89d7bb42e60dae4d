// Package book maintains a single market's orderbook as a consistent view
// built from a REST snapshot and a live incremental feed (SPEC_FULL.md
// §4.1). It is the sole owner of this state: writes are serialized by the
// owning feed-consumer goroutine, and other components read a consistent
// Snapshot copied under a read lock.
package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// Snapshot is an immutable, point-in-time view of the book, safe to share
// across goroutines without further synchronization.
type Snapshot struct {
	Sequence  uint64
	Bids      []types.OrderbookLevel // descending by price
	Asks      []types.OrderbookLevel // ascending by price
	Stale     bool
	UpdatedAt time.Time
}

// BestBid returns the top bid level's price, or zero if the book is empty
// on that side.
func (s Snapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the top ask level's price, or zero if the book is empty
// on that side.
func (s Snapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// Mid returns (best_bid + best_ask) / 2. ok is false if either side is
// missing or the book is stale.
func (s Snapshot) Mid() (decimal.Decimal, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if s.Stale || !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.New(2, 0)), true
}

// one is the decimal constant 1, used for the invalid-price sentinel check
// resolving Open Question (a): a book is invalid when best_bid <= 0 or
// best_ask >= 1.
var one = decimal.New(1, 0)

// Book is the mutable orderbook, owned exclusively by the feed-consumer
// goroutine that calls ApplySnapshot/ApplyDelta.
type Book struct {
	mu sync.RWMutex

	sequence    uint64
	bids        []types.OrderbookLevel
	asks        []types.OrderbookLevel
	stale       bool
	needsResync bool
	updatedAt   time.Time
}

// New returns an empty, stale book — it stays stale until the first
// snapshot arrives.
func New() *Book {
	return &Book{stale: true, needsResync: true}
}

// ApplySnapshot replaces both sides of the book and resets the sequence
// counter. Levels must already be sorted (bids descending, asks ascending).
func (b *Book) ApplySnapshot(sequence uint64, bids, asks []types.OrderbookLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequence = sequence
	b.bids = append([]types.OrderbookLevel(nil), bids...)
	b.asks = append([]types.OrderbookLevel(nil), asks...)
	b.needsResync = false
	b.updatedAt = time.Now()
	b.stale = b.invalidLocked()
}

// ApplyDelta applies a single incremental level change per SPEC_FULL.md
// §4.1's sequence-gating rule:
//   - sequence <= current: dropped (stale duplicate or replay), not an error.
//   - sequence == current+1: applied in place (size 0 removes the level).
//   - sequence > current+1: a gap — the book is marked stale and a resync
//     is requested; the delta itself is discarded since we can no longer
//     trust the ordering.
func (b *Book) ApplyDelta(sequence uint64, side types.Side, price, newSize decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sequence <= b.sequence {
		return
	}
	if sequence > b.sequence+1 {
		b.stale = true
		b.needsResync = true
		return
	}

	if side == types.BUY {
		b.bids = upsertLevel(b.bids, price, newSize, true)
	} else {
		b.asks = upsertLevel(b.asks, price, newSize, false)
	}

	b.sequence = sequence
	b.updatedAt = time.Now()
	b.stale = b.invalidLocked()
}

// invalidLocked reports whether the current top-of-book violates
// best_bid < best_ask, including the sentinel condition from Open Question
// (a): invalid when best_bid <= 0 or best_ask >= 1. Caller must hold mu.
func (b *Book) invalidLocked() bool {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return true
	}
	bestBid := b.bids[0].Price
	bestAsk := b.asks[0].Price
	if bestBid.Sign() <= 0 || bestAsk.GreaterThanOrEqual(one) {
		return true
	}
	return !bestBid.LessThan(bestAsk)
}

// NeedsResync reports whether a sequence gap requires a fresh REST
// snapshot before quoting can resume, and clears the flag.
func (b *Book) NeedsResync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.needsResync
	b.needsResync = false
	return v
}

// Snapshot returns a consistent, immutable copy of the current book state.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Snapshot{
		Sequence:  b.sequence,
		Bids:      append([]types.OrderbookLevel(nil), b.bids...),
		Asks:      append([]types.OrderbookLevel(nil), b.asks...),
		Stale:     b.stale,
		UpdatedAt: b.updatedAt,
	}
}

// IsStale reports whether the book is currently marked stale, either
// because no snapshot has arrived, a sequence gap was detected, or the
// top-of-book is invalid.
func (b *Book) IsStale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stale
}

// upsertLevel inserts, updates, or removes a level in a sorted slice.
// descending selects bid ordering (highest price first); ascending (false)
// is ask ordering.
func upsertLevel(levels []types.OrderbookLevel, price, size decimal.Decimal, descending bool) []types.OrderbookLevel {
	idx := -1
	for i, lvl := range levels {
		if lvl.Price.Equal(price) {
			idx = i
			break
		}
	}

	if size.Sign() == 0 {
		if idx >= 0 {
			return append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}

	if idx >= 0 {
		levels[idx].Size = size
		return levels
	}

	// Insert in sorted position.
	insertAt := len(levels)
	for i, lvl := range levels {
		if descending && price.GreaterThan(lvl.Price) {
			insertAt = i
			break
		}
		if !descending && price.LessThan(lvl.Price) {
			insertAt = i
			break
		}
	}
	levels = append(levels, types.OrderbookLevel{})
	copy(levels[insertAt+1:], levels[insertAt:])
	levels[insertAt] = types.OrderbookLevel{Price: price, Size: size}
	return levels
}

// LevelsFromDTO converts venue wire levels into sorted domain levels.
// descending selects bid ordering.
func LevelsFromDTO(raw []types.PriceLevelDTO, descending bool) []types.OrderbookLevel {
	out := make([]types.OrderbookLevel, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(r.Size)
		if err != nil {
			continue
		}
		out = append(out, types.OrderbookLevel{Price: price, Size: size})
	}
	sortLevels(out, descending)
	return out
}

func sortLevels(levels []types.OrderbookLevel, descending bool) {
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0; j-- {
			swap := false
			if descending {
				swap = levels[j].Price.GreaterThan(levels[j-1].Price)
			} else {
				swap = levels[j].Price.LessThan(levels[j-1].Price)
			}
			if !swap {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
}
