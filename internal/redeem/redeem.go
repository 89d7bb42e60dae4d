// Package redeem implements the peripheral position-redemption sweeper
// named in SPEC_FULL.md's ambient-stack supplement: periodically check for
// redeemable positions (markets that have resolved) and claim their cash
// value once the position's USD value clears a configured threshold.
// Grounded on original_source/src/services/auto_redeem.py, translated into
// the teacher's REST-client idiom (internal/exchange/client.go).
package redeem

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/exchange"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// Client is the subset of exchange.Client the sweeper calls.
type Client interface {
	GetRedeemablePositions(ctx context.Context) ([]types.RedeemablePositionDTO, error)
	RedeemPosition(ctx context.Context, positionID string) (*exchange.RedeemAckDTO, error)
}

var _ Client = (*exchange.Client)(nil)

// Sweeper periodically redeems resolved positions above a USD threshold.
type Sweeper struct {
	client       Client
	thresholdUSD decimal.Decimal
	logger       *slog.Logger
}

// New builds a Sweeper. thresholdUSD is redeem_threshold_usd: positions
// below this value are left unredeemed, since the venue may charge gas to
// process the claim.
func New(client Client, thresholdUSD decimal.Decimal, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{client: client, thresholdUSD: thresholdUSD, logger: logger.With("component", "redeem_sweeper")}
}

// SweepOnce checks for redeemable positions and claims every one whose
// value clears the threshold. It returns the number successfully redeemed
// and never aborts early on a single position's failure.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	positions, err := s.client.GetRedeemablePositions(ctx)
	if err != nil {
		return 0, err
	}

	redeemed := 0
	for _, pos := range positions {
		value, err := decimal.NewFromString(pos.ValueUSD)
		if err != nil {
			s.logger.Warn("skipping position with unparseable value", "position_id", pos.PositionID, "value", pos.ValueUSD)
			continue
		}
		if value.LessThan(s.thresholdUSD) {
			continue
		}

		ack, err := s.client.RedeemPosition(ctx, pos.PositionID)
		if err != nil {
			s.logger.Error("position redeem failed", "position_id", pos.PositionID, "error", err)
			continue
		}
		if !ack.Success {
			s.logger.Error("position redeem not successful", "position_id", pos.PositionID)
			continue
		}
		s.logger.Info("position redeemed", "position_id", pos.PositionID, "tx_hash", ack.TxHash)
		redeemed++
	}

	s.logger.Info("redeem sweep completed", "redeemed", redeemed, "checked", len(positions))
	return redeemed, nil
}

// Run sweeps on interval until ctx is cancelled. A per-sweep error is
// logged and the loop continues — redemption is best-effort and never
// blocks the quoting loop.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
