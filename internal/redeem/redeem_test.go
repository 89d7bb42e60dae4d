package redeem

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/internal/exchange"
	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

type fakeClient struct {
	positions   []types.RedeemablePositionDTO
	listErr     error
	redeemErr   map[string]error
	redeemCalls []string
}

func (f *fakeClient) GetRedeemablePositions(ctx context.Context) ([]types.RedeemablePositionDTO, error) {
	return f.positions, f.listErr
}

func (f *fakeClient) RedeemPosition(ctx context.Context, positionID string) (*exchange.RedeemAckDTO, error) {
	f.redeemCalls = append(f.redeemCalls, positionID)
	if err, ok := f.redeemErr[positionID]; ok {
		return nil, err
	}
	return &exchange.RedeemAckDTO{Success: true, TxHash: "0xabc"}, nil
}

func TestSweepOnceRedeemsOnlyAboveThreshold(t *testing.T) {
	fc := &fakeClient{positions: []types.RedeemablePositionDTO{
		{PositionID: "p1", ValueUSD: "50"},
		{PositionID: "p2", ValueUSD: "5"},
	}}
	s := New(fc, decimal.RequireFromString("10"), nil)

	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 redeemed, got %d", n)
	}
	if len(fc.redeemCalls) != 1 || fc.redeemCalls[0] != "p1" {
		t.Fatalf("expected only p1 redeemed, got %v", fc.redeemCalls)
	}
}

func TestSweepOnceContinuesAfterOneFailure(t *testing.T) {
	fc := &fakeClient{
		positions: []types.RedeemablePositionDTO{
			{PositionID: "p1", ValueUSD: "50"},
			{PositionID: "p2", ValueUSD: "60"},
		},
		redeemErr: map[string]error{"p1": errors.New("rpc failure")},
	}
	s := New(fc, decimal.RequireFromString("10"), nil)

	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 redeemed despite p1 failing, got %d", n)
	}
	if len(fc.redeemCalls) != 2 {
		t.Fatalf("expected both positions attempted, got %v", fc.redeemCalls)
	}
}

func TestSweepOnceSkipsUnparseableValue(t *testing.T) {
	fc := &fakeClient{positions: []types.RedeemablePositionDTO{
		{PositionID: "p1", ValueUSD: "not-a-number"},
	}}
	s := New(fc, decimal.RequireFromString("10"), nil)

	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 redeemed, got %d", n)
	}
	if len(fc.redeemCalls) != 0 {
		t.Fatal("unparseable value should never reach RedeemPosition")
	}
}

func TestSweepOnceListFailurePropagates(t *testing.T) {
	fc := &fakeClient{listErr: errors.New("venue unavailable")}
	s := New(fc, decimal.RequireFromString("10"), nil)

	if _, err := s.SweepOnce(context.Background()); err == nil {
		t.Fatal("expected list failure to propagate")
	}
}
