package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

func TestParseTickSizeKnownValues(t *testing.T) {
	cases := map[string]types.TickSize{
		"0.1":    types.Tick01,
		"0.01":   types.Tick001,
		"0.001":  types.Tick0001,
		"0.0001": types.Tick00001,
		"bogus":  types.Tick001,
	}
	for raw, want := range cases {
		if got := parseTickSize(raw); got != want {
			t.Errorf("parseTickSize(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestOrderStateFromStatus(t *testing.T) {
	cases := []struct {
		status   string
		want     types.OrderState
		terminal bool
	}{
		{"LIVE", types.Open, false},
		{"MATCHED", types.Filled, true},
		{"CANCELLED", types.Cancelled, true},
		{"UNKNOWN", types.Open, false},
	}
	for _, c := range cases {
		state, terminal := orderStateFromStatus(c.status)
		if state != c.want || terminal != c.terminal {
			t.Errorf("orderStateFromStatus(%q) = (%v, %v), want (%v, %v)", c.status, state, terminal, c.want, c.terminal)
		}
	}
}

func TestFillFromTradeParsesDecimals(t *testing.T) {
	evt := types.WSTrade{TradeID: "t1", Outcome: "YES", Side: "BUY", Size: "10", Price: "0.45"}
	fill, err := fillFromTrade(evt)
	if err != nil {
		t.Fatal(err)
	}
	if !fill.Size.Equal(decimal.RequireFromString("10")) || !fill.Price.Equal(decimal.RequireFromString("0.45")) {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestFillFromTradeRejectsBadDecimals(t *testing.T) {
	if _, err := fillFromTrade(types.WSTrade{Size: "nan", Price: "0.5"}); err == nil {
		t.Fatal("expected error for unparseable size")
	}
}

func TestRemainingFromUpdateComputesDelta(t *testing.T) {
	remaining, err := remainingFromUpdate(types.WSOrderUpdate{OriginalSize: "100", SizeMatched: "40"})
	if err != nil {
		t.Fatal(err)
	}
	if !remaining.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("expected 60 remaining, got %s", remaining)
	}
}
