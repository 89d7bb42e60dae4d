package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTickSizeDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want string
	}{
		{Tick01, "0.1"},
		{Tick001, "0.01"},
		{Tick0001, "0.001"},
		{Tick00001, "0.0001"},
		{TickSize(0), "0.01"}, // default
	}

	for _, tt := range tests {
		if got := tt.tick.Decimal(); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("TickSize(%d).Decimal() = %s, want %s", tt.tick, got, tt.want)
		}
	}
}

func TestTickSizeAmountDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want int32
	}{
		{Tick01, 3},
		{Tick001, 4},
		{Tick0001, 5},
		{Tick00001, 6},
		{TickSize(99), 4}, // default
	}

	for _, tt := range tests {
		if got := tt.tick.AmountDecimals(); got != tt.want {
			t.Errorf("TickSize(%d).AmountDecimals() = %d, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestSideOpposite(t *testing.T) {
	t.Parallel()
	if BUY.Opposite() != SELL || SELL.Opposite() != BUY {
		t.Fatal("Side.Opposite() is not involutive")
	}
}

func TestOutcomeOther(t *testing.T) {
	t.Parallel()
	if YES.Other() != NO || NO.Other() != YES {
		t.Fatal("Outcome.Other() is not involutive")
	}
}

func TestOrderStateTerminal(t *testing.T) {
	t.Parallel()

	terminal := []OrderState{Filled, Cancelled, Rejected, Expired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []OrderState{Pending, Open, PartiallyFilled}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
