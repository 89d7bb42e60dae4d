package quote

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseConfig() Config {
	return Config{
		BaseSize:        d("100"),
		MinSize:         d("10"),
		MaxSize:         d("500"),
		MinHalfSpread:   d("0.01"),
		WidenFactor:     d("1"),
		SkewCoefficient: d("0.02"),
		TickSize:        types.Tick001,
	}
}

func findQuote(quotes []types.Quote, outcome types.Outcome, side types.Side) (types.Quote, bool) {
	for _, q := range quotes {
		if q.Outcome == outcome && q.Side == side {
			return q, true
		}
	}
	return types.Quote{}, false
}

func TestComputeSymmetricBookZeroInventory(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	quotes := e.Compute(Input{
		MarketID: "m1", YesTokenID: "yes", NoTokenID: "no",
		BestBid: d("0.49"), BestAsk: d("0.51"), Imbalance: d("0"),
	}, baseConfig())

	yesBid, ok := findQuote(quotes, types.YES, types.BUY)
	if !ok || !yesBid.Price.Equal(d("0.49")) || !yesBid.Size.Equal(d("100")) {
		t.Fatalf("yes bid = %+v", yesBid)
	}
	yesAsk, ok := findQuote(quotes, types.YES, types.SELL)
	if !ok || !yesAsk.Price.Equal(d("0.51")) || !yesAsk.Size.Equal(d("100")) {
		t.Fatalf("yes ask = %+v", yesAsk)
	}
	noBid, ok := findQuote(quotes, types.NO, types.BUY)
	if !ok || !noBid.Price.Equal(d("0.49")) {
		t.Fatalf("no bid = %+v", noBid)
	}
	noAsk, ok := findQuote(quotes, types.NO, types.SELL)
	if !ok || !noAsk.Price.Equal(d("0.51")) {
		t.Fatalf("no ask = %+v", noAsk)
	}
}

func TestComputeLongYesSkewsDownAndSizes(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	// imbalance close to 1 (fully long YES)
	quotes := e.Compute(Input{
		MarketID: "m1", YesTokenID: "yes", NoTokenID: "no",
		BestBid: d("0.49"), BestAsk: d("0.51"), Imbalance: d("0.9999999998"),
	}, baseConfig())

	yesAsk, ok := findQuote(quotes, types.YES, types.SELL)
	if !ok {
		t.Fatal("expected a yes ask")
	}
	if !yesAsk.Size.GreaterThan(d("100")) {
		t.Errorf("yes ask size should grow when reducing a long-YES position, got %s", yesAsk.Size)
	}

	yesBid, ok := findQuote(quotes, types.YES, types.BUY)
	if ok && !yesBid.Size.LessThan(d("100")) {
		t.Errorf("yes bid size should shrink when already long YES, got %s", yesBid.Size)
	}
}

func TestComputeSuppressesInvalidPrices(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	cfg := baseConfig()
	cfg.MinHalfSpread = d("0.6") // forces a price outside (0,1)

	quotes := e.Compute(Input{
		MarketID: "m1", YesTokenID: "yes", NoTokenID: "no",
		BestBid: d("0.49"), BestAsk: d("0.51"), Imbalance: d("0"),
	}, cfg)

	for _, q := range quotes {
		if q.Price.LessThanOrEqual(decimal.Zero) || q.Price.GreaterThanOrEqual(one) {
			t.Fatalf("suppressed price leaked through: %+v", q)
		}
	}
}

func TestComputeGenerationIncreasesEachCycle(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	in := Input{MarketID: "m1", YesTokenID: "yes", NoTokenID: "no", BestBid: d("0.49"), BestAsk: d("0.51")}
	cfg := baseConfig()

	first := e.Compute(in, cfg)
	second := e.Compute(in, cfg)

	if len(first) == 0 || len(second) == 0 {
		t.Fatal("expected quotes in both cycles")
	}
	if second[0].Generation <= first[0].Generation {
		t.Fatalf("generation should increase: first=%d second=%d", first[0].Generation, second[0].Generation)
	}
}

func TestComputeBoundsAreRespected(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	quotes := e.Compute(Input{
		MarketID: "m1", YesTokenID: "yes", NoTokenID: "no",
		BestBid: d("0.49"), BestAsk: d("0.51"), Imbalance: d("0.3"),
	}, baseConfig())

	for _, q := range quotes {
		if q.Price.LessThanOrEqual(decimal.Zero) || q.Price.GreaterThanOrEqual(one) {
			t.Errorf("price out of (0,1): %s", q.Price)
		}
		if q.Size.LessThan(baseConfig().MinSize) || q.Size.GreaterThan(baseConfig().MaxSize) {
			t.Errorf("size out of bounds: %s", q.Size)
		}
	}
}
