package risk

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
		MaxExposureUSD:         d("1000"),
		MinExposureUSD:         d("1"),
		TargetInventoryBalance: d("0.5"),
	}
}

func TestEvaluateAcceptsWithinLimits(t *testing.T) {
	t.Parallel()

	ok, reason := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("50"), Reduces: false}, d("0"), d("0"), baseConfig())
	if !ok {
		t.Fatalf("expected accept, got reject: %s", reason)
	}
}

func TestEvaluateExceedsMaxExposure(t *testing.T) {
	t.Parallel()

	// current=950, order=100 BUY -> projected 1050 > 1000
	ok, reason := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("100"), Reduces: false}, d("950"), d("0"), baseConfig())
	if ok || reason != ExceedsMaxExposure {
		t.Fatalf("expected exceeds_max_exposure, got ok=%v reason=%s", ok, reason)
	}
}

func TestEvaluateReducingOrderAcceptedAtSameLevel(t *testing.T) {
	t.Parallel()

	ok, reason := Evaluate(Intent{Side: types.SELL, NotionalUSD: d("100"), Reduces: true}, d("950"), d("0"), baseConfig())
	if !ok {
		t.Fatalf("reducing order should be accepted, got reject: %s", reason)
	}
}

func TestEvaluateMonotonicity(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	current := d("950")

	okSmall, reasonSmall := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("60"), Reduces: false}, current, d("0"), cfg)
	if okSmall || reasonSmall != ExceedsMaxExposure {
		t.Fatalf("N=60 should already exceed max exposure, got ok=%v reason=%s", okSmall, reasonSmall)
	}

	okLarge, reasonLarge := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("200"), Reduces: false}, current, d("0"), cfg)
	if okLarge || reasonLarge != ExceedsMaxExposure {
		t.Fatalf("larger notional on same side must also be rejected, got ok=%v reason=%s", okLarge, reasonLarge)
	}
}

func TestEvaluateBelowMinSize(t *testing.T) {
	t.Parallel()

	ok, reason := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("0.1"), Reduces: false}, d("0"), d("0"), baseConfig())
	if ok || reason != BelowMinSize {
		t.Fatalf("expected below_min_size, got ok=%v reason=%s", ok, reason)
	}
}

func TestEvaluateWrongDirection(t *testing.T) {
	t.Parallel()

	// current exposure 850 > 1000*0.8=800, a further-increasing BUY must be rejected.
	ok, reason := Evaluate(Intent{Side: types.BUY, NotionalUSD: d("10"), Reduces: false}, d("850"), d("0"), baseConfig())
	if ok || reason != ExposureIncreasesWrongDirection {
		t.Fatalf("expected exposure_increases_wrong_direction, got ok=%v reason=%s", ok, reason)
	}
}

func TestEvaluateInventoryOutsideTargetBand(t *testing.T) {
	t.Parallel()

	ok, reason := Evaluate(Intent{
		Side:               types.BUY,
		NotionalUSD:        d("10"),
		Reduces:            true, // passes the exposure-direction gate
		ProjectedImbalance: d("0.9"),
	}, d("10"), d("0.7"), baseConfig())
	if ok || reason != InventoryOutsideTargetBand {
		t.Fatalf("expected inventory_outside_target_band, got ok=%v reason=%s", ok, reason)
	}
}
