package indicator

import (
	"math"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

var testBase = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// candlesFromCloses builds one-minute candles with high = close+1 and
// low = close-1.
func candlesFromCloses(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			BucketStart: testBase.Add(time.Duration(i) * time.Minute),
			Open:        c,
			High:        c + 1,
			Low:         c - 1,
			Close:       c,
		}
	}
	return out
}

// trendSeries builds the rise-then-fall window used by the flip tests:
// 20 candles climbing +2 from 100, then `fall` candles dropping -5.
func trendSeries(fall int) []model.Candle {
	closes := make([]float64, 0, 20+fall)
	price := 100.0
	for i := 0; i < 20; i++ {
		closes = append(closes, price)
		price += 2
	}
	price -= 2 // last rising close is 138
	for i := 0; i < fall; i++ {
		price -= 5
		closes = append(closes, price)
	}
	return candlesFromCloses(closes...)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestATRSeries(t *testing.T) {
	candles := trendSeries(0)[:12]

	atr := ATRSeries(candles, 10)
	if len(atr) != 2 {
		t.Fatalf("expected len(candles)-period values, got %d", len(atr))
	}
	// Steady +2 closes with a 2-point range give a constant true range of 3.
	for i, v := range atr {
		if !almostEqual(v, 3) {
			t.Errorf("atr[%d] = %v, want 3", i, v)
		}
	}

	if got := ATRSeries(candles[:10], 10); got != nil {
		t.Errorf("expected nil for window of period candles, got %v", got)
	}
	if got := ATRSeries(candles, 0); got != nil {
		t.Errorf("expected nil for non-positive period, got %v", got)
	}
}

func TestSupertrend_NotReadyOnShortWindow(t *testing.T) {
	candles := trendSeries(0)[:10]
	res := Supertrend(candles, 10, 3)
	if res.Ready {
		t.Fatalf("expected Ready=false with %d candles, got %+v", len(candles), res)
	}
}

func TestSupertrend_BuyFlipOnBreakout(t *testing.T) {
	// The first computed candle starts bearish; the upper band stays pinned
	// at 129 while closes climb, so the close of 130 (index 15) flips up.
	candles := trendSeries(0)

	res := Supertrend(candles[:16], 10, 3)
	if !res.Ready {
		t.Fatal("expected Ready=true")
	}
	if res.Trend != TrendUp {
		t.Fatalf("expected TrendUp on breakout candle, got %d", res.Trend)
	}
	if !res.IsBuy {
		t.Error("expected one-shot IsBuy on the flip candle")
	}
	if res.IsSell {
		t.Error("IsSell must be false on a buy flip")
	}

	// One candle later the flip flag has expired but the trend holds.
	next := Supertrend(candles[:17], 10, 3)
	if next.Trend != TrendUp {
		t.Fatalf("expected trend to hold, got %d", next.Trend)
	}
	if next.IsBuy {
		t.Error("IsBuy must be one-shot, not a sustained state")
	}
}

func TestSupertrend_SellFlipOnBreakdown(t *testing.T) {
	// After the rally the lower band ratchets to 129; the second falling
	// close (128) breaks it and flips the trend down.
	before := Supertrend(trendSeries(1), 10, 3)
	if before.Trend != TrendUp || before.IsSell {
		t.Fatalf("one falling candle must not flip yet: %+v", before)
	}

	res := Supertrend(trendSeries(2), 10, 3)
	if res.Trend != TrendDown {
		t.Fatalf("expected TrendDown after breakdown, got %d", res.Trend)
	}
	if !res.IsSell {
		t.Error("expected one-shot IsSell on the flip candle")
	}
	if res.IsBuy {
		t.Error("IsBuy must be false on a sell flip")
	}
	// In a downtrend the line is the upper band, above price.
	if res.Value <= trendSeries(2)[21].Close {
		t.Errorf("downtrend line should sit above price, got %v", res.Value)
	}
}

func TestSupertrendSeries_Length(t *testing.T) {
	candles := trendSeries(5)
	series := SupertrendSeries(candles, 10, 3)
	if len(series) != len(candles)-10 {
		t.Fatalf("expected %d values, got %d", len(candles)-10, len(series))
	}
}

func TestPSAR_TrendsFollowPrice(t *testing.T) {
	rising := candlesFromCloses(100, 102, 104, 106, 108, 110, 112, 114)
	res := PSAR(rising, 0.02, 0.2)
	if !res.Ready {
		t.Fatal("expected Ready=true")
	}
	if res.Trend != TrendUp {
		t.Fatalf("expected TrendUp for rising closes, got %d", res.Trend)
	}
	if res.Value >= rising[len(rising)-1].Low {
		t.Errorf("uptrend SAR must trail below price, got %v", res.Value)
	}

	falling := candlesFromCloses(114, 112, 110, 108, 106, 104, 102, 100)
	res = PSAR(falling, 0.02, 0.2)
	if res.Trend != TrendDown {
		t.Fatalf("expected TrendDown for falling closes, got %d", res.Trend)
	}
	if res.Value <= falling[len(falling)-1].High {
		t.Errorf("downtrend SAR must trail above price, got %v", res.Value)
	}
}

func TestPSAR_ReversesOnCross(t *testing.T) {
	// A sharp reversal drags price through the trailing SAR.
	closes := []float64{100, 102, 104, 106, 108, 110, 104, 98, 92, 86}
	res := PSAR(candlesFromCloses(closes...), 0.02, 0.2)
	if !res.Ready {
		t.Fatal("expected Ready=true")
	}
	if res.Trend != TrendDown {
		t.Fatalf("expected reversal to TrendDown, got %d", res.Trend)
	}
}

func TestPSAR_NotReadyOnShortWindow(t *testing.T) {
	if res := PSAR(candlesFromCloses(100), 0.02, 0.2); res.Ready {
		t.Fatalf("expected Ready=false with one candle, got %+v", res)
	}
	if s := PSARSeries(candlesFromCloses(100), 0.02, 0.2); s != nil {
		t.Fatalf("expected nil series, got %v", s)
	}
}

func TestPSARSeries_Length(t *testing.T) {
	candles := candlesFromCloses(100, 102, 104, 106)
	series := PSARSeries(candles, 0.02, 0.2)
	if len(series) != len(candles)-1 {
		t.Fatalf("expected %d values, got %d", len(candles)-1, len(series))
	}
}

// structCandle builds a candle from an explicit high/low pair.
func structCandles(highs, lows []float64) []model.Candle {
	out := make([]model.Candle, len(highs))
	for i := range highs {
		out[i] = model.Candle{
			BucketStart: testBase.Add(time.Duration(i) * time.Minute),
			Open:        lows[i],
			High:        highs[i],
			Low:         lows[i],
			Close:       highs[i],
		}
	}
	return out
}

func TestMarketStructure_HigherHigh(t *testing.T) {
	highs := []float64{100, 101, 105, 110, 104, 103, 102, 106, 112, 115, 105, 104, 103}
	lows := make([]float64, len(highs))
	for i := range highs {
		lows[i] = highs[i] - 2
	}

	res := MarketStructure(structCandles(highs, lows), 2)
	if !res.Ready {
		t.Fatal("expected Ready=true")
	}
	if res.Structure != StructureHH {
		t.Fatalf("expected HH, got %s", res.Structure)
	}
	if res.LastPivot != 115 {
		t.Errorf("expected last pivot at 115, got %v", res.LastPivot)
	}
}

func TestMarketStructure_LowerLow(t *testing.T) {
	lows := []float64{100, 98, 95, 90, 96, 99, 102, 97, 92, 85, 95, 97, 99}
	highs := make([]float64, len(lows))
	for i := range lows {
		highs[i] = lows[i] + 2
	}

	res := MarketStructure(structCandles(highs, lows), 2)
	if res.Structure != StructureLL {
		t.Fatalf("expected LL, got %s", res.Structure)
	}
	if res.LastPivot != 85 {
		t.Errorf("expected last pivot at 85, got %v", res.LastPivot)
	}
}

func TestMarketStructure_NeutralCases(t *testing.T) {
	// Too short to confirm any pivot.
	short := candlesFromCloses(100, 101, 102)
	res := MarketStructure(short, 2)
	if res.Ready {
		t.Error("expected Ready=false on a short window")
	}
	if res.Structure != StructureNeutral {
		t.Errorf("expected NEUTRAL, got %s", res.Structure)
	}

	// Flat tape: no strict extremum anywhere.
	flat := candlesFromCloses(100, 100, 100, 100, 100, 100, 100, 100)
	res = MarketStructure(flat, 2)
	if !res.Ready {
		t.Error("expected Ready=true on a long flat window")
	}
	if res.Structure != StructureNeutral || res.LastPivot != 0 {
		t.Errorf("expected NEUTRAL with no pivot, got %+v", res)
	}
}

func TestSMASeries(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5)
	sma := SMASeries(candles, 3)
	want := []float64{2, 3, 4}
	if len(sma) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(sma))
	}
	for i := range want {
		if !almostEqual(sma[i], want[i]) {
			t.Errorf("sma[%d] = %v, want %v", i, sma[i], want[i])
		}
	}
	if got := SMASeries(candles[:2], 3); got != nil {
		t.Errorf("expected nil on short window, got %v", got)
	}
}

func TestEMASeries(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5)
	ema := EMASeries(candles, 3)
	if len(ema) != 3 {
		t.Fatalf("expected 3 values, got %d", len(ema))
	}
	// Seeded with SMA(1,2,3) = 2; multiplier 0.5.
	if !almostEqual(ema[0], 2) {
		t.Errorf("ema[0] = %v, want 2", ema[0])
	}
	if !almostEqual(ema[1], 3) { // 4*0.5 + 2*0.5
		t.Errorf("ema[1] = %v, want 3", ema[1])
	}
	if !almostEqual(ema[2], 4) { // 5*0.5 + 3*0.5
		t.Errorf("ema[2] = %v, want 4", ema[2])
	}
}

func TestRSISeries(t *testing.T) {
	// Monotonic gains: RSI pegs at 100.
	up := candlesFromCloses(1, 2, 3, 4, 5, 6)
	rsi := RSISeries(up, 3)
	if len(rsi) != 3 {
		t.Fatalf("expected 3 values, got %d", len(rsi))
	}
	for i, v := range rsi {
		if !almostEqual(v, 100) {
			t.Errorf("rsi[%d] = %v, want 100", i, v)
		}
	}

	// Monotonic losses: RSI at 0.
	down := candlesFromCloses(6, 5, 4, 3, 2, 1)
	rsi = RSISeries(down, 3)
	for i, v := range rsi {
		if !almostEqual(v, 0) {
			t.Errorf("rsi[%d] = %v, want 0", i, v)
		}
	}

	if got := RSISeries(up[:3], 3); got != nil {
		t.Errorf("expected nil on short window, got %v", got)
	}
}

func TestTrueRange(t *testing.T) {
	prev := model.Candle{High: 105, Low: 100, Close: 103}
	cur := model.Candle{High: 104, Low: 102, Close: 102}
	// max(104-102, |104-103|, |102-103|) = 2
	if tr := TrueRange(cur, prev); !almostEqual(tr, 2) {
		t.Errorf("TrueRange = %v, want 2", tr)
	}

	gapUp := model.Candle{High: 110, Low: 108, Close: 109}
	// max(2, |110-103|, |108-103|) = 7
	if tr := TrueRange(gapUp, prev); !almostEqual(tr, 7) {
		t.Errorf("TrueRange gap = %v, want 7", tr)
	}
}

func TestSupertrend_BitIdenticalRecompute(t *testing.T) {
	candles := trendSeries(2)

	first := Supertrend(candles, 10, 3)
	second := Supertrend(candles, 10, 3)
	if first != second {
		t.Errorf("same window, different results: %+v vs %+v", first, second)
	}

	a := SupertrendSeries(candles, 10, 3)
	b := SupertrendSeries(candles, 10, 3)
	if len(a) != len(b) {
		t.Fatalf("series lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		// Bit-identical, not merely close: == on purpose.
		if a[i] != b[i] {
			t.Errorf("series[%d] = %v vs %v", i, a[i], b[i])
		}
	}
}
