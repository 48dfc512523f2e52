package indicator

import "signal-enginev1/internal/model"

// Market structure labels for the most recent confirmed pivot.
const (
	StructureHH      = "HH" // higher high — bullish continuation
	StructureHL      = "HL" // higher low — bullish continuation
	StructureLH      = "LH" // lower high — bearish continuation
	StructureLL      = "LL" // lower low — bearish continuation
	StructureNeutral = "NEUTRAL"
)

// StructureResult classifies the swing structure of a candle window.
type StructureResult struct {
	Structure string
	LastPivot float64 // price of the most recent confirmed pivot, 0 if none
	Ready     bool
}

// pivot is a confirmed local extremum.
type pivot struct {
	index int
	price float64
	high  bool
}

// MarketStructure detects local swing highs/lows and labels the most recent
// confirmed pivot relative to the previous pivot of the same kind.
//
// A candle is a pivot high when its high strictly exceeds the highs of the
// `lookback` candles on both sides (mirror rule for pivot lows), so the
// last `lookback` candles can never hold a confirmed pivot yet. Returns
// NEUTRAL until two pivots of the same kind exist.
func MarketStructure(candles []model.Candle, lookback int) StructureResult {
	if lookback <= 0 || len(candles) < 2*lookback+1 {
		return StructureResult{Structure: StructureNeutral}
	}

	var pivots []pivot
	for i := lookback; i < len(candles)-lookback; i++ {
		if isPivotHigh(candles, i, lookback) {
			pivots = append(pivots, pivot{index: i, price: candles[i].High, high: true})
		}
		if isPivotLow(candles, i, lookback) {
			pivots = append(pivots, pivot{index: i, price: candles[i].Low, high: false})
		}
	}
	if len(pivots) == 0 {
		return StructureResult{Structure: StructureNeutral, Ready: true}
	}

	last := pivots[len(pivots)-1]
	res := StructureResult{Structure: StructureNeutral, LastPivot: last.price, Ready: true}

	// Compare against the previous pivot of the same kind.
	for i := len(pivots) - 2; i >= 0; i-- {
		if pivots[i].high != last.high {
			continue
		}
		switch {
		case last.high && last.price > pivots[i].price:
			res.Structure = StructureHH
		case last.high:
			res.Structure = StructureLH
		case last.price > pivots[i].price:
			res.Structure = StructureHL
		default:
			res.Structure = StructureLL
		}
		return res
	}
	return res
}

func isPivotHigh(candles []model.Candle, i, lookback int) bool {
	h := candles[i].High
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= h {
			return false
		}
	}
	return true
}

func isPivotLow(candles []model.Candle, i, lookback int) bool {
	l := candles[i].Low
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= l {
			return false
		}
	}
	return true
}
