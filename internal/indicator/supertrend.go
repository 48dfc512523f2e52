package indicator

import "signal-enginev1/internal/model"

// SupertrendResult holds the Supertrend line and trend state for the most
// recent candle of a window.
//
// IsBuy / IsSell are one-shot flip flags: true only when the trend flipped
// on the latest candle relative to the immediately preceding computed
// value. They are NOT a sustained state — a caller that misses the flip
// candle misses the flip.
type SupertrendResult struct {
	Value  float64
	Trend  int // TrendUp or TrendDown
	IsBuy  bool
	IsSell bool
	Ready  bool
}

// Supertrend computes the ATR-band trend indicator over the candle window.
// Requires at least period+1 candles; returns Ready=false otherwise.
//
// The classic trailing rule applies: the final upper band only moves down
// and the final lower band only moves up (toward price, never away),
// resetting when the prior close breaches the band.
func Supertrend(candles []model.Candle, period int, multiplier float64) SupertrendResult {
	lines, trends := supertrendCompute(candles, period, multiplier)
	if len(lines) == 0 {
		return SupertrendResult{}
	}

	last := len(lines) - 1
	res := SupertrendResult{
		Value: lines[last],
		Trend: trends[last],
		Ready: true,
	}
	if last >= 1 {
		res.IsBuy = trends[last] == TrendUp && trends[last-1] == TrendDown
		res.IsSell = trends[last] == TrendDown && trends[last-1] == TrendUp
	}
	return res
}

// SupertrendSeries returns the Supertrend line values, one per candle
// starting at index `period`. Nil when the window is too short.
func SupertrendSeries(candles []model.Candle, period int, multiplier float64) []float64 {
	lines, _ := supertrendCompute(candles, period, multiplier)
	return lines
}

// supertrendCompute runs the full band/trend recursion over the window.
// Both return slices have len(candles)-period entries (or nil).
func supertrendCompute(candles []model.Candle, period int, multiplier float64) (lines []float64, trends []int) {
	atr := ATRSeries(candles, period)
	if atr == nil {
		return nil, nil
	}

	n := len(atr)
	lines = make([]float64, n)
	trends = make([]int, n)

	var prevUpper, prevLower float64
	prevTrend := 0

	for k := 0; k < n; k++ {
		c := candles[k+period]
		mid := (c.High + c.Low) / 2
		basicUpper := mid + multiplier*atr[k]
		basicLower := mid - multiplier*atr[k]

		upper := basicUpper
		lower := basicLower
		if k > 0 {
			prevClose := candles[k+period-1].Close
			if !(basicUpper < prevUpper || prevClose > prevUpper) {
				upper = prevUpper
			}
			if !(basicLower > prevLower || prevClose < prevLower) {
				lower = prevLower
			}
		}

		trend := TrendUp
		switch prevTrend {
		case TrendUp:
			if c.Close < lower {
				trend = TrendDown
			}
		case TrendDown:
			if c.Close <= upper {
				trend = TrendDown
			}
		default:
			// First computed candle: above the upper band counts as an
			// uptrend, anything else starts bearish.
			if c.Close <= upper {
				trend = TrendDown
			}
		}

		if trend == TrendUp {
			lines[k] = lower
		} else {
			lines[k] = upper
		}
		trends[k] = trend

		prevUpper, prevLower, prevTrend = upper, lower, trend
	}
	return lines, trends
}
