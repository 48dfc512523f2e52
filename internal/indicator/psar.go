package indicator

import "signal-enginev1/internal/model"

// PSARResult holds the Parabolic SAR value and trend for the most recent
// candle of a window.
type PSARResult struct {
	Value float64
	Trend int // TrendUp or TrendDown
	Ready bool
}

// PSAR computes the standard iterative Parabolic Stop-And-Reverse.
// Requires at least 2 candles; returns Ready=false otherwise.
//
// The acceleration factor starts at step, grows by step each time a new
// extreme point is made, and is capped at maxStep. The SAR is clamped so
// it never penetrates the prior two candles' range; when price crosses the
// SAR the trend flips and the SAR resets to the prior extreme point.
func PSAR(candles []model.Candle, step, maxStep float64) PSARResult {
	series, trends := psarCompute(candles, step, maxStep)
	if series == nil {
		return PSARResult{}
	}
	last := len(series) - 1
	return PSARResult{Value: series[last], Trend: trends[last], Ready: true}
}

// PSARSeries returns the SAR values, one per candle starting at index 1.
// Nil when the window is too short.
func PSARSeries(candles []model.Candle, step, maxStep float64) []float64 {
	series, _ := psarCompute(candles, step, maxStep)
	return series
}

func psarCompute(candles []model.Candle, step, maxStep float64) (series []float64, trends []int) {
	if len(candles) < 2 {
		return nil, nil
	}

	n := len(candles) - 1
	series = make([]float64, n)
	trends = make([]int, n)

	// Seed from the first two candles: rising close assumes an uptrend
	// with SAR at the initial low, falling close the mirror.
	uptrend := candles[1].Close >= candles[0].Close
	sar := candles[0].Low
	ep := candles[0].High
	if !uptrend {
		sar = candles[0].High
		ep = candles[0].Low
	}
	af := step

	for i := 1; i < len(candles); i++ {
		// Extrapolate next SAR from prior SAR and extreme point.
		sar = sar + af*(ep-sar)

		// Clamp: SAR may not penetrate the prior two candles' range.
		if uptrend {
			if prior := candles[i-1].Low; sar > prior {
				sar = prior
			}
			if i >= 2 {
				if prior := candles[i-2].Low; sar > prior {
					sar = prior
				}
			}
		} else {
			if prior := candles[i-1].High; sar < prior {
				sar = prior
			}
			if i >= 2 {
				if prior := candles[i-2].High; sar < prior {
					sar = prior
				}
			}
		}

		c := candles[i]
		if uptrend {
			if c.Low < sar {
				// Price crossed below: reverse to downtrend.
				uptrend = false
				sar = ep
				ep = c.Low
				af = step
			} else if c.High > ep {
				ep = c.High
				af += step
				if af > maxStep {
					af = maxStep
				}
			}
		} else {
			if c.High > sar {
				// Price crossed above: reverse to uptrend.
				uptrend = true
				sar = ep
				ep = c.High
				af = step
			} else if c.Low < ep {
				ep = c.Low
				af += step
				if af > maxStep {
					af = maxStep
				}
			}
		}

		series[i-1] = sar
		if uptrend {
			trends[i-1] = TrendUp
		} else {
			trends[i-1] = TrendDown
		}
	}
	return series, trends
}
