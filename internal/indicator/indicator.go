// Package indicator provides technical indicator calculations over candle
// windows.
//
// All functions here are pure: given the same candle window they return
// bit-identical results, hold no state between calls, and never mutate
// their input. They are cheap enough for O(window) recomputation on every
// tick given the bounded rolling window (≤200 candles).
//
// Indicators that need more candles than the window holds report
// Ready=false (or return a nil series) instead of failing; callers must
// check and skip evaluation for that tick.
package indicator

import "signal-enginev1/internal/model"

// Trend direction flags shared by Supertrend and PSAR.
const (
	TrendUp   = 1
	TrendDown = -1
)

// TrueRange returns the true range of candle i given its predecessor:
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(cur, prev model.Candle) float64 {
	tr := cur.High - cur.Low
	if d := abs(cur.High - prev.Close); d > tr {
		tr = d
	}
	if d := abs(cur.Low - prev.Close); d > tr {
		tr = d
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
