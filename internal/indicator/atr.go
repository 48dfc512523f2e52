package indicator

import "signal-enginev1/internal/model"

// ATRSeries computes the Average True Range as a simple moving average of
// the true range over the given period.
//
// Returns one value per candle starting at index `period` (the first candle
// with `period` complete true ranges behind it), so
// len(result) == len(candles) - period. Returns nil when fewer than
// period+1 candles are available.
func ATRSeries(candles []model.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	// True range needs a previous close, so tr[i] pairs with candles[i+1].
	tr := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		tr[i-1] = TrueRange(candles[i], candles[i-1])
	}

	out := make([]float64, 0, len(candles)-period)
	var sum float64
	for i, v := range tr {
		sum += v
		if i >= period {
			sum -= tr[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
