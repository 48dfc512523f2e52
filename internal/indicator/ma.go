package indicator

import "signal-enginev1/internal/model"

// SMASeries computes the simple moving average of closes over the window.
// Returns one value per candle starting at index period-1, so
// len(result) == len(candles) - period + 1. Nil when the window is too short.
func SMASeries(candles []model.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	out := make([]float64, 0, len(candles)-period+1)
	var sum float64
	for i := range candles {
		sum += candles[i].Close
		if i >= period {
			sum -= candles[i-period].Close
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMASeries computes the exponential moving average of closes, seeded with
// the SMA of the first `period` closes. One value per candle starting at
// index period-1. Nil when the window is too short.
func EMASeries(candles []model.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	multiplier := 2.0 / float64(period+1)

	var seed float64
	for i := 0; i < period; i++ {
		seed += candles[i].Close
	}
	seed /= float64(period)

	out := make([]float64, 0, len(candles)-period+1)
	out = append(out, seed)
	cur := seed
	for i := period; i < len(candles); i++ {
		cur = candles[i].Close*multiplier + cur*(1-multiplier)
		out = append(out, cur)
	}
	return out
}
