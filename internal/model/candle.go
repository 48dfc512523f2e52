package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLC aggregate over a fixed time bucket.
// A candle is mutated in place while its bucket is open (latest bucket for
// the symbol) and becomes immutable once a later tick opens a new bucket.
type Candle struct {
	BucketStart time.Time `json:"bucket_start"` // UTC, aligned to bucket size
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close series from a candle window.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
